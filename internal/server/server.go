// Package server expone el engine por HTTP/JSON (chi + cors).
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/alejandrodnm/valuebot/internal/application/engine"
	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Service son las operaciones del engine que sirve la API.
type Service interface {
	ScanSport(ctx context.Context, sport string, policy domain.Policy) (scanner.ScanResult, error)
	ScanAll(ctx context.Context, sports []string, policy domain.Policy) (engine.ScanAllResult, error)
	FindArbitrage(ctx context.Context, marketID string, totalStake float64) (*domain.ArbitrageOpportunity, error)
	ScanArbitrage(ctx context.Context, sport string, minProfitMargin, totalStake float64, limit int) ([]domain.ArbitrageOpportunity, error)
	GetStatistics(ctx context.Context, userID string, period domain.Period, groupBy domain.GroupBy) (domain.Statistics, error)
	AlertSummary(ctx context.Context) (domain.AlertSummary, error)
	MarkAlertTaken(ctx context.Context, alertID, externalBetID string) (domain.Alert, error)
	InvalidateAlert(ctx context.Context, alertID, reason string) (domain.Alert, error)
}

// Options son los defaults que aplica la API cuando la petición no los trae.
type Options struct {
	Policy          domain.Policy
	Sports          []string
	TotalStake      float64
	MinProfitMargin float64
	CORSOrigins     []string
	RequestTimeout  time.Duration
	// Metrics se monta en /metrics si no es nil.
	Metrics http.Handler
}

// New construye el router con middlewares y rutas.
func New(svc Service, opts Options) http.Handler {
	if opts.TotalStake <= 0 {
		opts.TotalStake = 100
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	h := &handler{svc: svc, opts: opts}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/value-bets/sport/{sport}", h.scanSport)
		r.Get("/value-bets/scan-all", h.scanAll)

		r.Get("/arbitrage/markets/{marketID}", h.findArbitrage)
		r.Get("/arbitrage/sport/{sport}", h.scanArbitrage)

		r.Get("/statistics/{userID}", h.statistics)

		r.Get("/alerts/summary", h.alertSummary)
		r.Post("/alerts/{alertID}/taken", h.markTaken)
		r.Post("/alerts/{alertID}/invalidate", h.invalidate)
	})
	return r
}
