package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alejandrodnm/valuebot/config"
	"github.com/alejandrodnm/valuebot/internal/adapters/feed"
	"github.com/alejandrodnm/valuebot/internal/adapters/notify"
	"github.com/alejandrodnm/valuebot/internal/adapters/postgres"
	"github.com/alejandrodnm/valuebot/internal/adapters/rediscache"
	"github.com/alejandrodnm/valuebot/internal/adapters/snapshot"
	"github.com/alejandrodnm/valuebot/internal/adapters/storage"
	"github.com/alejandrodnm/valuebot/internal/application/engine"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/metrics"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// store es lo que necesitan los comandos de la persistencia: alertas,
// historial de apuestas e importación. Lo implementan SQLite y Postgres.
type store interface {
	ports.AlertStore
	ports.BetHistory
	SaveSettledBets(ctx context.Context, bets []domain.SettledBet) error
	Close() error
}

type sources struct {
	events      ports.EventSource
	quotes      ports.QuoteSource
	predictions ports.PredictionSource
}

// app agrupa las dependencias ya construidas de un comando.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	store   store
	metrics *metrics.Metrics
	console *notify.Console
	closers []func() error
}

// newApp construye fuentes, store, métricas y engine según la configuración.
// withRuntime registra los collectors de Go/proceso (solo tiene sentido en serve).
func newApp(ctx context.Context, cfg *config.Config, out io.Writer, withRuntime bool) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: metrics.New(withRuntime),
		console: notify.NewConsoleWriter(out, cfg.Scanner.Table),
	}

	src, err := a.openSources(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	a.engine = engine.New(engine.Config{
		AnalysisWorkers:  cfg.Scanner.AnalysisWorkers,
		SportWorkers:     cfg.Scanner.SportWorkers,
		ArbitrageHorizon: cfg.Scanner.ArbitrageHorizon,
	}, engine.Deps{
		Events:      src.events,
		Quotes:      src.quotes,
		Predictions: src.predictions,
		Alerts:      st,
		Bets:        st,
		Metrics:     a.metrics,
	})
	return a, nil
}

func (a *app) openSources(ctx context.Context) (sources, error) {
	var src sources
	switch a.cfg.Source.Kind {
	case "feed":
		c := feed.NewClient(a.cfg.Source.BaseURL, feed.Options{
			RatePerSec: a.cfg.Source.RatePerSec,
			Burst:      a.cfg.Source.Burst,
			Timeout:    time.Duration(a.cfg.Source.TimeoutSeconds) * time.Second,
			APIKey:     a.cfg.Source.APIKey,
		})
		src = sources{events: c, quotes: c, predictions: c}
		slog.Info("using feed source", "base_url", a.cfg.Source.BaseURL)
	default:
		snap, err := snapshot.Load(a.cfg.Source.Snapshot)
		if err != nil {
			return sources{}, err
		}
		src = sources{events: snap, quotes: snap, predictions: snap}
		slog.Info("using snapshot source", "path", a.cfg.Source.Snapshot)
	}

	if a.cfg.Redis.Addr == "" {
		return src, nil
	}
	rdb, err := rediscache.NewClient(ctx, rediscache.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		// la caché es opcional: sin Redis se consulta la fuente directamente
		slog.Warn("redis unavailable, quote cache disabled", "err", err)
		return src, nil
	}
	a.closers = append(a.closers, rdb.Close)
	src.quotes = rediscache.NewQuoteCache(rdb, src.quotes, a.cfg.QuoteTTL())
	slog.Info("quote cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.QuoteTTL())
	return src, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (store, error) {
	switch cfg.Driver {
	case "postgres":
		st, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	default:
		st, err := storage.NewSQLiteStorage(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", cfg.DSN, err)
		}
		return st, nil
	}
}

// Close libera las conexiones en orden inverso.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
}
