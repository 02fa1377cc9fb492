package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// RunnerConfig contiene la configuración del loop periódico.
type RunnerConfig struct {
	Interval time.Duration
	Sports   []string
	Policy   domain.Policy
	Once     bool // un solo ciclo y salir
}

// Runner ejecuta ScanAll cada Interval, notifica el resultado y expira alertas vencidas.
type Runner struct {
	cfg      RunnerConfig
	engine   *Engine
	notifier ports.Notifier
	seen     map[domain.AlertKey]bool // oportunidades del ciclo anterior, para loguear solo las nuevas
}

// NewRunner crea un Runner. notifier puede ser nil.
func NewRunner(cfg RunnerConfig, e *Engine, notifier ports.Notifier) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Runner{
		cfg:      cfg,
		engine:   e,
		notifier: notifier,
		seen:     make(map[domain.AlertKey]bool),
	}
}

// Run ejecuta el loop hasta que el contexto se cancele.
// Si cfg.Once está activo, solo ejecuta un ciclo y devuelve su error.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("runner starting",
		"interval", r.cfg.Interval,
		"sports", r.cfg.Sports,
		"once", r.cfg.Once,
	)

	if err := r.RunCycle(ctx); err != nil {
		slog.Error("scan cycle failed", "err", err)
		if r.cfg.Once {
			return err
		}
	}
	if r.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("runner stopped")
			return nil
		case <-ticker.C:
			if err := r.RunCycle(ctx); err != nil {
				slog.Error("scan cycle failed", "err", err)
			}
		}
	}
}

// RunCycle ejecuta un ciclo completo: expirar → escanear → notificar.
// Los fallos parciales de escaneo se loguean; solo devuelve error si no hubo resultado.
func (r *Runner) RunCycle(ctx context.Context) error {
	start := time.Now()

	expired, err := r.engine.ExpireAlerts(ctx)
	if err != nil && !errors.Is(err, ErrNoAlertStore) {
		slog.Warn("expire alerts failed", "err", err)
	}

	res, err := r.engine.ScanAll(ctx, r.cfg.Sports, r.cfg.Policy)
	if err != nil {
		if len(res.SportErrors) == len(r.cfg.Sports) {
			return err
		}
		slog.Warn("scan completed with errors", "failed_sports", len(res.SportErrors), "err", err)
	}

	r.logNew(res.Opportunities)

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, res.Opportunities); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	alerts := 0
	for _, s := range res.BySport {
		alerts += len(s.AlertIDs)
	}
	slog.Info("scan cycle complete",
		"opportunities", len(res.Opportunities),
		"alerts_upserted", alerts,
		"alerts_expired", expired,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// logNew registra las oportunidades que no estaban en el ciclo anterior.
func (r *Runner) logNew(opps []domain.ValueOpportunity) {
	current := make(map[domain.AlertKey]bool, len(opps))
	for _, o := range opps {
		k := o.Key()
		current[k] = true
		if r.seen[k] {
			continue
		}
		slog.Warn("NEW VALUE BET",
			"event", o.EventName,
			"selection", o.Selection,
			"bookmaker", o.Bookmaker,
			"odds", o.Odds,
			"value_pct", fmt.Sprintf("%.2f%%", o.ValuePercentage),
			"starts", o.ExpiresAt.Format(time.RFC3339),
		)
	}
	r.seen = current
}
