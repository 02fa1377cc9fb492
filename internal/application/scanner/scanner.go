package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Config contiene la configuración del scanner.
type Config struct {
	AnalysisWorkers int // goroutines para evaluar eventos en paralelo (0 = NumCPU*2)
}

// AlertFailure registra una oportunidad que no se pudo persistir como alerta.
type AlertFailure struct {
	Key domain.AlertKey
	Err error
}

// ScanResult es el resultado de un escaneo. Puede venir parcialmente lleno junto a un error.
type ScanResult struct {
	// Opportunities ordenadas por ValuePercentage desc con desempate por clave natural.
	Opportunities []domain.ValueOpportunity
	// AlertIDs mapea cada oportunidad persistida al ID de su alerta ACTIVE.
	AlertIDs      map[domain.AlertKey]string
	AlertFailures []AlertFailure
	EventErrors   []EventError
	Skipped       []Skip
	EventsScanned int
}

// Scanner detecta value bets sobre un conjunto de eventos.
type Scanner struct {
	cfg      Config
	analyzer *Analyzer
	sink     ports.AlertSink
	now      func() time.Time
}

// New crea un Scanner. sink puede ser nil: en ese caso AutoCreateAlerts no persiste nada.
func New(cfg Config, quotes ports.QuoteSource, predictions ports.PredictionSource, sink ports.AlertSink) *Scanner {
	return &Scanner{
		cfg:      cfg,
		analyzer: NewAnalyzer(quotes, predictions),
		sink:     sink,
		now:      time.Now,
	}
}

// SetClock reemplaza el reloj usado para la ventana de horizonte (tests).
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Scan evalúa los eventos y devuelve las oportunidades que superan la política.
//
// Pasos: ventana de horizonte → top MaxEvents por (StartTime, ID) → worker pool →
// ranking → upsert de alertas si AutoCreateAlerts.
//
// Un evento cuyo upstream falla se omite y se registra en EventErrors; el error devuelto
// es la unión de todos ellos (errors.Is(err, domain.ErrUpstreamUnavailable) == true) y
// acompaña al resultado parcial. Si el contexto se cancela se devuelve lo ya calculado
// junto a ctx.Err().
func (s *Scanner) Scan(ctx context.Context, events []domain.Event, policy domain.Policy) (ScanResult, error) {
	policy = policy.WithDefaults()
	if err := policy.Validate(); err != nil {
		return ScanResult{}, fmt.Errorf("scanner.Scan: %w", err)
	}

	selected := selectEvents(events, s.now(), policy)
	res := ScanResult{EventsScanned: len(selected)}

	outcomes := analyzeEventsConcurrent(ctx, s.analyzer, selected, policy, s.cfg.AnalysisWorkers)

	var opps []domain.ValueOpportunity
	for _, o := range outcomes {
		opps = append(opps, o.opps...)
		res.Skipped = append(res.Skipped, o.skipped...)
		if o.err != nil && !(ctx.Err() != nil && isContextErr(o.err)) {
			res.EventErrors = append(res.EventErrors, EventError{EventID: o.eventID, Err: o.err})
		}
	}
	sort.Slice(res.EventErrors, func(i, j int) bool { return res.EventErrors[i].EventID < res.EventErrors[j].EventID })
	sortSkipped(res.Skipped)

	res.Opportunities = domain.RankByValue(opps)

	for _, sk := range res.Skipped {
		slog.Warn("prediction skipped",
			"event_id", sk.EventID,
			"market_id", sk.MarketID,
			"selection", sk.Selection,
			"err", sk.Err,
		)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if policy.AutoCreateAlerts && s.sink != nil {
		s.persistAlerts(ctx, &res)
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}

	if len(res.EventErrors) > 0 {
		errs := make([]error, 0, len(res.EventErrors))
		for _, e := range res.EventErrors {
			errs = append(errs, e)
		}
		return res, fmt.Errorf("scanner.Scan: %d of %d events failed: %w",
			len(res.EventErrors), len(selected), errors.Join(errs...))
	}
	return res, nil
}

// persistAlerts hace upsert de cada oportunidad en orden de ranking.
// Un fallo no aborta el resto: se registra en AlertFailures.
func (s *Scanner) persistAlerts(ctx context.Context, res *ScanResult) {
	res.AlertIDs = make(map[domain.AlertKey]string, len(res.Opportunities))
	for _, opp := range res.Opportunities {
		if ctx.Err() != nil {
			return
		}
		id, err := s.sink.UpsertActive(ctx, opp)
		if err != nil {
			res.AlertFailures = append(res.AlertFailures, AlertFailure{Key: opp.Key(), Err: err})
			if errors.Is(err, domain.ErrPersistenceConflict) {
				slog.Warn("alert upsert conflict", "key", opp.Key().String(), "err", err)
			} else {
				slog.Error("alert upsert failed", "key", opp.Key().String(), "err", err)
			}
			continue
		}
		res.AlertIDs[opp.Key()] = id
	}
}

// selectEvents aplica la ventana now < StartTime <= now+Horizon y se queda con los
// MaxEvents más próximos, desempatando por ID.
func selectEvents(events []domain.Event, now time.Time, policy domain.Policy) []domain.Event {
	limit := now.Add(policy.Horizon)
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if !ev.StartTime.After(now) || ev.StartTime.After(limit) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > policy.MaxEvents {
		out = out[:policy.MaxEvents]
	}
	return out
}

func sortSkipped(sk []Skip) {
	sort.Slice(sk, func(i, j int) bool {
		a, b := sk[i], sk[j]
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		return a.Selection < b.Selection
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
