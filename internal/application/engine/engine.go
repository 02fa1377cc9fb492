package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// ErrNoAlertStore se devuelve en operaciones de alertas cuando el engine no tiene store.
var ErrNoAlertStore = errors.New("engine: no alert store configured")

// Config contiene los parámetros del engine que no dependen de la petición.
type Config struct {
	AnalysisWorkers int
	// SportWorkers limita los deportes escaneados en paralelo en ScanAll (0 = todos).
	SportWorkers int
	// ArbitrageHorizon es la ventana de eventos que recorre ScanArbitrage.
	ArbitrageHorizon time.Duration
	// ArbitrageMarketTypes restringe los mercados de ScanArbitrage (vacío = h2h).
	ArbitrageMarketTypes []string
}

// Recorder recibe las métricas de cada operación. Lo implementa internal/metrics.
type Recorder interface {
	ObserveScan(sport string, d time.Duration, res scanner.ScanResult, err error)
	ObserveArbitrage(sport string, found int)
	ObserveExpired(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScan(string, time.Duration, scanner.ScanResult, error) {}
func (nopRecorder) ObserveArbitrage(string, int)                                  {}
func (nopRecorder) ObserveExpired(int)                                            {}

// Deps agrupa los puertos que usa el engine. Alerts y Bets son opcionales.
type Deps struct {
	Events      ports.EventSource
	Quotes      ports.QuoteSource
	Predictions ports.PredictionSource
	Alerts      ports.AlertStore
	Bets        ports.BetHistory
	Metrics     Recorder
}

// Engine expone las operaciones públicas: escaneo de value bets, arbitraje,
// estadísticas y ciclo de vida de alertas.
type Engine struct {
	cfg     Config
	deps    Deps
	scanner *scanner.Scanner
	metrics Recorder
	now     func() time.Time
}

// New crea un Engine. El AlertSink del scanner es el AlertStore, si existe.
func New(cfg Config, deps Deps) *Engine {
	if cfg.ArbitrageHorizon <= 0 {
		cfg.ArbitrageHorizon = domain.DefaultPolicy().Horizon
	}
	if len(cfg.ArbitrageMarketTypes) == 0 {
		cfg.ArbitrageMarketTypes = []string{domain.MarketTypeMatchWinner}
	}

	var sc *scanner.Scanner
	if deps.Alerts != nil {
		sc = scanner.New(scanner.Config{AnalysisWorkers: cfg.AnalysisWorkers}, deps.Quotes, deps.Predictions, deps.Alerts)
	} else {
		sc = scanner.New(scanner.Config{AnalysisWorkers: cfg.AnalysisWorkers}, deps.Quotes, deps.Predictions, nil)
	}

	rec := deps.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Engine{cfg: cfg, deps: deps, scanner: sc, metrics: rec, now: time.Now}
}

// SetClock reemplaza el reloj del engine y de su scanner (tests).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.scanner.SetClock(now)
}

// ScanSport escanea los eventos próximos de un deporte.
func (e *Engine) ScanSport(ctx context.Context, sport string, policy domain.Policy) (scanner.ScanResult, error) {
	start := time.Now()
	res, err := e.scanSport(ctx, sport, policy)
	e.metrics.ObserveScan(sport, time.Since(start), res, err)
	return res, err
}

func (e *Engine) scanSport(ctx context.Context, sport string, policy domain.Policy) (scanner.ScanResult, error) {
	policy = policy.WithDefaults()
	now := e.now()

	events, err := e.deps.Events.ListUpcoming(ctx, sport, now, now.Add(policy.Horizon))
	if err != nil {
		if ctx.Err() != nil {
			return scanner.ScanResult{}, err
		}
		return scanner.ScanResult{}, fmt.Errorf("engine.ScanSport: %s: list events: %w: %w",
			sport, domain.ErrUpstreamUnavailable, err)
	}

	res, err := e.scanner.Scan(ctx, events, policy)
	if err != nil {
		return res, fmt.Errorf("engine.ScanSport: %s: %w", sport, err)
	}
	return res, nil
}

// ScanAllResult es la concatenación de los escaneos por deporte.
type ScanAllResult struct {
	// Opportunities de todos los deportes, reordenadas por valor.
	Opportunities []domain.ValueOpportunity
	BySport       map[string]scanner.ScanResult
	SportErrors   map[string]error
}

// ScanAll escanea varios deportes en paralelo. El fallo de un deporte no afecta a los
// demás: su error queda en SportErrors y el error devuelto es la unión de todos.
func (e *Engine) ScanAll(ctx context.Context, sports []string, policy domain.Policy) (ScanAllResult, error) {
	type sportOutcome struct {
		res scanner.ScanResult
		err error
	}
	outcomes := make([]sportOutcome, len(sports))

	var g errgroup.Group
	if e.cfg.SportWorkers > 0 {
		g.SetLimit(e.cfg.SportWorkers)
	}
	for i, sport := range sports {
		g.Go(func() error {
			res, err := e.ScanSport(ctx, sport, policy)
			outcomes[i] = sportOutcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := ScanAllResult{
		BySport:     make(map[string]scanner.ScanResult, len(sports)),
		SportErrors: make(map[string]error),
	}
	var errs []error
	for i, sport := range sports {
		o := outcomes[i]
		out.BySport[sport] = o.res
		out.Opportunities = append(out.Opportunities, o.res.Opportunities...)
		if o.err != nil {
			out.SportErrors[sport] = o.err
			errs = append(errs, o.err)
			slog.Warn("sport scan failed", "sport", sport, "err", o.err)
		}
	}
	out.Opportunities = domain.RankByValue(out.Opportunities)

	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// FindArbitrage resuelve el arbitraje de un mercado con las mejores cotizaciones
// actuales. Devuelve (nil, nil) si no hay arbitraje o faltan cotizaciones.
func (e *Engine) FindArbitrage(ctx context.Context, marketID string, totalStake float64) (*domain.ArbitrageOpportunity, error) {
	ev, m, err := e.deps.Events.GetMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("engine.FindArbitrage: %w", err)
	}
	arb, err := e.solveMarket(ctx, ev, m, totalStake)
	if err != nil {
		return nil, fmt.Errorf("engine.FindArbitrage: %w", err)
	}
	return arb, nil
}

func (e *Engine) solveMarket(ctx context.Context, ev domain.Event, m domain.Market, totalStake float64) (*domain.ArbitrageOpportunity, error) {
	if totalStake <= 0 {
		return nil, fmt.Errorf("total stake %v: %w", totalStake, domain.ErrInvalidInput)
	}
	quotes, err := e.deps.Quotes.ListActiveQuotes(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("list quotes %s: %w: %w", m.ID, domain.ErrUpstreamUnavailable, err)
	}
	legs, ok := domain.BestLegs(quotes, m.Outcomes)
	if !ok || len(legs) < 2 {
		return nil, nil
	}
	arb, err := domain.SolveArbitrage(legs, totalStake)
	if err != nil || arb == nil {
		return nil, err
	}
	arb.EventID = ev.ID
	arb.MarketID = m.ID
	return arb, nil
}

// ScanArbitrage recorre los mercados de los eventos próximos del deporte y devuelve
// los arbitrajes con margen >= minProfitMargin (fracción), ordenados por margen desc.
// limit <= 0 no limita.
func (e *Engine) ScanArbitrage(ctx context.Context, sport string, minProfitMargin, totalStake float64, limit int) ([]domain.ArbitrageOpportunity, error) {
	if math.IsNaN(minProfitMargin) || math.IsInf(minProfitMargin, 0) {
		return nil, fmt.Errorf("engine.ScanArbitrage: min profit margin %v: %w", minProfitMargin, domain.ErrInvalidInput)
	}
	now := e.now()
	events, err := e.deps.Events.ListUpcoming(ctx, sport, now, now.Add(e.cfg.ArbitrageHorizon))
	if err != nil {
		return nil, fmt.Errorf("engine.ScanArbitrage: %s: list events: %w: %w",
			sport, domain.ErrUpstreamUnavailable, err)
	}

	var (
		found []domain.ArbitrageOpportunity
		errs  []error
	)
	for _, ev := range events {
		if !ev.StartTime.After(now) {
			continue
		}
		for _, m := range ev.MarketsOfType(e.cfg.ArbitrageMarketTypes) {
			if err := ctx.Err(); err != nil {
				return sortArbitrage(found, limit), err
			}
			arb, err := e.solveMarket(ctx, ev, m, totalStake)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if arb != nil && arb.ProfitMargin() >= minProfitMargin {
				found = append(found, *arb)
			}
		}
	}

	found = sortArbitrage(found, limit)
	e.metrics.ObserveArbitrage(sport, len(found))
	if len(errs) > 0 {
		return found, fmt.Errorf("engine.ScanArbitrage: %s: %w", sport, errors.Join(errs...))
	}
	return found, nil
}

func sortArbitrage(arbs []domain.ArbitrageOpportunity, limit int) []domain.ArbitrageOpportunity {
	sort.Slice(arbs, func(i, j int) bool {
		a, b := arbs[i], arbs[j]
		if a.ProfitMarginPct != b.ProfitMarginPct {
			return a.ProfitMarginPct > b.ProfitMarginPct
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.MarketID < b.MarketID
	})
	if limit > 0 && len(arbs) > limit {
		arbs = arbs[:limit]
	}
	return arbs
}

// GetStatistics agrega las apuestas liquidadas del usuario en el período dado.
// Con AlertStore añade el rendimiento de las alertas que el usuario apostó.
func (e *Engine) GetStatistics(ctx context.Context, userID string, period domain.Period, groupBy domain.GroupBy) (domain.Statistics, error) {
	if e.deps.Bets == nil {
		return domain.Statistics{}, errors.New("engine.GetStatistics: no bet history configured")
	}
	w, err := domain.PeriodWindow(period, e.now())
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("engine.GetStatistics: %w", err)
	}
	bets, err := e.deps.Bets.ListSettled(ctx, userID, w)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("engine.GetStatistics: list bets: %w", err)
	}
	stats := domain.Aggregate(bets, groupBy, w)
	if e.deps.Alerts != nil {
		alerts, err := e.deps.Alerts.ListAlerts(ctx, "")
		if err != nil {
			return domain.Statistics{}, fmt.Errorf("engine.GetStatistics: list alerts: %w", err)
		}
		stats.ValueBets = domain.SummarizeValueBets(userID, alerts, bets, w)
	}
	return stats, nil
}

// AlertSummary resume todas las alertas persistidas.
func (e *Engine) AlertSummary(ctx context.Context) (domain.AlertSummary, error) {
	if e.deps.Alerts == nil {
		return domain.AlertSummary{}, ErrNoAlertStore
	}
	alerts, err := e.deps.Alerts.ListAlerts(ctx, "")
	if err != nil {
		return domain.AlertSummary{}, fmt.Errorf("engine.AlertSummary: %w", err)
	}
	return domain.SummarizeAlerts(alerts), nil
}

// ExpireAlerts pasa a EXPIRED las alertas ACTIVE cuyo evento ya empezó.
func (e *Engine) ExpireAlerts(ctx context.Context) (int, error) {
	if e.deps.Alerts == nil {
		return 0, ErrNoAlertStore
	}
	n, err := e.deps.Alerts.ExpireDue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("engine.ExpireAlerts: %w", err)
	}
	e.metrics.ObserveExpired(n)
	return n, nil
}

// MarkAlertTaken registra que el usuario apostó contra la alerta.
func (e *Engine) MarkAlertTaken(ctx context.Context, alertID, externalBetID string) (domain.Alert, error) {
	if e.deps.Alerts == nil {
		return domain.Alert{}, ErrNoAlertStore
	}
	return e.deps.Alerts.MarkTaken(ctx, alertID, externalBetID)
}

// InvalidateAlert retira una alerta ACTIVE con el motivo dado.
func (e *Engine) InvalidateAlert(ctx context.Context, alertID, reason string) (domain.Alert, error) {
	if e.deps.Alerts == nil {
		return domain.Alert{}, ErrNoAlertStore
	}
	return e.deps.Alerts.Invalidate(ctx, alertID, reason)
}
