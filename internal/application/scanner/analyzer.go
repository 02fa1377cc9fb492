package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// Skip registra una predicción descartada por datos inválidos (odds <= 1, p fuera de (0,1)...).
type Skip struct {
	EventID   string
	MarketID  string
	Selection string
	Bookmaker string
	Err       error
}

// EventError registra un evento que no se pudo evaluar por fallo de un upstream.
type EventError struct {
	EventID string
	Err     error
}

func (e EventError) Error() string { return "event " + e.EventID + ": " + e.Err.Error() }

func (e EventError) Unwrap() error { return e.Err }

// eventResult es el resultado de evaluar un evento completo.
type eventResult struct {
	opps    []domain.ValueOpportunity
	skipped []Skip
	err     error
}

// Analyzer evalúa las predicciones de un evento contra las mejores cotizaciones.
type Analyzer struct {
	quotes      ports.QuoteSource
	predictions ports.PredictionSource
}

// NewAnalyzer crea un Analyzer sobre las fuentes dadas.
func NewAnalyzer(quotes ports.QuoteSource, predictions ports.PredictionSource) *Analyzer {
	return &Analyzer{quotes: quotes, predictions: predictions}
}

// Analyze devuelve las oportunidades del evento que superan la política.
//
// Un fallo de QuoteSource o PredictionSource aborta solo este evento y se devuelve
// envuelto en domain.ErrUpstreamUnavailable. Las predicciones con datos inválidos
// se registran como Skip y el resto del evento sigue.
func (a *Analyzer) Analyze(ctx context.Context, ev domain.Event, policy domain.Policy) eventResult {
	var res eventResult

	preds, err := a.predictions.ListUnresolved(ctx, ev.ID)
	if err != nil {
		res.err = upstreamErr(ctx, "list predictions", err)
		return res
	}
	if len(preds) == 0 {
		return res
	}

	for _, m := range ev.MarketsOfType(policy.MarketTypes) {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}

		marketPreds := predictionsFor(preds, m.ID)
		if len(marketPreds) == 0 {
			continue
		}

		quotes, err := a.quotes.ListActiveQuotes(ctx, m.ID)
		if err != nil {
			res.err = upstreamErr(ctx, "list quotes "+m.ID, err)
			return res
		}

		for _, p := range marketPreds {
			if p.Confidence < policy.MinConfidence {
				continue
			}
			best, ok := domain.SelectBest(quotes, p.Selection)
			if !ok {
				continue
			}
			r, err := domain.Evaluate(p, best.DecimalOdds)
			if err != nil {
				res.skipped = append(res.skipped, Skip{
					EventID:   ev.ID,
					MarketID:  m.ID,
					Selection: p.Selection,
					Bookmaker: best.Platform,
					Err:       err,
				})
				continue
			}
			if !policy.AcceptsOdds(best.DecimalOdds) {
				continue
			}
			if r.AdjustedEdge < policy.MinValue {
				continue
			}
			res.opps = append(res.opps, domain.NewValueOpportunity(ev, m, p, best, r))
		}
	}
	return res
}

// predictionsFor devuelve las predicciones no resueltas del mercado, una por selección.
// Una predicción sin MarketID aplica a todos los mercados escaneados del evento, pero
// la específica del mercado la reemplaza. Entre dos del mismo tipo gana la primera.
func predictionsFor(preds []domain.Prediction, marketID string) []domain.Prediction {
	var out []domain.Prediction
	bySelection := make(map[string]int)
	for _, p := range preds {
		if p.Resolved || (p.MarketID != "" && p.MarketID != marketID) {
			continue
		}
		i, seen := bySelection[p.Selection]
		if !seen {
			bySelection[p.Selection] = len(out)
			out = append(out, p)
			continue
		}
		if out[i].MarketID == "" && p.MarketID != "" {
			out[i] = p
		}
	}
	return out
}

// upstreamErr envuelve err con ErrUpstreamUnavailable salvo que el escaneo se haya cancelado.
func upstreamErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
}
