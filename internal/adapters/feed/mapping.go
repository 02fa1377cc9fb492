package feed

import (
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// mapEvent convierte un eventDTO a domain.Event.
func mapEvent(r eventDTO) domain.Event {
	ev := domain.Event{
		ID:        r.ID,
		SportKey:  r.SportKey,
		Name:      r.Name,
		HomeTeam:  r.HomeTeam,
		AwayTeam:  r.AwayTeam,
		StartTime: r.StartTime.UTC(),
		Markets:   make([]domain.Market, 0, len(r.Markets)),
	}
	for _, m := range r.Markets {
		ev.Markets = append(ev.Markets, mapMarket(r.ID, m))
	}
	return ev
}

func mapMarket(eventID string, r marketDTO) domain.Market {
	typ := r.Type
	if typ == "" {
		typ = domain.MarketTypeMatchWinner
	}
	return domain.Market{ID: r.ID, EventID: eventID, Type: typ, Outcomes: r.Outcomes}
}

// mapQuotes descarta las quotes inactivas. Active ausente = activa.
func mapQuotes(raw []quoteDTO) []domain.Quote {
	out := make([]domain.Quote, 0, len(raw))
	for _, r := range raw {
		active := r.Active == nil || *r.Active
		if !active {
			continue
		}
		out = append(out, domain.Quote{
			Platform:    r.Platform,
			Selection:   r.Selection,
			DecimalOdds: r.Odds,
			ObservedAt:  r.ObservedAt.UTC(),
			Active:      true,
		})
	}
	return out
}

// mapPredictions descarta las resueltas y aplica DefaultConfidence si falta.
func mapPredictions(raw []predictionDTO) []domain.Prediction {
	out := make([]domain.Prediction, 0, len(raw))
	for _, r := range raw {
		if r.Resolved {
			continue
		}
		conf := domain.DefaultConfidence
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		out = append(out, domain.Prediction{
			EventID:         r.EventID,
			MarketID:        r.MarketID,
			Selection:       r.Selection,
			Probability:     r.Probability,
			Confidence:      conf,
			EstimatedMargin: r.EstimatedMargin,
		})
	}
	return out
}
