package domain

import (
	"sort"
	"time"
)

// ValueOpportunity es una value bet detectada. Es derivada: se recalcula en cada
// escaneo y solo pasa a tener identidad propia cuando se persiste como Alert.
type ValueOpportunity struct {
	EventID   string
	MarketID  string
	SportKey  string
	EventName string
	Selection string
	Bookmaker string

	Odds                 float64
	ImpliedProbability   float64
	PredictedProbability float64
	Confidence           float64

	RawEdge         float64
	AdjustedEdge    float64
	ValuePercentage float64
	ExpectedValue   float64

	ExpiresAt time.Time // inicio del evento
}

// AlertKey es la clave natural de una alerta ACTIVE.
type AlertKey struct {
	EventID   string
	MarketID  string
	Selection string
	Bookmaker string
}

// String devuelve la clave en formato "event/market/selection@bookmaker".
func (k AlertKey) String() string {
	return k.EventID + "/" + k.MarketID + "/" + k.Selection + "@" + k.Bookmaker
}

// Key devuelve la clave natural de la oportunidad.
func (o ValueOpportunity) Key() AlertKey {
	return AlertKey{
		EventID:   o.EventID,
		MarketID:  o.MarketID,
		Selection: o.Selection,
		Bookmaker: o.Bookmaker,
	}
}

// NewValueOpportunity combina evento, mercado, predicción, quote y resultado de Evaluate.
func NewValueOpportunity(ev Event, m Market, p Prediction, q Quote, r ValueResult) ValueOpportunity {
	return ValueOpportunity{
		EventID:              ev.ID,
		MarketID:             m.ID,
		SportKey:             ev.SportKey,
		EventName:            ev.DisplayName(),
		Selection:            p.Selection,
		Bookmaker:            q.Platform,
		Odds:                 q.DecimalOdds,
		ImpliedProbability:   r.ImpliedProbability,
		PredictedProbability: p.Probability,
		Confidence:           p.Confidence,
		RawEdge:              r.RawEdge,
		AdjustedEdge:         r.AdjustedEdge,
		ValuePercentage:      r.ValuePercentage,
		ExpectedValue:        r.ExpectedValue,
		ExpiresAt:            ev.StartTime,
	}
}

// RankByValue ordena in-place por ValuePercentage descendente.
// Los empates se resuelven por la clave natural para que el orden sea total y
// dos escaneos del mismo snapshot den exactamente la misma lista.
func RankByValue(opps []ValueOpportunity) []ValueOpportunity {
	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.ValuePercentage != b.ValuePercentage {
			return a.ValuePercentage > b.ValuePercentage
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		if a.Selection != b.Selection {
			return a.Selection < b.Selection
		}
		return a.Bookmaker < b.Bookmaker
	})
	return opps
}
