package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marginPtr(v float64) *float64 { return &v }

// --- Evaluate ---

func TestEvaluate_FullConfidence(t *testing.T) {
	// 0.6 × 2.0 − 1 = 0.2; con confianza 1 no hay penalización por margen
	r, err := Evaluate(Prediction{Probability: 0.6, Confidence: 1}, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.ImpliedProbability, 1e-9)
	assert.InDelta(t, 0.2, r.RawEdge, 1e-9)
	assert.InDelta(t, 0.2, r.ConfidenceAdjustedEdge, 1e-9)
	assert.InDelta(t, 0.2, r.AdjustedEdge, 1e-9)
	assert.InDelta(t, 20.0, r.ValuePercentage, 1e-9)
	assert.Equal(t, r.ValuePercentage, r.ExpectedValue)
}

func TestEvaluate_DefaultMarginPenalty(t *testing.T) {
	// raw 0.2 × 0.7 = 0.14; 0.14 − 0.05 × 0.3 = 0.125
	r, err := Evaluate(Prediction{Probability: 0.6, Confidence: 0.7}, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.14, r.ConfidenceAdjustedEdge, 1e-9)
	assert.InDelta(t, 0.125, r.AdjustedEdge, 1e-9)
	assert.InDelta(t, 12.5, r.ValuePercentage, 1e-9)
}

func TestEvaluate_ExplicitMargin(t *testing.T) {
	r, err := Evaluate(Prediction{Probability: 0.6, Confidence: 0.5, EstimatedMargin: marginPtr(0.1)}, 2.0)
	require.NoError(t, err)
	// 0.1 − 0.1 × 0.5 = 0.05
	assert.InDelta(t, 0.05, r.AdjustedEdge, 1e-9)
}

func TestEvaluate_ZeroMarginIsRespected(t *testing.T) {
	r, err := Evaluate(Prediction{Probability: 0.6, Confidence: 0.5, EstimatedMargin: marginPtr(0)}, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, r.AdjustedEdge, 1e-9)
}

func TestEvaluate_ZeroConfidencePaysFullMargin(t *testing.T) {
	r, err := Evaluate(Prediction{Probability: 0.9, Confidence: 0}, 3.0)
	require.NoError(t, err)
	assert.InDelta(t, -DefaultEstimatedMargin, r.AdjustedEdge, 1e-9)
}

func TestEvaluate_AdjustedNeverExceedsRawWhenPositive(t *testing.T) {
	for _, c := range []float64{0, 0.25, 0.5, 0.75, 1} {
		r, err := Evaluate(Prediction{Probability: 0.55, Confidence: c}, 2.1)
		require.NoError(t, err)
		assert.LessOrEqual(t, r.AdjustedEdge, r.RawEdge+1e-12, "confidence %v", c)
	}
}

func TestEvaluate_InvalidInputs(t *testing.T) {
	cases := []struct {
		name string
		p    Prediction
		odds float64
	}{
		{"odds uno", Prediction{Probability: 0.5, Confidence: 1}, 1.0},
		{"odds menores que uno", Prediction{Probability: 0.5, Confidence: 1}, 0.8},
		{"odds NaN", Prediction{Probability: 0.5, Confidence: 1}, math.NaN()},
		{"odds infinitas", Prediction{Probability: 0.5, Confidence: 1}, math.Inf(1)},
		{"probabilidad cero", Prediction{Probability: 0, Confidence: 1}, 2.0},
		{"probabilidad uno", Prediction{Probability: 1, Confidence: 1}, 2.0},
		{"confianza negativa", Prediction{Probability: 0.5, Confidence: -0.1}, 2.0},
		{"confianza mayor que uno", Prediction{Probability: 0.5, Confidence: 1.1}, 2.0},
		{"margen uno", Prediction{Probability: 0.5, Confidence: 1, EstimatedMargin: marginPtr(1)}, 2.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.p, tc.odds)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

// --- Prediction.Margin ---

func TestPredictionMargin_Fallback(t *testing.T) {
	assert.Equal(t, DefaultEstimatedMargin, Prediction{}.Margin())
	assert.Equal(t, 0.02, Prediction{EstimatedMargin: marginPtr(0.02)}.Margin())
}

// --- RankByValue ---

func TestRankByValue_TotalOrder(t *testing.T) {
	opps := []ValueOpportunity{
		{EventID: "e2", MarketID: "m1", Selection: "home", Bookmaker: "b", ValuePercentage: 5},
		{EventID: "e1", MarketID: "m1", Selection: "home", Bookmaker: "b", ValuePercentage: 5},
		{EventID: "e1", MarketID: "m1", Selection: "away", Bookmaker: "b", ValuePercentage: 5},
		{EventID: "e3", MarketID: "m1", Selection: "home", Bookmaker: "a", ValuePercentage: 9},
		{EventID: "e1", MarketID: "m1", Selection: "away", Bookmaker: "a", ValuePercentage: 5},
	}
	ranked := RankByValue(opps)

	keys := make([]string, 0, len(ranked))
	for _, o := range ranked {
		keys = append(keys, o.Key().String())
	}
	assert.Equal(t, []string{
		"e3/m1/home@a",
		"e1/m1/away@a",
		"e1/m1/away@b",
		"e1/m1/home@b",
		"e2/m1/home@b",
	}, keys)
}

func TestNewValueOpportunity_CopiesFields(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	ev := Event{ID: "e1", SportKey: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea", StartTime: start}
	m := Market{ID: "m1", EventID: "e1", Type: MarketTypeMatchWinner}
	p := Prediction{EventID: "e1", MarketID: "m1", Selection: "Arsenal", Probability: 0.6, Confidence: 1}
	q := Quote{Platform: "pinnacle", Selection: "Arsenal", DecimalOdds: 2.0, Active: true}
	r, err := Evaluate(p, q.DecimalOdds)
	require.NoError(t, err)

	opp := NewValueOpportunity(ev, m, p, q, r)
	assert.Equal(t, "Arsenal vs Chelsea", opp.EventName)
	assert.Equal(t, "pinnacle", opp.Bookmaker)
	assert.Equal(t, start, opp.ExpiresAt)
	assert.Equal(t, AlertKey{EventID: "e1", MarketID: "m1", Selection: "Arsenal", Bookmaker: "pinnacle"}, opp.Key())
	assert.InDelta(t, 20.0, opp.ValuePercentage, 1e-9)
}
