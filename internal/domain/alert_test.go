package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAlert(status AlertStatus) Alert {
	opp := ValueOpportunity{
		EventID: "e1", MarketID: "m1", Selection: "home", Bookmaker: "pinnacle",
		SportKey: "soccer_epl", Odds: 2.2, ValuePercentage: 8, ExpiresAt: t0.Add(time.Hour),
	}
	a := NewActiveAlert("a1", opp, t0)
	a.Status = status
	return a
}

func TestAlertTransition_FromActive(t *testing.T) {
	later := t0.Add(time.Minute)
	for _, to := range []AlertStatus{AlertTaken, AlertExpired, AlertInvalid} {
		a, err := makeAlert(AlertActive).Transition(to, later)
		require.NoError(t, err)
		assert.Equal(t, to, a.Status)
		assert.Equal(t, later, a.UpdatedAt)
		assert.Equal(t, t0, a.CreatedAt)
	}
}

func TestAlertTransition_TerminalIsFinal(t *testing.T) {
	for _, from := range []AlertStatus{AlertTaken, AlertExpired, AlertInvalid} {
		for _, to := range []AlertStatus{AlertActive, AlertTaken, AlertExpired, AlertInvalid} {
			a, err := makeAlert(from).Transition(to, t0)
			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, from, a.Status)
		}
	}
}

func TestAlertTransition_ActiveToActiveRejected(t *testing.T) {
	_, err := makeAlert(AlertActive).Transition(AlertActive, t0)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestAlertDue(t *testing.T) {
	a := makeAlert(AlertActive)
	assert.False(t, a.Due(t0))
	assert.True(t, a.Due(t0.Add(time.Hour)))
	assert.False(t, makeAlert(AlertTaken).Due(t0.Add(2*time.Hour)))
}

func TestNewActiveAlert(t *testing.T) {
	a := makeAlert(AlertActive)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, "e1/m1/home@pinnacle", a.AlertKey.String())
	assert.Equal(t, "soccer_epl", a.SportKey)
	assert.Equal(t, t0.Add(time.Hour), a.ExpiresAt)
}

// --- Policy ---

func TestPolicy_WithDefaults(t *testing.T) {
	p := Policy{MinValue: 0, MinConfidence: 0}.WithDefaults()
	d := DefaultPolicy()
	assert.Equal(t, d.MaxEvents, p.MaxEvents)
	assert.Equal(t, d.MinOdds, p.MinOdds)
	assert.Equal(t, d.MaxOdds, p.MaxOdds)
	assert.Equal(t, d.MarketTypes, p.MarketTypes)
	assert.Equal(t, 48*time.Hour, p.Horizon)
	assert.Equal(t, 0.0, p.MinValue)
	assert.NoError(t, p.Validate())
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"min odds above max", func(p *Policy) { p.MinOdds, p.MaxOdds = 5, 2 }},
		{"confidence above 1", func(p *Policy) { p.MinConfidence = 1.5 }},
		{"zero max events", func(p *Policy) { p.MaxEvents = 0 }},
		{"zero horizon", func(p *Policy) { p.Horizon = 0 }},
		{"NaN min value", func(p *Policy) { p.MinValue = math.NaN() }},
		{"-Inf min value", func(p *Policy) { p.MinValue = math.Inf(-1) }},
		{"NaN min confidence", func(p *Policy) { p.MinConfidence = math.NaN() }},
		{"NaN min odds", func(p *Policy) { p.MinOdds = math.NaN() }},
		{"+Inf max odds", func(p *Policy) { p.MaxOdds = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.True(t, errors.Is(p.Validate(), ErrInvalidInput))
		})
	}
}

func TestPolicy_WithDefaultsKeepsNaN(t *testing.T) {
	p := Policy{MinOdds: math.NaN()}.WithDefaults()
	assert.True(t, errors.Is(p.Validate(), ErrInvalidInput))
}

func TestPolicy_AcceptsOdds(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.AcceptsOdds(1.1))
	assert.True(t, p.AcceptsOdds(10))
	assert.False(t, p.AcceptsOdds(1.05))
	assert.False(t, p.AcceptsOdds(12))
}
