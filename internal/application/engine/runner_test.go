package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	calls int
	last  []domain.ValueOpportunity
}

func (c *captureNotifier) Notify(_ context.Context, opps []domain.ValueOpportunity) error {
	c.calls++
	c.last = opps
	return nil
}

func TestRunner_Once(t *testing.T) {
	e, d := newTestEngine(t)
	n := &captureNotifier{}
	p := domain.DefaultPolicy()
	p.AutoCreateAlerts = true

	r := NewRunner(RunnerConfig{Sports: []string{"soccer_epl", "basketball_nba"}, Policy: p, Once: true}, e, n)
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 1, n.calls)
	assert.Len(t, n.last, 2)
	active, _ := d.alerts.ListAlerts(context.Background(), domain.AlertActive)
	assert.Len(t, active, 2)
}

func TestRunner_AllSportsFail(t *testing.T) {
	e, d := newTestEngine(t)
	d.events.fail = map[string]error{"soccer_epl": errors.New("down")}

	r := NewRunner(RunnerConfig{Sports: []string{"soccer_epl"}, Once: true}, e, nil)
	err := r.Run(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestRunner_StopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRunner(RunnerConfig{Sports: []string{"soccer_epl"}, Interval: 10 * time.Millisecond}, e, &captureNotifier{})
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunner_LogNewTracksSeen(t *testing.T) {
	e, _ := newTestEngine(t)
	r := NewRunner(RunnerConfig{}, e, nil)

	opp := domain.ValueOpportunity{EventID: "e1", MarketID: "m", Selection: "home", Bookmaker: "b"}
	r.logNew([]domain.ValueOpportunity{opp})
	assert.True(t, r.seen[opp.Key()])

	r.logNew(nil)
	assert.Empty(t, r.seen)
}
