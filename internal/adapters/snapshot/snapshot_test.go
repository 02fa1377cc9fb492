package snapshot_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/valuebot/internal/adapters/snapshot"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const doc = `
events:
  - id: ars-che
    sport: soccer_epl
    home_team: Arsenal
    away_team: Chelsea
    starts_in: 3h
    markets:
      - id: ars-che-h2h
        outcomes: [Arsenal, Draw, Chelsea]
        quotes:
          - {platform: bet365, selection: Arsenal, odds: 2.1}
          - {platform: pinnacle, selection: Arsenal, odds: 2.2, active: false}
          - {platform: bet365, selection: Draw, odds: 3.4}
  - id: lal-bos
    sport: basketball_nba
    start_time: 2026-03-03T01:00:00Z
    markets:
      - id: lal-bos-h2h
        type: h2h
predictions:
  - {event_id: ars-che, market_id: ars-che-h2h, selection: Arsenal, probability: 0.55}
  - {event_id: ars-che, market_id: ars-che-h2h, selection: Draw, probability: 0.25, confidence: 0.9, estimated_margin: 0.03}
  - {event_id: ars-che, market_id: ars-che-h2h, selection: Chelsea, probability: 0.2, resolved: true}
bets:
  - {id: b1, user_id: u1, sport: soccer_epl, platform: bet365, stake: 10, actual_win: 21, status: won, placed_at: 2026-02-28T10:00:00Z}
  - {id: b2, user_id: u2, sport: soccer_epl, platform: bet365, stake: 10, status: LOST, placed_at: 2026-02-28T11:00:00Z}
`

func TestParse_Events(t *testing.T) {
	s, err := snapshot.Parse([]byte(doc), now)
	require.NoError(t, err)

	evs, err := s.ListUpcoming(context.Background(), "soccer_epl", now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, now.Add(3*time.Hour), evs[0].StartTime)
	assert.Equal(t, "Arsenal vs Chelsea", evs[0].DisplayName())
	require.Len(t, evs[0].Markets, 1)
	assert.Equal(t, domain.MarketTypeMatchWinner, evs[0].Markets[0].Type)

	all, err := s.ListUpcoming(context.Background(), "", now, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := s.ListUpcoming(context.Background(), "", now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParse_QuotesAndPredictions(t *testing.T) {
	s, err := snapshot.Parse([]byte(doc), now)
	require.NoError(t, err)

	quotes, err := s.ListActiveQuotes(context.Background(), "ars-che-h2h")
	require.NoError(t, err)
	assert.Len(t, quotes, 2, "la quote inactiva no se devuelve")
	assert.Equal(t, now, quotes[0].ObservedAt)

	preds, err := s.ListUnresolved(context.Background(), "ars-che")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, domain.DefaultConfidence, preds[0].Confidence)
	assert.Nil(t, preds[0].EstimatedMargin)
	assert.Equal(t, 0.9, preds[1].Confidence)
	require.NotNil(t, preds[1].EstimatedMargin)
	assert.Equal(t, 0.03, *preds[1].EstimatedMargin)
}

func TestGetMarket(t *testing.T) {
	s, err := snapshot.Parse([]byte(doc), now)
	require.NoError(t, err)

	ev, m, err := s.GetMarket(context.Background(), "ars-che-h2h")
	require.NoError(t, err)
	assert.Equal(t, "ars-che", ev.ID)
	assert.Equal(t, []string{"Arsenal", "Draw", "Chelsea"}, m.Outcomes)

	_, _, err = s.GetMarket(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListSettled(t *testing.T) {
	s, err := snapshot.Parse([]byte(doc), now)
	require.NoError(t, err)

	w := domain.Window{Start: now.Add(-48 * time.Hour), End: now}
	bets, err := s.ListSettled(context.Background(), "u1", w)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, domain.BetWon, bets[0].Status)

	all, err := s.ListSettled(context.Background(), "", w)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, s.Bets(), 2)
}

func TestParse_InvalidBetStatus(t *testing.T) {
	_, err := snapshot.Parse([]byte(`bets: [{id: x, status: pending}]`), now)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestParse_DuplicateMarket(t *testing.T) {
	_, err := snapshot.Parse([]byte(`
events:
  - {id: a, markets: [{id: m}]}
  - {id: b, markets: [{id: m}]}
`), now)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
