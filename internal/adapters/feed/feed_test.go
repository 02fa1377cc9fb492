package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/valuebot/internal/adapters/feed"
	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var from = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(srv *httptest.Server) *feed.Client {
	return feed.NewClient(srv.URL, feed.Options{RatePerSec: 1000, Burst: 100, RetryWait: time.Millisecond})
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestFeed_ListUpcoming(t *testing.T) {
	fixture := `{"events": [
		{"id": "late", "sport_key": "soccer_epl", "home_team": "A", "away_team": "B",
		 "commence_time": "2026-03-01T16:00:00Z", "markets": [{"id": "late-h2h"}]},
		{"id": "early", "sport_key": "soccer_epl", "home_team": "C", "away_team": "D",
		 "commence_time": "2026-03-01T14:00:00Z", "markets": [{"id": "early-h2h", "type": "totals"}]},
		{"id": "edge", "sport_key": "soccer_epl", "commence_time": "2026-03-01T12:00:00Z"}
	]}`

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events", r.URL.Path)
		gotQuery = r.URL.RawQuery
		jsonHandler(fixture)(w, r)
	}))
	defer srv.Close()

	evs, err := newTestClient(srv).ListUpcoming(context.Background(), "soccer_epl", from, from.Add(48*time.Hour))
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "sport=soccer_epl")
	require.Len(t, evs, 2, "el evento en el borde from se descarta")
	assert.Equal(t, "early", evs[0].ID)
	assert.Equal(t, "totals", evs[0].Markets[0].Type)
	assert.Equal(t, domain.MarketTypeMatchWinner, evs[1].Markets[0].Type)
	assert.Equal(t, "late", evs[1].Markets[0].EventID)
	assert.Equal(t, "A vs B", evs[1].DisplayName())
}

func TestFeed_ListActiveQuotes(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"quotes": [
		{"bookmaker": "bet365", "selection": "home", "odds": 2.1, "last_update": "2026-03-01T11:00:00Z"},
		{"bookmaker": "pinnacle", "selection": "home", "odds": 2.3, "active": false}
	]}`))
	defer srv.Close()

	quotes, err := newTestClient(srv).ListActiveQuotes(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "bet365", quotes[0].Platform)
	assert.True(t, quotes[0].Active)
	assert.Equal(t, 2.1, quotes[0].DecimalOdds)
}

func TestFeed_ListUnresolved(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"predictions": [
		{"event_id": "e1", "market_id": "m1", "selection": "home", "predicted_probability": 0.55},
		{"event_id": "e1", "market_id": "m1", "selection": "away", "predicted_probability": 0.3, "confidence": 0.9, "estimated_margin": 0.02},
		{"event_id": "e1", "market_id": "m1", "selection": "draw", "predicted_probability": 0.15, "resolved": true}
	]}`))
	defer srv.Close()

	preds, err := newTestClient(srv).ListUnresolved(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, domain.DefaultConfidence, preds[0].Confidence)
	assert.Nil(t, preds[0].EstimatedMargin)
	assert.Equal(t, 0.9, preds[1].Confidence)
	require.NotNil(t, preds[1].EstimatedMargin)
	assert.Equal(t, 0.02, *preds[1].EstimatedMargin)
}

func TestFeed_GetMarket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/markets/m1" {
			http.NotFound(w, r)
			return
		}
		jsonHandler(`{"event": {"id": "e1", "name": "Final"}, "market": {"id": "m1", "outcomes": ["home", "away"]}}`)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	ev, m, err := c.GetMarket(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Final", ev.DisplayName())
	assert.Equal(t, "e1", m.EventID)
	assert.Equal(t, []string{"home", "away"}, m.Outcomes)

	_, _, err = c.GetMarket(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFeed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		jsonHandler(`{"quotes": []}`)(w, r)
	}))
	defer srv.Close()

	quotes, err := newTestClient(srv).ListActiveQuotes(context.Background(), "m1")
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFeed_UpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListUnresolved(context.Background(), "e1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestFeed_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad sport", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ListUpcoming(context.Background(), "x", from, from.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sport")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFeed_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"quotes": []}`))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).ListActiveQuotes(ctx, "m1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}
