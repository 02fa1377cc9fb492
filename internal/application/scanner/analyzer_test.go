package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_Analyze_Success(t *testing.T) {
	quotes, preds, events := fixture()
	a := NewAnalyzer(quotes, preds)

	res := a.Analyze(context.Background(), events[0], domain.DefaultPolicy())

	require.NoError(t, res.err)
	require.Len(t, res.opps, 1, "away tiene edge negativo")
	opp := res.opps[0]
	assert.Equal(t, "home", opp.Selection)
	assert.Equal(t, "pinnacle", opp.Bookmaker, "mejor cuota entre bookmakers")
	assert.Equal(t, 2.2, opp.Odds)
	assert.InDelta(t, 28.3, opp.ValuePercentage, 1e-9)
	assert.InDelta(t, 1/2.2, opp.ImpliedProbability, 1e-12)
	assert.Empty(t, res.skipped)
}

func TestAnalyzer_Analyze_NoPredictions(t *testing.T) {
	quotes, _, events := fixture()
	a := NewAnalyzer(quotes, &fakePredictions{})

	res := a.Analyze(context.Background(), events[0], domain.DefaultPolicy())
	assert.NoError(t, res.err)
	assert.Empty(t, res.opps)
}

func TestAnalyzer_Analyze_MarketWidePrediction(t *testing.T) {
	ev := makeEvent("e1", 2*time.Hour)
	quotes := &fakeQuotes{byMarket: map[string][]domain.Quote{
		"e1-h2h":    {q("bet365", "home", 2.2)},
		"e1-totals": {q("bet365", "home", 2.4)},
	}}
	p := makePrediction("e1", "home", 0.6, 1)
	p.MarketID = ""
	preds := &fakePredictions{byEvent: map[string][]domain.Prediction{"e1": {p}}}

	policy := domain.DefaultPolicy()
	policy.MarketTypes = []string{domain.MarketTypeMatchWinner, "totals"}

	res := NewAnalyzer(quotes, preds).Analyze(context.Background(), ev, policy)
	require.NoError(t, res.err)
	require.Len(t, res.opps, 2, "sin MarketID aplica a todos los mercados escaneados")
	assert.ElementsMatch(t, []string{"e1-h2h", "e1-totals"}, []string{res.opps[0].MarketID, res.opps[1].MarketID})
}

func TestAnalyzer_Analyze_MarketPredictionOverridesWide(t *testing.T) {
	ev := makeEvent("e1", 2*time.Hour)
	quotes := &fakeQuotes{byMarket: map[string][]domain.Quote{
		"e1-h2h": {q("b1", "home", 2.0)},
	}}
	wide := makePrediction("e1", "home", 0.8, 1)
	wide.MarketID = ""
	preds := &fakePredictions{byEvent: map[string][]domain.Prediction{
		"e1": {wide, makePrediction("e1", "home", 0.7, 1)},
	}}

	res := NewAnalyzer(quotes, preds).Analyze(context.Background(), ev, domain.DefaultPolicy())
	require.NoError(t, res.err)
	require.Len(t, res.opps, 1, "una oportunidad por clave natural")
	assert.InDelta(t, 40.0, res.opps[0].ValuePercentage, 1e-9)
	assert.Equal(t, 0.7, res.opps[0].PredictedProbability)
}

func TestScan_AlertMatchesReturnedOpportunity(t *testing.T) {
	ev := makeEvent("e1", 2*time.Hour)
	quotes := &fakeQuotes{byMarket: map[string][]domain.Quote{
		"e1-h2h": {q("b1", "home", 2.0)},
	}}
	wide := makePrediction("e1", "home", 0.8, 1)
	wide.MarketID = ""
	preds := &fakePredictions{byEvent: map[string][]domain.Prediction{
		"e1": {makePrediction("e1", "home", 0.7, 1), wide},
	}}
	sink := newFakeSink()
	policy := domain.DefaultPolicy()
	policy.AutoCreateAlerts = true

	res, err := newTestScanner(quotes, preds, sink).Scan(context.Background(), []domain.Event{ev}, policy)
	require.NoError(t, err)
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, 1, sink.calls)
	assert.Len(t, res.AlertIDs, 1)
}

func TestAnalyzer_Analyze_InvalidOddsSkipped(t *testing.T) {
	ev := makeEvent("e1", 2*time.Hour)
	quotes := &fakeQuotes{byMarket: map[string][]domain.Quote{
		"e1-h2h": {q("bet365", "home", 1.0), q("bet365", "away", 3.0)},
	}}
	preds := &fakePredictions{byEvent: map[string][]domain.Prediction{
		"e1": {makePrediction("e1", "home", 0.6, 1), makePrediction("e1", "away", 0.5, 1)},
	}}

	res := NewAnalyzer(quotes, preds).Analyze(context.Background(), ev, domain.DefaultPolicy())
	require.NoError(t, res.err)
	require.Len(t, res.skipped, 1)
	assert.Equal(t, "home", res.skipped[0].Selection)
	assert.True(t, errors.Is(res.skipped[0].Err, domain.ErrInvalidInput))
	require.Len(t, res.opps, 1, "el resto del evento sigue")
	assert.Equal(t, "away", res.opps[0].Selection)
}

func TestAnalyzer_Analyze_PolicyBands(t *testing.T) {
	quotes, preds, events := fixture()
	a := NewAnalyzer(quotes, preds)

	policy := domain.DefaultPolicy()
	policy.MinConfidence = 0.95
	assert.Empty(t, a.Analyze(context.Background(), events[0], policy).opps)

	policy = domain.DefaultPolicy()
	policy.MaxOdds = 2.1
	assert.Empty(t, a.Analyze(context.Background(), events[0], policy).opps, "la mejor cuota queda fuera de la banda")

	policy = domain.DefaultPolicy()
	policy.MinValue = 0.3
	assert.Empty(t, a.Analyze(context.Background(), events[0], policy).opps)
}

func TestAnalyzer_Analyze_UpstreamErrorWrapped(t *testing.T) {
	quotes, preds, events := fixture()
	quotes.fail = map[string]error{"e1-h2h": errors.New("connection reset")}

	res := NewAnalyzer(quotes, preds).Analyze(context.Background(), events[0], domain.DefaultPolicy())
	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, domain.ErrUpstreamUnavailable))
	assert.Contains(t, res.err.Error(), "connection reset")
	assert.Empty(t, res.opps)
}

func TestAnalyzer_Analyze_CanceledNotUpstream(t *testing.T) {
	quotes, preds, events := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewAnalyzer(quotes, preds).Analyze(ctx, events[0], domain.DefaultPolicy())
	require.Error(t, res.err)
	assert.True(t, errors.Is(res.err, context.Canceled))
	assert.False(t, errors.Is(res.err, domain.ErrUpstreamUnavailable))
}

func TestPredictionsFor(t *testing.T) {
	resolved := makePrediction("e1", "draw", 0.2, 1)
	resolved.Resolved = true
	wide := makePrediction("e1", "away", 0.3, 1)
	wide.MarketID = ""
	preds := []domain.Prediction{
		makePrediction("e1", "home", 0.5, 1),
		resolved,
		wide,
		{EventID: "e1", MarketID: "other", Selection: "home", Probability: 0.4},
	}

	got := predictionsFor(preds, "e1-h2h")
	require.Len(t, got, 2)
	assert.Equal(t, "home", got[0].Selection)
	assert.Equal(t, "away", got[1].Selection)

	wideHome := makePrediction("e1", "home", 0.9, 1)
	wideHome.MarketID = ""
	dup := makePrediction("e1", "home", 0.1, 1)
	got = predictionsFor([]domain.Prediction{wideHome, makePrediction("e1", "home", 0.5, 1), dup}, "e1-h2h")
	require.Len(t, got, 1)
	assert.Equal(t, "e1-h2h", got[0].MarketID)
	assert.Equal(t, 0.5, got[0].Probability)
}
