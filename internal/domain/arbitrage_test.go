package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeLegs(odds ...float64) []ArbitrageInput {
	names := []string{"home", "away", "draw", "other1", "other2", "other3"}
	legs := make([]ArbitrageInput, 0, len(odds))
	for i, o := range odds {
		sel := names[i%len(names)]
		if i >= len(names) {
			sel = sel + "_x"
		}
		legs = append(legs, ArbitrageInput{
			Selection: sel,
			Best:      Quote{Platform: "book" + sel, Selection: sel, DecimalOdds: o, Active: true},
		})
	}
	return legs
}

func TestSolveArbitrage_NoArbitrage(t *testing.T) {
	// 1/1.8 + 1/1.9 ≈ 1.08 → lo normal es que no haya
	arb, err := SolveArbitrage(makeLegs(1.8, 1.9), 100)
	require.NoError(t, err)
	assert.Nil(t, arb)
}

func TestSolveArbitrage_ExactlyOneIsNotArbitrage(t *testing.T) {
	arb, err := SolveArbitrage(makeLegs(2.0, 2.0), 100)
	require.NoError(t, err)
	assert.Nil(t, arb)
}

func TestSolveArbitrage_TwoWay(t *testing.T) {
	arb, err := SolveArbitrage(makeLegs(2.2, 2.2), 100)
	require.NoError(t, err)
	require.NotNil(t, arb)

	require.Len(t, arb.Legs, 2)
	assert.InDelta(t, 50.0, arb.Legs[0].Stake, 0.005)
	assert.InDelta(t, 50.0, arb.Legs[1].Stake, 0.005)
	assert.InDelta(t, 110.0, arb.Legs[0].Payout, 0.01)
	assert.InDelta(t, 10.0, arb.GuaranteedProfit, 1e-9)
	assert.InDelta(t, 10.0, arb.ProfitMarginPct, 1e-9)
	assert.InDelta(t, 1-1/1.1, arb.ProfitMargin(), 1e-9)
}

func TestSolveArbitrage_ThreeWay(t *testing.T) {
	arb, err := SolveArbitrage(makeLegs(3.2, 3.6, 3.6), 1000)
	require.NoError(t, err)
	require.NotNil(t, arb)

	s := 1/3.2 + 2/3.6
	assert.InDelta(t, s, arb.ImpliedSum, 1e-12)
	assert.InDelta(t, 1000*(1/s-1), arb.GuaranteedProfit, 1e-9)

	total := 0.0
	for _, l := range arb.Legs {
		total += l.Stake
		assert.InDelta(t, 1000/s, l.Payout, 0.01)
		assert.InDelta(t, 1/l.Odds, l.ImpliedProbability, 1e-12)
	}
	assert.InDelta(t, 1000.0, total, 0.015)
}

func TestSolveArbitrage_InvalidInputs(t *testing.T) {
	dup := makeLegs(2.5, 2.5)
	dup[1].Selection = dup[0].Selection

	cases := []struct {
		name  string
		legs  []ArbitrageInput
		stake float64
	}{
		{"una sola leg", makeLegs(3.0), 100},
		{"sin legs", nil, 100},
		{"odds uno", makeLegs(1.0, 5.0), 100},
		{"odds NaN", makeLegs(math.NaN(), 5.0), 100},
		{"selección duplicada", dup, 100},
		{"stake cero", makeLegs(2.5, 2.5), 0},
		{"stake negativo", makeLegs(2.5, 2.5), -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			arb, err := SolveArbitrage(tc.legs, tc.stake)
			require.Error(t, err)
			assert.Nil(t, arb)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

// Propiedades sobre entradas aleatorias con semilla fija:
// existe resultado ⇔ S < 1; payouts iguales; stakes suman totalStake; profit > 0.
func TestSolveArbitrage_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	found := 0
	for i := 0; i < 2000; i++ {
		n := 2 + rng.Intn(3)
		odds := make([]float64, n)
		s := 0.0
		for j := range odds {
			odds[j] = 1.01 + rng.Float64()*float64(n)*1.5
			s += 1 / odds[j]
		}
		stake := 10 + rng.Float64()*990

		arb, err := SolveArbitrage(makeLegs(odds...), stake)
		require.NoError(t, err)

		if s >= 1 {
			assert.Nil(t, arb, "S=%v", s)
			continue
		}
		require.NotNil(t, arb, "S=%v", s)
		found++

		assert.Greater(t, arb.GuaranteedProfit, 0.0)
		assert.InDelta(t, stake*(1/s-1), arb.GuaranteedProfit, 1e-6)

		sum := 0.0
		for _, l := range arb.Legs {
			sum += l.Stake
			assert.InDelta(t, stake/s, l.Payout, 0.01)
		}
		assert.InDelta(t, stake, sum, 0.005*float64(n)+1e-9)
	}
	assert.Greater(t, found, 0, "la muestra debería contener arbitrajes")
}

// --- BestLegs ---

func TestBestLegs_PicksBestPerSelection(t *testing.T) {
	quotes := []Quote{
		makeQuote("a", "home", 2.0, 0, true),
		makeQuote("b", "home", 2.3, 0, true),
		makeQuote("a", "away", 2.4, 0, true),
		makeQuote("b", "away", 2.1, 0, true),
	}
	legs, ok := BestLegs(quotes, nil)
	require.True(t, ok)
	require.Len(t, legs, 2)
	assert.Equal(t, "away", legs[0].Selection)
	assert.Equal(t, "a", legs[0].Best.Platform)
	assert.Equal(t, "home", legs[1].Selection)
	assert.Equal(t, "b", legs[1].Best.Platform)

	arb, err := SolveArbitrage(legs, 100)
	require.NoError(t, err)
	require.NotNil(t, arb)
}

func TestBestLegs_MissingOutcome(t *testing.T) {
	quotes := []Quote{
		makeQuote("a", "home", 2.0, 0, true),
		makeQuote("a", "away", 2.4, 0, true),
	}
	_, ok := BestLegs(quotes, []string{"home", "draw", "away"})
	assert.False(t, ok)
}
