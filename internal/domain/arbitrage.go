package domain

import (
	"fmt"
	"math"
	"sort"
)

// ArbitrageInput es la mejor cotización disponible para una selección, entre todos los platforms.
type ArbitrageInput struct {
	Selection string
	Best      Quote
}

// ArbitrageLeg es una apuesta del reparto de stakes.
type ArbitrageLeg struct {
	Platform           string
	Selection          string
	Odds               float64
	ImpliedProbability float64
	Stake              float64 // redondeado a céntimos
	Payout             float64 // stake × odds, redondeado a céntimos
}

// ArbitrageOpportunity es el resultado de SolveArbitrage cuando hay ganancia garantizada.
// Existe solo como resultado de cálculo; el caller decide si la persiste.
type ArbitrageOpportunity struct {
	EventID          string
	MarketID         string
	Legs             []ArbitrageLeg
	TotalStake       float64
	ImpliedSum       float64 // S = Σ 1/o_i
	GuaranteedProfit float64 // totalStake × (1/S − 1)
	ProfitMarginPct  float64 // (1/S − 1) × 100
}

// ProfitMargin devuelve 1 − S, el margen tal como lo filtra ScanArbitrage (0.01 = 1%).
func (a ArbitrageOpportunity) ProfitMargin() float64 {
	return 1 - a.ImpliedSum
}

// SolveArbitrage calcula el reparto de stakes que asegura la misma ganancia sea cual sea
// el resultado, para un mercado de N resultados mutuamente excluyentes y exhaustivos.
//
//	p_i     = 1 / o_i
//	S       = Σ p_i
//	stake_i = totalStake × p_i / S   → payout_i = totalStake / S para todo i
//
// Devuelve (nil, nil) si S >= 1: no hay arbitraje, que es lo normal.
// Los stakes se redondean a céntimos al final; la ganancia se calcula sin redondear.
func SolveArbitrage(legs []ArbitrageInput, totalStake float64) (*ArbitrageOpportunity, error) {
	if len(legs) < 2 {
		return nil, fmt.Errorf("domain.SolveArbitrage: %d legs: %w", len(legs), ErrInvalidInput)
	}
	if math.IsNaN(totalStake) || math.IsInf(totalStake, 0) || totalStake <= 0 {
		return nil, fmt.Errorf("domain.SolveArbitrage: total stake %v: %w", totalStake, ErrInvalidInput)
	}

	seen := make(map[string]bool, len(legs))
	sum := 0.0
	for _, l := range legs {
		o := l.Best.DecimalOdds
		if math.IsNaN(o) || math.IsInf(o, 0) || o <= 1.0 {
			return nil, fmt.Errorf("domain.SolveArbitrage: %s odds %v: %w", l.Selection, o, ErrInvalidInput)
		}
		if seen[l.Selection] {
			return nil, fmt.Errorf("domain.SolveArbitrage: duplicate selection %q: %w", l.Selection, ErrInvalidInput)
		}
		seen[l.Selection] = true
		sum += 1 / o
	}

	if sum >= 1 {
		return nil, nil
	}

	profit := totalStake * (1/sum - 1)
	out := &ArbitrageOpportunity{
		Legs:             make([]ArbitrageLeg, 0, len(legs)),
		TotalStake:       totalStake,
		ImpliedSum:       sum,
		GuaranteedProfit: profit,
		ProfitMarginPct:  (1/sum - 1) * 100,
	}
	for _, l := range legs {
		p := 1 / l.Best.DecimalOdds
		stake := totalStake * p / sum
		out.Legs = append(out.Legs, ArbitrageLeg{
			Platform:           l.Best.Platform,
			Selection:          l.Selection,
			Odds:               l.Best.DecimalOdds,
			ImpliedProbability: p,
			Stake:              roundCents(stake),
			Payout:             roundCents(stake * l.Best.DecimalOdds),
		})
	}
	return out, nil
}

// BestLegs construye las entradas de SolveArbitrage a partir de un snapshot de quotes.
//
// outcomes es el conjunto exhaustivo de selecciones del mercado; si viene vacío se usan
// las selecciones observadas. Devuelve false si algún outcome no tiene cotización activa:
// sin todos los resultados cubiertos no hay arbitraje libre de riesgo.
// Las legs salen ordenadas por selección.
func BestLegs(quotes []Quote, outcomes []string) ([]ArbitrageInput, bool) {
	if len(outcomes) == 0 {
		outcomes = Selections(quotes)
	}
	sorted := append([]string(nil), outcomes...)
	sort.Strings(sorted)

	legs := make([]ArbitrageInput, 0, len(sorted))
	for _, sel := range sorted {
		best, ok := SelectBest(quotes, sel)
		if !ok {
			return nil, false
		}
		legs = append(legs, ArbitrageInput{Selection: sel, Best: best})
	}
	return legs, true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
