package domain

import "time"

// Quote es una cotización de un bookmaker para una selección de un mercado.
type Quote struct {
	Platform    string
	Selection   string
	DecimalOdds float64 // invariante: > 1.0
	ObservedAt  time.Time
	Active      bool
}

// ImpliedProbability devuelve 1/odds. Devuelve 0 si las odds no son válidas.
func (q Quote) ImpliedProbability() float64 {
	if q.DecimalOdds <= 1.0 {
		return 0
	}
	return 1 / q.DecimalOdds
}

// SelectBest elige la mejor cotización activa para la selección dada.
//
// Gana la mayor DecimalOdds (mejor pago para el apostador). En empate gana la
// observada más recientemente y, si también empata, el platform en orden alfabético.
// Devuelve false cuando no hay ninguna cotización activa: eso es "sin oportunidad",
// no un error.
func SelectBest(quotes []Quote, selection string) (Quote, bool) {
	var best Quote
	found := false
	for _, q := range quotes {
		if !q.Active || q.Selection != selection {
			continue
		}
		if !found || better(q, best) {
			best = q
			found = true
		}
	}
	return best, found
}

// better devuelve true si a desplaza a b según el orden de SelectBest.
func better(a, b Quote) bool {
	if a.DecimalOdds != b.DecimalOdds {
		return a.DecimalOdds > b.DecimalOdds
	}
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	return a.Platform < b.Platform
}

// Selections devuelve las selecciones distintas con al menos una cotización activa,
// en orden de primera aparición.
func Selections(quotes []Quote) []string {
	seen := make(map[string]bool, len(quotes))
	var out []string
	for _, q := range quotes {
		if !q.Active || seen[q.Selection] {
			continue
		}
		seen[q.Selection] = true
		out = append(out, q.Selection)
	}
	return out
}
