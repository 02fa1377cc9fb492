package domain

import "time"

// MarketTypeMatchWinner es el mercado 1X2/h2h, el único que escanea la política por defecto.
const MarketTypeMatchWinner = "h2h"

// Event es un partido programado con sus mercados.
type Event struct {
	ID        string
	SportKey  string
	Name      string
	HomeTeam  string
	AwayTeam  string
	StartTime time.Time
	Markets   []Market
}

// Market es un mercado de un evento (h2h, spreads, totals...).
type Market struct {
	ID       string
	EventID  string
	Type     string
	Outcomes []string // conjunto exhaustivo de selecciones; vacío = desconocido
}

// DisplayName devuelve "Home vs Away" o, si faltan equipos, el nombre o el ID.
func (e Event) DisplayName() string {
	if e.HomeTeam != "" && e.AwayTeam != "" {
		return e.HomeTeam + " vs " + e.AwayTeam
	}
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// Started devuelve true si el evento ya empezó en el instante now.
func (e Event) Started(now time.Time) bool {
	return !e.StartTime.After(now)
}

// MarketsOfType devuelve los mercados cuyo tipo está en types. types vacío = todos.
func (e Event) MarketsOfType(types []string) []Market {
	if len(types) == 0 {
		return e.Markets
	}
	var out []Market
	for _, m := range e.Markets {
		for _, t := range types {
			if m.Type == t {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// TruncateName recorta s a maxLen caracteres añadiendo "..." si hace falta.
func TruncateName(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
