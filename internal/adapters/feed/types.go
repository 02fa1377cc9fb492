package feed

import "time"

// DTOs del feed. Campos opcionales como punteros para distinguir "ausente" de cero.

type eventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID        string      `json:"id"`
	SportKey  string      `json:"sport_key"`
	Name      string      `json:"name"`
	HomeTeam  string      `json:"home_team"`
	AwayTeam  string      `json:"away_team"`
	StartTime time.Time   `json:"commence_time"`
	Markets   []marketDTO `json:"markets"`
}

type marketDTO struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Outcomes []string `json:"outcomes"`
}

type marketResponse struct {
	Event  eventDTO  `json:"event"`
	Market marketDTO `json:"market"`
}

type quotesResponse struct {
	Quotes []quoteDTO `json:"quotes"`
}

type quoteDTO struct {
	Platform   string    `json:"bookmaker"`
	Selection  string    `json:"selection"`
	Odds       float64   `json:"odds"`
	ObservedAt time.Time `json:"last_update"`
	Active     *bool     `json:"active"`
}

type predictionsResponse struct {
	Predictions []predictionDTO `json:"predictions"`
}

type predictionDTO struct {
	EventID         string   `json:"event_id"`
	MarketID        string   `json:"market_id"`
	Selection       string   `json:"selection"`
	Probability     float64  `json:"predicted_probability"`
	Confidence      *float64 `json:"confidence"`
	EstimatedMargin *float64 `json:"estimated_margin"`
	Resolved        bool     `json:"resolved"`
}
