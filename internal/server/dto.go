package server

import (
	"time"

	"github.com/alejandrodnm/valuebot/internal/application/scanner"
	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Vistas JSON de los tipos del dominio, que no llevan tags.

type valueBetJSON struct {
	EventID              string    `json:"event_id"`
	MarketID             string    `json:"market_id"`
	SportKey             string    `json:"sport_key"`
	EventName            string    `json:"event_name"`
	Selection            string    `json:"selection"`
	Bookmaker            string    `json:"bookmaker"`
	Odds                 float64   `json:"odds"`
	ImpliedProbability   float64   `json:"implied_probability"`
	PredictedProbability float64   `json:"predicted_probability"`
	Confidence           float64   `json:"confidence"`
	RawEdge              float64   `json:"raw_edge"`
	AdjustedEdge         float64   `json:"adjusted_edge"`
	ValuePercentage      float64   `json:"value_percentage"`
	ExpectedValue        float64   `json:"expected_value"`
	ExpiresAt            time.Time `json:"expires_at"`
	AlertID              string    `json:"alert_id,omitempty"`
}

func toValueBets(opps []domain.ValueOpportunity, alertIDs map[domain.AlertKey]string) []valueBetJSON {
	out := make([]valueBetJSON, 0, len(opps))
	for _, o := range opps {
		out = append(out, valueBetJSON{
			EventID:              o.EventID,
			MarketID:             o.MarketID,
			SportKey:             o.SportKey,
			EventName:            o.EventName,
			Selection:            o.Selection,
			Bookmaker:            o.Bookmaker,
			Odds:                 o.Odds,
			ImpliedProbability:   o.ImpliedProbability,
			PredictedProbability: o.PredictedProbability,
			Confidence:           o.Confidence,
			RawEdge:              o.RawEdge,
			AdjustedEdge:         o.AdjustedEdge,
			ValuePercentage:      o.ValuePercentage,
			ExpectedValue:        o.ExpectedValue,
			ExpiresAt:            o.ExpiresAt,
			AlertID:              alertIDs[o.Key()],
		})
	}
	return out
}

type scanJSON struct {
	Sport         string         `json:"sport,omitempty"`
	ValueBets     []valueBetJSON `json:"value_bets"`
	Count         int            `json:"count"`
	EventsScanned int            `json:"events_scanned"`
	Skipped       int            `json:"skipped"`
	Errors        []string       `json:"errors,omitempty"`
}

func toScan(sport string, res scanner.ScanResult, err error) scanJSON {
	return scanJSON{
		Sport:         sport,
		ValueBets:     toValueBets(res.Opportunities, res.AlertIDs),
		Count:         len(res.Opportunities),
		EventsScanned: res.EventsScanned,
		Skipped:       len(res.Skipped),
		Errors:        errorStrings(err),
	}
}

type scanAllJSON struct {
	ValueBets []valueBetJSON      `json:"value_bets"`
	Count     int                 `json:"count"`
	BySport   map[string]int      `json:"by_sport"`
	Errors    map[string][]string `json:"errors,omitempty"`
}

type arbitrageLegJSON struct {
	Platform           string  `json:"platform"`
	Selection          string  `json:"selection"`
	Odds               float64 `json:"odds"`
	ImpliedProbability float64 `json:"implied_probability"`
	Stake              float64 `json:"stake"`
	Payout             float64 `json:"payout"`
}

type arbitrageJSON struct {
	EventID          string             `json:"event_id"`
	MarketID         string             `json:"market_id"`
	Legs             []arbitrageLegJSON `json:"legs"`
	TotalStake       float64            `json:"total_stake"`
	ImpliedSum       float64            `json:"implied_sum"`
	GuaranteedProfit float64            `json:"guaranteed_profit"`
	ProfitMarginPct  float64            `json:"profit_margin_pct"`
}

func toArbitrage(a domain.ArbitrageOpportunity) arbitrageJSON {
	out := arbitrageJSON{
		EventID:          a.EventID,
		MarketID:         a.MarketID,
		Legs:             make([]arbitrageLegJSON, 0, len(a.Legs)),
		TotalStake:       a.TotalStake,
		ImpliedSum:       a.ImpliedSum,
		GuaranteedProfit: a.GuaranteedProfit,
		ProfitMarginPct:  a.ProfitMarginPct,
	}
	for _, l := range a.Legs {
		out.Legs = append(out.Legs, arbitrageLegJSON(l))
	}
	return out
}

type groupStatsJSON struct {
	Key         string  `json:"key"`
	TotalBets   int     `json:"total_bets"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Voids       int     `json:"voids"`
	TotalStaked float64 `json:"total_staked"`
	TotalWon    float64 `json:"total_won"`
	TotalLost   float64 `json:"total_lost"`
	NetProfit   float64 `json:"net_profit"`
	ROI         float64 `json:"roi"`
	WinRate     float64 `json:"win_rate"`
}

type statisticsJSON struct {
	UserID  string           `json:"user_id"`
	Period  string           `json:"period"`
	Start   time.Time        `json:"start"`
	End     *time.Time       `json:"end,omitempty"`
	GroupBy string           `json:"group_by"`
	Overall groupStatsJSON   `json:"overall"`
	Groups  []groupStatsJSON `json:"groups"`

	ValueBets valueBetStatsJSON `json:"value_bets"`
}

type valueBetStatsJSON struct {
	Found    int     `json:"found"`
	Taken    int     `json:"taken"`
	Won      int     `json:"won"`
	Staked   float64 `json:"staked"`
	Returned float64 `json:"returned"`
	ROI      float64 `json:"roi"`
}

func toStatistics(userID string, period domain.Period, s domain.Statistics) statisticsJSON {
	out := statisticsJSON{
		UserID:  userID,
		Period:  string(period),
		Start:   s.Window.Start,
		GroupBy: string(s.GroupBy),
		Overall: groupStatsJSON(s.Overall),
		Groups:  make([]groupStatsJSON, 0, len(s.Groups)),

		ValueBets: valueBetStatsJSON(s.ValueBets),
	}
	if !s.Window.End.IsZero() {
		end := s.Window.End
		out.End = &end
	}
	for _, g := range s.Groups {
		out.Groups = append(out.Groups, groupStatsJSON(g))
	}
	return out
}

type alertSummaryJSON struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	Taken        int            `json:"taken"`
	Expired      int            `json:"expired"`
	Invalid      int            `json:"invalid"`
	AverageValue float64        `json:"average_value"`
	HighestValue float64        `json:"highest_value"`
	BySport      map[string]int `json:"by_sport"`
}

type alertJSON struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	MarketID        string    `json:"market_id"`
	Selection       string    `json:"selection"`
	Bookmaker       string    `json:"bookmaker"`
	SportKey        string    `json:"sport_key"`
	Odds            float64   `json:"odds"`
	ValuePercentage float64   `json:"value_percentage"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExternalBetID   string    `json:"external_bet_id,omitempty"`
	InvalidReason   string    `json:"invalid_reason,omitempty"`
}

func toAlert(a domain.Alert) alertJSON {
	return alertJSON{
		ID:              a.ID,
		EventID:         a.EventID,
		MarketID:        a.MarketID,
		Selection:       a.Selection,
		Bookmaker:       a.Bookmaker,
		SportKey:        a.SportKey,
		Odds:            a.Odds,
		ValuePercentage: a.ValuePercentage,
		Status:          string(a.Status),
		ExpiresAt:       a.ExpiresAt,
		UpdatedAt:       a.UpdatedAt,
		ExternalBetID:   a.ExternalBetID,
		InvalidReason:   a.InvalidReason,
	}
}
