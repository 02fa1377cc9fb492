package domain

import (
	"fmt"
	"sort"
	"time"
)

// BetStatus es el resultado de una apuesta liquidada.
type BetStatus string

const (
	BetWon  BetStatus = "WON"
	BetLost BetStatus = "LOST"
	BetVoid BetStatus = "VOID"
)

// UnknownKey agrupa las apuestas sin dato para la dimensión pedida.
const UnknownKey = "Unknown"

// SettledBet es una apuesta liquidada, inmutable.
type SettledBet struct {
	ID         string
	UserID     string
	Sport      string
	Platform   string
	MarketType string
	Stake      float64
	ActualWin  float64 // solo cuenta si Status == WON
	Status     BetStatus
	PlacedAt   time.Time
}

// GroupBy es la dimensión de agregación.
type GroupBy string

const (
	GroupByNone     GroupBy = "none"
	GroupBySport    GroupBy = "sport"
	GroupByPlatform GroupBy = "platform"
	GroupByMarket   GroupBy = "market"
)

// ParseGroupBy valida una dimensión. Vacío equivale a none.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "", GroupByNone:
		return GroupByNone, nil
	case GroupBySport, GroupByPlatform, GroupByMarket:
		return GroupBy(s), nil
	}
	return "", fmt.Errorf("domain.ParseGroupBy: %q: %w", s, ErrInvalidInput)
}

// Window es un intervalo semiabierto [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains devuelve true si Start <= t < End. Un End cero significa sin límite superior.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return w.End.IsZero() || t.Before(w.End)
}

// Period es un período de estadísticas con nombre.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// PeriodWindow resuelve el período a una ventana semiabierta que contiene now,
// calculada en la zona horaria de now. La semana empieza el domingo.
func PeriodWindow(period Period, now time.Time) (Window, error) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch period {
	case PeriodDaily:
		return Window{Start: today, End: today.AddDate(0, 0, 1)}, nil
	case PeriodWeekly:
		start := today.AddDate(0, 0, -int(now.Weekday()))
		return Window{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
	case PeriodAllTime, "":
		return Window{Start: time.Unix(0, 0).In(loc)}, nil
	}
	return Window{}, fmt.Errorf("domain.PeriodWindow: %q: %w", period, ErrInvalidInput)
}

// GroupStats son las métricas de un grupo.
type GroupStats struct {
	Key         string
	TotalBets   int
	Wins        int
	Losses      int
	Voids       int
	TotalStaked float64
	TotalWon    float64
	TotalLost   float64
	NetProfit   float64
	ROI         float64 // netProfit / totalStaked × 100; 0 si no hay stake
	WinRate     float64 // wins / totalBets × 100; 0 si no hay apuestas
}

// Statistics es el resultado de Aggregate.
type Statistics struct {
	Window    Window
	GroupBy   GroupBy
	Overall   GroupStats
	Groups    []GroupStats // ordenados por Key
	ValueBets ValueBetStats
}

// ValueBetStats mide las alertas de value bets frente a las apuestas del usuario.
type ValueBetStats struct {
	Found    int // alertas visibles para el usuario creadas en la ventana
	Taken    int // alertas TAKEN enlazadas a una apuesta del usuario de la ventana
	Won      int
	Staked   float64
	Returned float64 // ActualWin de las apuestas ganadas
	ROI      float64 // (Returned − Staked) / Staked × 100; 0 si no hay stake
}

// SummarizeValueBets cruza alertas y apuestas por Alert.ExternalBetID == SettledBet.ID.
// Una alerta sin UserID es pública y cuenta para todos los usuarios.
func SummarizeValueBets(userID string, alerts []Alert, bets []SettledBet, w Window) ValueBetStats {
	byID := make(map[string]SettledBet, len(bets))
	for _, b := range bets {
		if b.UserID == userID && w.Contains(b.PlacedAt) {
			byID[b.ID] = b
		}
	}

	var s ValueBetStats
	for _, a := range alerts {
		if a.UserID != "" && a.UserID != userID {
			continue
		}
		if w.Contains(a.CreatedAt) {
			s.Found++
		}
		if a.Status != AlertTaken || a.ExternalBetID == "" {
			continue
		}
		b, ok := byID[a.ExternalBetID]
		if !ok {
			continue
		}
		s.Taken++
		s.Staked += b.Stake
		if b.Status == BetWon {
			s.Won++
			s.Returned += b.ActualWin
		}
	}
	if s.Staked > 0 {
		s.ROI = (s.Returned - s.Staked) / s.Staked * 100
	}
	return s
}

// Aggregate calcula ROI, win rate y desgloses sobre las apuestas de la ventana.
// Cada apuesta de la ventana cae en exactamente un grupo; las que no tienen dato de la
// dimensión van a UnknownKey. Nunca divide por cero.
func Aggregate(bets []SettledBet, groupBy GroupBy, w Window) Statistics {
	overallKey := "all"
	overall := &GroupStats{Key: overallKey}
	groups := make(map[string]*GroupStats)

	for _, b := range bets {
		if !w.Contains(b.PlacedAt) {
			continue
		}
		overall.add(b)
		if groupBy == GroupByNone || groupBy == "" {
			continue
		}
		key := groupKey(b, groupBy)
		g, ok := groups[key]
		if !ok {
			g = &GroupStats{Key: key}
			groups[key] = g
		}
		g.add(b)
	}

	overall.finish()
	stats := Statistics{Window: w, GroupBy: groupBy, Overall: *overall}
	if groupBy == GroupByNone || groupBy == "" {
		stats.GroupBy = GroupByNone
		stats.Groups = []GroupStats{*overall}
		return stats
	}

	stats.Groups = make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		g.finish()
		stats.Groups = append(stats.Groups, *g)
	}
	sort.Slice(stats.Groups, func(i, j int) bool { return stats.Groups[i].Key < stats.Groups[j].Key })
	return stats
}

func (g *GroupStats) add(b SettledBet) {
	g.TotalBets++
	g.TotalStaked += b.Stake
	switch b.Status {
	case BetWon:
		g.Wins++
		g.TotalWon += b.ActualWin
	case BetLost:
		g.Losses++
		g.TotalLost += b.Stake
	case BetVoid:
		g.Voids++
	}
}

func (g *GroupStats) finish() {
	g.NetProfit = g.TotalWon - g.TotalStaked
	if g.TotalStaked > 0 {
		g.ROI = g.NetProfit / g.TotalStaked * 100
	}
	if g.TotalBets > 0 {
		g.WinRate = float64(g.Wins) / float64(g.TotalBets) * 100
	}
}

func groupKey(b SettledBet, by GroupBy) string {
	var k string
	switch by {
	case GroupBySport:
		k = b.Sport
	case GroupByPlatform:
		k = b.Platform
	case GroupByMarket:
		k = b.MarketType
	}
	if k == "" {
		return UnknownKey
	}
	return k
}

// AlertSummary resume el rendimiento de las alertas de value bets.
type AlertSummary struct {
	Total        int
	Active       int
	Taken        int
	Expired      int
	Invalid      int
	AverageValue float64
	HighestValue float64
	BySport      map[string]int
}

// SummarizeAlerts cuenta alertas por estado y promedia su ValuePercentage.
func SummarizeAlerts(alerts []Alert) AlertSummary {
	s := AlertSummary{BySport: make(map[string]int)}
	total := 0.0
	for i, a := range alerts {
		s.Total++
		switch a.Status {
		case AlertActive:
			s.Active++
		case AlertTaken:
			s.Taken++
		case AlertExpired:
			s.Expired++
		case AlertInvalid:
			s.Invalid++
		}
		total += a.ValuePercentage
		if i == 0 || a.ValuePercentage > s.HighestValue {
			s.HighestValue = a.ValuePercentage
		}
		sport := a.SportKey
		if sport == "" {
			sport = UnknownKey
		}
		s.BySport[sport]++
	}
	if s.Total > 0 {
		s.AverageValue = total / float64(s.Total)
	}
	return s
}
