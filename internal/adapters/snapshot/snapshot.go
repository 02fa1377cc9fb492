// Package snapshot implementa las fuentes de eventos, quotes, predicciones y apuestas
// sobre un archivo YAML en memoria. Se usa para --dry-run, demos y tests de integración.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// File es el formato del archivo de snapshot.
type File struct {
	Events      []EventDoc      `yaml:"events"`
	Predictions []PredictionDoc `yaml:"predictions"`
	Bets        []BetDoc        `yaml:"bets"`
}

// EventDoc describe un evento. start_time absoluto o starts_in relativo a la carga.
type EventDoc struct {
	ID        string        `yaml:"id"`
	Sport     string        `yaml:"sport"`
	Name      string        `yaml:"name"`
	HomeTeam  string        `yaml:"home_team"`
	AwayTeam  string        `yaml:"away_team"`
	StartTime time.Time     `yaml:"start_time"`
	StartsIn  time.Duration `yaml:"starts_in"`
	Markets   []MarketDoc   `yaml:"markets"`
}

// MarketDoc describe un mercado con sus cotizaciones.
type MarketDoc struct {
	ID       string     `yaml:"id"`
	Type     string     `yaml:"type"`
	Outcomes []string   `yaml:"outcomes"`
	Quotes   []QuoteDoc `yaml:"quotes"`
}

// QuoteDoc es una cotización. active ausente = true.
type QuoteDoc struct {
	Platform   string    `yaml:"platform"`
	Selection  string    `yaml:"selection"`
	Odds       float64   `yaml:"odds"`
	ObservedAt time.Time `yaml:"observed_at"`
	Active     *bool     `yaml:"active"`
}

// PredictionDoc es una predicción. confidence ausente = 0.7; estimated_margin ausente = 5%.
type PredictionDoc struct {
	EventID         string   `yaml:"event_id"`
	MarketID        string   `yaml:"market_id"`
	Selection       string   `yaml:"selection"`
	Probability     float64  `yaml:"probability"`
	Confidence      *float64 `yaml:"confidence"`
	EstimatedMargin *float64 `yaml:"estimated_margin"`
	Resolved        bool     `yaml:"resolved"`
}

// BetDoc es una apuesta liquidada.
type BetDoc struct {
	ID         string    `yaml:"id"`
	UserID     string    `yaml:"user_id"`
	Sport      string    `yaml:"sport"`
	Platform   string    `yaml:"platform"`
	MarketType string    `yaml:"market_type"`
	Stake      float64   `yaml:"stake"`
	ActualWin  float64   `yaml:"actual_win"`
	Status     string    `yaml:"status"`
	PlacedAt   time.Time `yaml:"placed_at"`
}

// Store mantiene el snapshot en memoria. Implementa ports.EventSource,
// ports.QuoteSource, ports.PredictionSource y ports.BetHistory.
type Store struct {
	mu          sync.RWMutex
	events      []domain.Event
	markets     map[string]marketRef
	quotes      map[string][]domain.Quote
	predictions map[string][]domain.Prediction
	bets        []domain.SettledBet
}

type marketRef struct {
	eventIdx int
	market   domain.Market
}

// Load lee y parsea el archivo de snapshot. Los starts_in se resuelven contra time.Now().
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Load: read %q: %w", path, err)
	}
	s, err := Parse(data, time.Now())
	if err != nil {
		return nil, fmt.Errorf("snapshot.Load: %q: %w", path, err)
	}
	return s, nil
}

// Parse construye un Store desde YAML. now se usa para resolver starts_in y observed_at ausentes.
func Parse(data []byte, now time.Time) (*Store, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("snapshot.Parse: %w", err)
	}
	return FromFile(f, now)
}

// FromFile construye un Store desde un File ya decodificado.
func FromFile(f File, now time.Time) (*Store, error) {
	s := &Store{
		markets:     make(map[string]marketRef),
		quotes:      make(map[string][]domain.Quote),
		predictions: make(map[string][]domain.Prediction),
	}

	for _, ed := range f.Events {
		if ed.ID == "" {
			return nil, fmt.Errorf("snapshot: event without id: %w", domain.ErrInvalidInput)
		}
		start := ed.StartTime
		if start.IsZero() {
			start = now.Add(ed.StartsIn)
		}
		ev := domain.Event{
			ID:        ed.ID,
			SportKey:  ed.Sport,
			Name:      ed.Name,
			HomeTeam:  ed.HomeTeam,
			AwayTeam:  ed.AwayTeam,
			StartTime: start,
		}
		for _, md := range ed.Markets {
			if _, dup := s.markets[md.ID]; dup || md.ID == "" {
				return nil, fmt.Errorf("snapshot: market %q: duplicate or empty id: %w", md.ID, domain.ErrInvalidInput)
			}
			mtype := md.Type
			if mtype == "" {
				mtype = domain.MarketTypeMatchWinner
			}
			m := domain.Market{ID: md.ID, EventID: ed.ID, Type: mtype, Outcomes: md.Outcomes}
			ev.Markets = append(ev.Markets, m)
			s.markets[md.ID] = marketRef{eventIdx: len(s.events), market: m}

			for _, qd := range md.Quotes {
				s.quotes[md.ID] = append(s.quotes[md.ID], qd.toDomain(now))
			}
		}
		s.events = append(s.events, ev)
	}

	for _, pd := range f.Predictions {
		s.predictions[pd.EventID] = append(s.predictions[pd.EventID], pd.toDomain())
	}

	for _, bd := range f.Bets {
		b, err := bd.toDomain()
		if err != nil {
			return nil, err
		}
		s.bets = append(s.bets, b)
	}
	return s, nil
}

func (q QuoteDoc) toDomain(now time.Time) domain.Quote {
	active := true
	if q.Active != nil {
		active = *q.Active
	}
	observed := q.ObservedAt
	if observed.IsZero() {
		observed = now
	}
	return domain.Quote{
		Platform:    q.Platform,
		Selection:   q.Selection,
		DecimalOdds: q.Odds,
		ObservedAt:  observed,
		Active:      active,
	}
}

func (p PredictionDoc) toDomain() domain.Prediction {
	conf := domain.DefaultConfidence
	if p.Confidence != nil {
		conf = *p.Confidence
	}
	return domain.Prediction{
		EventID:         p.EventID,
		MarketID:        p.MarketID,
		Selection:       p.Selection,
		Probability:     p.Probability,
		Confidence:      conf,
		EstimatedMargin: p.EstimatedMargin,
		Resolved:        p.Resolved,
	}
}

func (b BetDoc) toDomain() (domain.SettledBet, error) {
	status := domain.BetStatus(strings.ToUpper(b.Status))
	switch status {
	case domain.BetWon, domain.BetLost, domain.BetVoid:
	default:
		return domain.SettledBet{}, fmt.Errorf("snapshot: bet %q: status %q: %w", b.ID, b.Status, domain.ErrInvalidInput)
	}
	return domain.SettledBet{
		ID:         b.ID,
		UserID:     b.UserID,
		Sport:      b.Sport,
		Platform:   b.Platform,
		MarketType: b.MarketType,
		Stake:      b.Stake,
		ActualWin:  b.ActualWin,
		Status:     status,
		PlacedAt:   b.PlacedAt,
	}, nil
}

// ListUpcoming implementa ports.EventSource. sportKey vacío = todos los deportes.
func (s *Store) ListUpcoming(_ context.Context, sportKey string, from, to time.Time) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for _, ev := range s.events {
		if sportKey != "" && ev.SportKey != sportKey {
			continue
		}
		if !ev.StartTime.After(from) || ev.StartTime.After(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetMarket implementa ports.EventSource.
func (s *Store) GetMarket(_ context.Context, marketID string) (domain.Event, domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.markets[marketID]
	if !ok {
		return domain.Event{}, domain.Market{}, fmt.Errorf("snapshot.GetMarket: %q: %w", marketID, domain.ErrNotFound)
	}
	return s.events[ref.eventIdx], ref.market, nil
}

// ListActiveQuotes implementa ports.QuoteSource.
func (s *Store) ListActiveQuotes(_ context.Context, marketID string) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Quote
	for _, q := range s.quotes[marketID] {
		if q.Active {
			out = append(out, q)
		}
	}
	return out, nil
}

// ListUnresolved implementa ports.PredictionSource.
func (s *Store) ListUnresolved(_ context.Context, eventID string) ([]domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Prediction
	for _, p := range s.predictions[eventID] {
		if !p.Resolved {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListSettled implementa ports.BetHistory. userID vacío = todos los usuarios.
func (s *Store) ListSettled(_ context.Context, userID string, w domain.Window) ([]domain.SettledBet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SettledBet
	for _, b := range s.bets {
		if userID != "" && b.UserID != userID {
			continue
		}
		if w.Contains(b.PlacedAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Bets devuelve todas las apuestas del snapshot (para importarlas a otro store).
func (s *Store) Bets() []domain.SettledBet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SettledBet(nil), s.bets...)
}
