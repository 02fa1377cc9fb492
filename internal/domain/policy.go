package domain

import (
	"fmt"
	"math"
	"time"
)

// Policy agrupa las opciones de detección de value bets. Se resuelve una sola vez
// con WithDefaults en lugar de mezclar defaults en cada call site.
type Policy struct {
	// MinValue es el AdjustedEdge mínimo (fracción: 0.05 = 5%).
	MinValue float64 `yaml:"min_value" json:"minValue"`
	// MaxEvents acota la cantidad de EVENTOS evaluados por escaneo, no de oportunidades.
	MaxEvents int `yaml:"max_events" json:"maxEvents"`
	// AutoCreateAlerts persiste cada oportunidad como Alert ACTIVE.
	AutoCreateAlerts bool `yaml:"auto_create_alerts" json:"autoCreateAlerts"`
	// MinConfidence descarta predicciones con confianza menor.
	MinConfidence float64 `yaml:"min_confidence" json:"minConfidence"`
	// MinOdds y MaxOdds descartan mejores cotizaciones fuera de la banda.
	MinOdds float64 `yaml:"min_odds" json:"minOdds"`
	MaxOdds float64 `yaml:"max_odds" json:"maxOdds"`
	// MarketTypes restringe los mercados escaneados.
	MarketTypes []string `yaml:"market_types" json:"marketTypes"`
	// Horizon es la ventana hacia adelante de eventos a escanear.
	Horizon time.Duration `yaml:"horizon" json:"horizon"`
}

// DefaultPolicy devuelve la política por defecto del producto.
func DefaultPolicy() Policy {
	return Policy{
		MinValue:         0.05,
		MaxEvents:        20,
		AutoCreateAlerts: false,
		MinConfidence:    0.5,
		MinOdds:          1.1,
		MaxOdds:          10.0,
		MarketTypes:      []string{MarketTypeMatchWinner},
		Horizon:          48 * time.Hour,
	}
}

// WithDefaults completa los campos en cero con los de DefaultPolicy.
// MinValue y MinConfidence en cero se respetan: son umbrales válidos.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxEvents <= 0 {
		p.MaxEvents = d.MaxEvents
	}
	if p.MinOdds <= 0 {
		p.MinOdds = d.MinOdds
	}
	if p.MaxOdds <= 0 {
		p.MaxOdds = d.MaxOdds
	}
	if len(p.MarketTypes) == 0 {
		p.MarketTypes = d.MarketTypes
	}
	if p.Horizon <= 0 {
		p.Horizon = d.Horizon
	}
	return p
}

// Validate verifica que la política sea coherente.
// Umbrales NaN o infinitos se rechazan: cualquier comparación con NaN es false.
func (p Policy) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"min_value", p.MinValue},
		{"min_confidence", p.MinConfidence},
		{"min_odds", p.MinOdds},
		{"max_odds", p.MaxOdds},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("domain.Policy: %s %v: %w", f.name, f.v, ErrInvalidInput)
		}
	}
	if p.MaxEvents <= 0 {
		return fmt.Errorf("domain.Policy: max_events %d: %w", p.MaxEvents, ErrInvalidInput)
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("domain.Policy: min_confidence %v: %w", p.MinConfidence, ErrInvalidInput)
	}
	if p.MinOdds > p.MaxOdds {
		return fmt.Errorf("domain.Policy: min_odds %v > max_odds %v: %w", p.MinOdds, p.MaxOdds, ErrInvalidInput)
	}
	if p.Horizon <= 0 {
		return fmt.Errorf("domain.Policy: horizon %v: %w", p.Horizon, ErrInvalidInput)
	}
	return nil
}

// AcceptsOdds devuelve true si odds está dentro de [MinOdds, MaxOdds].
func (p Policy) AcceptsOdds(odds float64) bool {
	if p.MinOdds > 0 && odds < p.MinOdds {
		return false
	}
	if p.MaxOdds > 0 && odds > p.MaxOdds {
		return false
	}
	return true
}
