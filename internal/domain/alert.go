package domain

import (
	"fmt"
	"time"
)

// AlertStatus es el estado de una alerta persistida.
type AlertStatus string

const (
	AlertActive  AlertStatus = "ACTIVE"
	AlertTaken   AlertStatus = "TAKEN"   // el usuario registró una apuesta contra ella
	AlertExpired AlertStatus = "EXPIRED" // pasó expiresAt sin consumirse
	AlertInvalid AlertStatus = "INVALID" // se retiraron las odds o la predicción antes de expirar
)

// Terminal devuelve true para TAKEN, EXPIRED e INVALID.
func (s AlertStatus) Terminal() bool {
	return s == AlertTaken || s == AlertExpired || s == AlertInvalid
}

// Valid devuelve true si s es uno de los cuatro estados conocidos.
func (s AlertStatus) Valid() bool {
	return s == AlertActive || s.Terminal()
}

// Alert es una ValueOpportunity persistida. Solo se muta a través de Transition.
type Alert struct {
	ID string
	AlertKey

	UserID               string // vacío = alerta pública
	SportKey             string
	Odds                 float64
	PredictedProbability float64
	Confidence           float64
	ValuePercentage      float64
	ExpectedValue        float64

	Status        AlertStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExternalBetID string
	InvalidReason string
}

// NewActiveAlert construye la alerta ACTIVE correspondiente a una oportunidad.
func NewActiveAlert(id string, opp ValueOpportunity, now time.Time) Alert {
	return Alert{
		ID:                   id,
		AlertKey:             opp.Key(),
		SportKey:             opp.SportKey,
		Odds:                 opp.Odds,
		PredictedProbability: opp.PredictedProbability,
		Confidence:           opp.Confidence,
		ValuePercentage:      opp.ValuePercentage,
		ExpectedValue:        opp.ExpectedValue,
		Status:               AlertActive,
		ExpiresAt:            opp.ExpiresAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Transition devuelve la alerta en el estado to. Solo se permite salir de ACTIVE;
// los estados terminales no admiten más transiciones.
func (a Alert) Transition(to AlertStatus, at time.Time) (Alert, error) {
	if !to.Terminal() {
		return a, fmt.Errorf("domain.Alert.Transition: %s -> %s: %w", a.Status, to, ErrInvalidTransition)
	}
	if a.Status != AlertActive {
		return a, fmt.Errorf("domain.Alert.Transition: %s -> %s: %w", a.Status, to, ErrInvalidTransition)
	}
	a.Status = to
	a.UpdatedAt = at
	return a, nil
}

// Due devuelve true si la alerta sigue ACTIVE y su expiresAt ya pasó.
func (a Alert) Due(now time.Time) bool {
	return a.Status == AlertActive && !a.ExpiresAt.After(now)
}
