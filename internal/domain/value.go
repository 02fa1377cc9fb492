package domain

import (
	"fmt"
	"math"
)

const (
	// DefaultEstimatedMargin es el margen de la casa asumido cuando la predicción no trae uno.
	DefaultEstimatedMargin = 0.05
	// DefaultConfidence es la confianza asumida por los adapters cuando el modelo no la informa.
	DefaultConfidence = 0.7
)

// Prediction es la probabilidad estimada por el modelo para una selección.
// Solo es consumible mientras Resolved == false.
type Prediction struct {
	EventID         string
	MarketID        string
	Selection       string
	Probability     float64  // en (0,1)
	Confidence      float64  // en [0,1]
	EstimatedMargin *float64 // fracción en [0,1); nil = ausente → DefaultEstimatedMargin
	Resolved        bool
}

// Margin devuelve el margen estimado, o DefaultEstimatedMargin si no viene informado.
func (p Prediction) Margin() float64 {
	if p.EstimatedMargin == nil {
		return DefaultEstimatedMargin
	}
	return *p.EstimatedMargin
}

// ValueResult contiene las métricas de valor de una predicción contra unas odds.
type ValueResult struct {
	ImpliedProbability     float64
	RawEdge                float64 // p*odds - 1
	ConfidenceAdjustedEdge float64 // RawEdge * confidence
	AdjustedEdge           float64 // ConfidenceAdjustedEdge - margin*(1-confidence)
	ValuePercentage        float64 // AdjustedEdge * 100
	ExpectedValue          float64 // igual a ValuePercentage (misma unidad que las alertas)
}

// Evaluate calcula el edge de una predicción contra las mejores odds disponibles.
//
// Fórmula:
//
//	raw      = p × odds − 1
//	confAdj  = raw × confidence
//	adjusted = confAdj − margin × (1 − confidence)
//
// Una predicción poco confiable se penaliza en proporción al margen de la casa, para
// que no "descubra" valor a partir del overround. Odds <= 1 o p fuera de (0,1)
// devuelven ErrInvalidInput, sin clamp.
func Evaluate(p Prediction, bestOdds float64) (ValueResult, error) {
	if math.IsNaN(bestOdds) || math.IsInf(bestOdds, 0) || bestOdds <= 1.0 {
		return ValueResult{}, fmt.Errorf("domain.Evaluate: odds %v: %w", bestOdds, ErrInvalidInput)
	}
	if math.IsNaN(p.Probability) || p.Probability <= 0 || p.Probability >= 1 {
		return ValueResult{}, fmt.Errorf("domain.Evaluate: probability %v: %w", p.Probability, ErrInvalidInput)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return ValueResult{}, fmt.Errorf("domain.Evaluate: confidence %v: %w", p.Confidence, ErrInvalidInput)
	}
	margin := p.Margin()
	if math.IsNaN(margin) || margin < 0 || margin >= 1 {
		return ValueResult{}, fmt.Errorf("domain.Evaluate: margin %v: %w", margin, ErrInvalidInput)
	}

	raw := p.Probability*bestOdds - 1
	confAdj := raw * p.Confidence
	adjusted := confAdj - margin*(1-p.Confidence)
	pct := adjusted * 100

	return ValueResult{
		ImpliedProbability:     1 / bestOdds,
		RawEdge:                raw,
		ConfidenceAdjustedEdge: confAdj,
		AdjustedEdge:           adjusted,
		ValuePercentage:        pct,
		ExpectedValue:          pct,
	}, nil
}
