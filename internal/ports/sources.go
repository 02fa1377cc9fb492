package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// QuoteSource devuelve las cotizaciones vigentes de un mercado.
type QuoteSource interface {
	// ListActiveQuotes devuelve todas las quotes del mercado, de todos los bookmakers.
	// Las inactivas pueden venir incluidas; el selector las descarta.
	ListActiveQuotes(ctx context.Context, marketID string) ([]domain.Quote, error)
}

// PredictionSource devuelve las predicciones del modelo.
type PredictionSource interface {
	// ListUnresolved devuelve las predicciones no resueltas de un evento.
	ListUnresolved(ctx context.Context, eventID string) ([]domain.Prediction, error)
}

// EventSource resuelve eventos y mercados programados.
type EventSource interface {
	// ListUpcoming devuelve los eventos del deporte con StartTime en (from, to].
	ListUpcoming(ctx context.Context, sportKey string, from, to time.Time) ([]domain.Event, error)

	// GetMarket devuelve el mercado y su evento. domain.ErrNotFound si no existe.
	GetMarket(ctx context.Context, marketID string) (domain.Event, domain.Market, error)
}
