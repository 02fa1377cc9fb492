package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// AlertSink persiste oportunidades como alertas ACTIVE.
type AlertSink interface {
	// UpsertActive crea la alerta o, si ya existe una ACTIVE con la misma clave natural,
	// la actualiza y devuelve su ID. Llamarlo dos veces con la misma oportunidad deja
	// exactamente una alerta ACTIVE.
	UpsertActive(ctx context.Context, opp domain.ValueOpportunity) (string, error)
}

// AlertStore es el ciclo de vida completo de las alertas.
type AlertStore interface {
	AlertSink

	GetAlert(ctx context.Context, id string) (domain.Alert, error)
	// ListAlerts devuelve las alertas con el estado dado; status vacío = todas.
	ListAlerts(ctx context.Context, status domain.AlertStatus) ([]domain.Alert, error)
	MarkTaken(ctx context.Context, id, externalBetID string) (domain.Alert, error)
	Invalidate(ctx context.Context, id, reason string) (domain.Alert, error)
	// ExpireDue pasa a EXPIRED las alertas ACTIVE con expiresAt <= now y devuelve cuántas.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// BetHistory devuelve apuestas liquidadas para las estadísticas.
type BetHistory interface {
	// ListSettled devuelve las apuestas del usuario con PlacedAt dentro de la ventana.
	ListSettled(ctx context.Context, userID string, w domain.Window) ([]domain.SettledBet, error)
}
