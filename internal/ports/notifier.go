package ports

import (
	"context"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

// Notifier presenta las oportunidades encontradas al usuario.
type Notifier interface {
	// Notify muestra las oportunidades ya ordenadas por valor.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, opportunities []domain.ValueOpportunity) error
}
