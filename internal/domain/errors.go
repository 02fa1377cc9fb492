package domain

import "errors"

// Errores del motor. Se comparan con errors.Is; los callers envuelven con contexto.
var (
	// ErrInvalidInput indica odds o probabilidades mal formadas. Nunca se corrigen en silencio.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indica que falló una llamada requerida a QuoteSource/PredictionSource.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPersistenceConflict indica que el upsert de una alerta compitió con otro writer.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrInvalidTransition indica una transición no permitida en la máquina de estados de Alert.
	ErrInvalidTransition = errors.New("invalid alert transition")

	// ErrNotFound indica que la entidad pedida no existe en el store.
	ErrNotFound = errors.New("not found")
)
