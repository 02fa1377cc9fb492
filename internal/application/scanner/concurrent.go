package scanner

// concurrent.go — worker pool para evaluar eventos en paralelo.
//
// Cada evento requiere al menos dos llamadas de I/O (predicciones + quotes por mercado);
// evaluarlos en paralelo acota la latencia del escaneo a la del evento más lento
// por worker en lugar de la suma de todos.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/valuebot/internal/domain"
)

type eventOutcome struct {
	eventID string
	eventResult
}

// analyzeEventsConcurrent evalúa todos los eventos usando un worker pool.
// Si el contexto se cancela, los workers dejan de tomar eventos nuevos: los ya
// evaluados se devuelven igualmente.
//
// Si workers <= 0 usa runtime.NumCPU() × 2.
func analyzeEventsConcurrent(
	ctx context.Context,
	analyzer *Analyzer,
	events []domain.Event,
	policy domain.Policy,
	workers int,
) []eventOutcome {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > len(events) {
		workers = len(events)
	}

	workCh := make(chan domain.Event, len(events))
	resultCh := make(chan eventOutcome, len(events))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range workCh {
				if ctx.Err() != nil {
					continue
				}
				res := analyzer.Analyze(ctx, ev, policy)
				if res.err != nil {
					slog.Debug("analyze event failed",
						"event_id", ev.ID,
						"err", res.err,
					)
				}
				resultCh <- eventOutcome{eventID: ev.ID, eventResult: res}
			}
		}()
	}

	for _, ev := range events {
		workCh <- ev
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]eventOutcome, 0, len(events))
	for r := range resultCh {
		out = append(out, r)
	}

	slog.Debug("concurrent analysis complete",
		"events_queued", len(events),
		"events_done", len(out),
		"workers", workers,
	)
	return out
}
