package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const dispatchTimeout = 10 * time.Second

// Dispatcher runs side-effect notifications detached from the request that
// triggered them. A failed admin ping must never fail the primary operation,
// so errors land in the log and nowhere else.
type Dispatcher struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher builds a fire-and-forget task runner.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Go schedules fn on its own goroutine with a bounded context.
func (d *Dispatcher) Go(kind string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notification task panicked", "kind", kind, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Warn("notification task failed", "kind", kind, "error", err)
		}
	}()
}

// Wait blocks until all in-flight tasks finish. Used in shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
