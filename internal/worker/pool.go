package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
)

// Pool runs a fixed set of workers against one queue.
type Pool struct {
	workers []*Worker
	logger  *slog.Logger
}

// NewPool builds cfg.Worker.Count workers. Worker ids derive from the
// configured base id, or hostname and pid when unset.
func NewPool(cfg *config.Config, store *queue.Store, pipe Pipeline, notifier Deliverer, logger *slog.Logger) *Pool {
	base := cfg.Worker.ID
	if base == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "worker"
		}
		base = fmt.Sprintf("%s_%d", hostname, os.Getpid())
	}

	count := cfg.Worker.Count
	if count < 1 {
		count = 1
	}
	workers := make([]*Worker, 0, count)
	for n := 0; n < count; n++ {
		id := fmt.Sprintf("%s_%d", base, n)
		workers = append(workers, New(id, cfg, store, pipe, notifier, logger))
	}
	return &Pool{
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "pool"),
	}
}

// Run starts every worker and blocks until all have drained after ctx
// cancellation.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("starting workers", logging.Int("count", len(p.workers)))

	var wg sync.WaitGroup
	for _, w := range p.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	wg.Wait()
	p.logger.Info("all workers stopped")
}
