package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Pool consumes enrichment tasks from the queue with a fixed number of
// workers. Workers stop when the context is canceled or the queue closes.
type Pool struct {
	queue   discovery.EnrichQueue
	orch    *Orchestrator
	workers int
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewPool creates a worker pool; workers below 1 is clamped to 1.
func NewPool(queue discovery.EnrichQueue, orch *Orchestrator, workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{queue: queue, orch: orch, workers: workers, logger: logger}
}

// Start launches the workers. It returns immediately; use Wait for shutdown.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker", id))
	logger.Info("enrichment worker started")
	defer logger.Info("enrichment worker stopped")

	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("queue dequeue failed", zap.Error(err))
			}
			return
		}
		p.orch.Enrich(ctx, task)
	}
}
