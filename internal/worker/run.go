package worker

import (
	"context"
	"log/slog"
	"sync"

	"biabot/internal/domain"
)

// Run consumes deliveries until the context is cancelled or the channel
// closes. Each worker slot processes one entry at a time: a delivery is
// driven to its terminal outcome and finalized before the next receive.
func Run(ctx context.Context, id int, p *Pipeline, deliveries <-chan domain.Delivery, logger *slog.Logger) {
	logger.Info("worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping", "worker", id)
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Info("delivery channel closed, worker stopping", "worker", id)
				return
			}
			p.Handle(ctx, d)
		}
	}
}

// RunPool starts n workers competing for the same delivery channel and
// blocks until all of them have stopped.
func RunPool(ctx context.Context, n int, p *Pipeline, deliveries <-chan domain.Delivery, logger *slog.Logger) {
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			Run(ctx, id, p, deliveries, logger)
		}(i)
	}
	wg.Wait()
}
