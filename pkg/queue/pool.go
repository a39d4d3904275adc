package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/tsforge/tsforge/pkg/services"
)

// Pool owns a fixed set of Workers reading from one Client's consumer
// group, mirroring the teacher's pool.go lifecycle (NewWorkerPool,
// Start, Stop) scoped to file parsing instead of alert-session dispatch.
type Pool struct {
	client  *Client
	workers []*Worker
}

// NewPool builds count Workers named "<namePrefix>-N", sharing one
// Client and TemplateResolver.
func NewPool(client *Client, files *services.FileService, templates TemplateResolver, namePrefix string, count int, batchSize int64, block time.Duration) *Pool {
	workers := make([]*Worker, count)
	for i := range workers {
		id := fmt.Sprintf("%s-%d", namePrefix, i)
		workers[i] = NewWorker(id, client, files, templates, batchSize, block)
	}
	return &Pool{client: client, workers: workers}
}

// Start ensures the consumer group exists, then starts every worker.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.client.EnsureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("queue: pool start: %w", err)
	}
	for _, w := range p.workers {
		w.Start(ctx)
	}
	return nil
}

// Stop signals every worker to drain its in-flight message and exit,
// waiting for all of them before returning.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Health reports aggregate pool state for the API's health endpoint.
func (p *Pool) Health(ctx context.Context) PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Health()
	}

	length, lenErr := p.client.Length(ctx)
	pending, pendErr := p.client.PendingCount(ctx)

	return PoolHealth{
		IsHealthy:    lenErr == nil && pendErr == nil,
		WorkerCount:  len(p.workers),
		QueueLength:  length,
		PendingCount: pending,
		WorkerStats:  stats,
	}
}
