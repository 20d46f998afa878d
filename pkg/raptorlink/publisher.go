package raptorlink

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/adapters/observability"
	"github.com/ghalamif/raptorlink/internal/adapters/queue"
	"github.com/ghalamif/raptorlink/internal/app/pipeline"
)

// Publisher feeds values produced in-process through the same bounded queue
// and batching sink the serial pipeline uses. Values that do not fit in the
// queue are dropped, exactly as for the serial link.
type Publisher struct {
	mu  sync.Mutex
	src *pipeline.Source

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewPublisher starts the sink side immediately. obs may be nil.
func NewPublisher(pol Policy, w PointWriter, obs Observability) (*Publisher, error) {
	if w == nil {
		return nil, fmt.Errorf("point writer is required")
	}
	if obs == nil {
		obs = observability.NewPromObs(zap.NewNop(), prometheus.NewRegistry())
	}
	capacity := pol.QueueCapacity
	if capacity <= 0 {
		capacity = pipeline.DefaultQueueCapacity
	}
	q := queue.NewMemQueue(capacity)
	snk := pipeline.NewSink(q, w, pol, obs)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		src:    pipeline.NewSource(nil, q, pol, obs),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_ = snk.Run(ctx)
	}()
	return p, nil
}

// Publish offers values in order and reports how many were accepted.
func (p *Publisher) Publish(values ...float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src.Emit(values)
}

// PublishLine parses a comma separated line the way the serial source does.
func (p *Publisher) PublishLine(line string) (int, error) {
	values, err := pipeline.ParseLine([]byte(line))
	if err != nil {
		return 0, err
	}
	return p.Publish(values...), nil
}

// Close stops the sink after writing every value still queued, waiting at
// most until ctx ends.
func (p *Publisher) Close(ctx context.Context) error {
	p.closeOnce.Do(p.cancel)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publisher close: %w", ctx.Err())
	}
}
