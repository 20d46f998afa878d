// Package pipeline moves telemetry from a byte link to a storage backend
// through one bounded queue.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/raptorlink/internal/adapters/queue"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

const DefaultQueueCapacity = 1000

// Task is one long-running pipeline stage.
type Task interface {
	Run(ctx context.Context) error
}

// Run wires link to w through a fresh bounded queue and blocks until the
// pipeline stops. Cancelling ctx is a clean stop and returns nil. Any stage
// ending on its own is fatal and is reported as domain.ErrPipelineTerminated.
func Run(ctx context.Context, link io.Reader, w ports.PointWriter, pol ports.Policy, obs ports.Observability) error {
	capacity := pol.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return RunWithQueue(ctx, link, queue.NewMemQueue(capacity), w, pol, obs)
}

// RunWithQueue is Run over a caller supplied queue. The queue must not be
// shared with another producer or consumer.
func RunWithQueue(ctx context.Context, link io.Reader, q ports.SampleQueue, w ports.PointWriter, pol ports.Policy, obs ports.Observability) error {
	obs.LogInfo("pipeline_starting",
		ports.Field{Key: "queue_capacity", Value: q.Cap()},
		ports.Field{Key: "backend", Value: w.Name()})

	return Supervise(ctx, obs, map[string]Task{
		"source": NewSource(link, q, pol, obs),
		"sink":   NewSink(q, w, pol, obs),
	})
}

// Supervise runs every task concurrently. The first task to return stops the
// rest; none is restarted.
func Supervise(ctx context.Context, obs ports.Observability, tasks map[string]Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, task := range tasks {
		g.Go(func() error {
			err := task.Run(gctx)
			if ctx.Err() != nil {
				return nil
			}
			if gctx.Err() != nil {
				// a sibling already failed and owns the error
				return nil
			}
			if err == nil {
				err = fmt.Errorf("returned without error")
			}
			obs.LogError("pipeline_task_stopped", err, ports.Field{Key: "task", Value: name})
			return fmt.Errorf("%w: %s: %w", domain.ErrPipelineTerminated, name, err)
		})
	}
	err := g.Wait()
	if err == nil {
		obs.LogInfo("pipeline_stopped")
	}
	return err
}
