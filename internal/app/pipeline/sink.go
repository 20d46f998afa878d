package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/raptorlink/internal/adapters/observability"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

const (
	DefaultBatchSize       = 50
	DefaultMeasurement     = "adc-dma"
	DefaultField           = "voltage"
	DefaultShutdownTimeout = 5 * time.Second
)

// Sink drains the queue into fixed-size batches and writes each one to the
// storage backend. While a write is outstanding nothing more is taken from
// the queue.
type Sink struct {
	q   ports.SampleQueue
	w   ports.PointWriter
	obs ports.Observability

	batchSize       int
	measurement     string
	field           string
	shutdownTimeout time.Duration

	batch []domain.Point
}

func NewSink(q ports.SampleQueue, w ports.PointWriter, pol ports.Policy, obs ports.Observability) *Sink {
	s := &Sink{
		q:               q,
		w:               w,
		obs:             obs,
		batchSize:       pol.BatchSize,
		measurement:     pol.Measurement,
		field:           pol.Field,
		shutdownTimeout: pol.ShutdownTimeout,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.measurement == "" {
		s.measurement = DefaultMeasurement
	}
	if s.field == "" {
		s.field = DefaultField
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	s.batch = make([]domain.Point, 0, s.batchSize)
	return s
}

// Run consumes until ctx ends. On the way out every sample still queued is
// batched and written.
func (s *Sink) Run(ctx context.Context) error {
	for {
		sample, err := s.q.Take(ctx)
		if err != nil {
			s.drain(ctx)
			return err
		}
		s.add(ctx, sample)
	}
}

func (s *Sink) add(ctx context.Context, sample domain.Sample) {
	s.batch = append(s.batch, domain.PointFromSample(s.measurement, s.field, sample))
	if len(s.batch) >= s.batchSize {
		s.flush(ctx)
	}
}

// drain empties what the queue held when it was called, then writes the
// partial batch.
func (s *Sink) drain(ctx context.Context) {
	for n := s.q.Len(); n > 0; n-- {
		sample, ok := s.q.TryTake()
		if !ok {
			break
		}
		s.add(ctx, sample)
	}
	if len(s.batch) > 0 {
		s.flush(ctx)
	}
}

// flush hands the batch to the writer. The write ignores cancellation of ctx
// and is bounded by the shutdown timeout. A rejected batch is dropped.
func (s *Sink) flush(ctx context.Context) {
	points := s.batch
	s.batch = make([]domain.Point, 0, s.batchSize)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := s.w.WritePoints(wctx, points); err != nil {
		s.obs.IncCounter(observability.MetricFlushFailures, 1)
		s.obs.LogError("sink_write_failed", err,
			ports.Field{Key: "backend", Value: s.w.Name()},
			ports.Field{Key: "points", Value: len(points)})
		return
	}
	s.obs.ObserveLatency(observability.MetricFlushLatency, time.Since(start).Seconds())
	s.obs.IncCounter(observability.MetricSamplesIngested, float64(len(points)))
	s.obs.SetGauge(observability.MetricQueueLength, float64(s.q.Len()))
}
