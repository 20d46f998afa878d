package ports

import (
	"context"

	"github.com/ghalamif/raptorlink/internal/domain"
)

// SampleQueue is the bounded FIFO handoff between the telemetry source and sink.
type SampleQueue interface {
	// Offer enqueues s without blocking. It reports false when the queue is full
	// and the sample was dropped.
	Offer(s domain.Sample) bool
	// Take blocks until a sample is available or ctx is done.
	Take(ctx context.Context) (domain.Sample, error)
	// TryTake returns the next sample without blocking.
	TryTake() (domain.Sample, bool)
	Len() int
	Cap() int
}
