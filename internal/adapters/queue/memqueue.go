package queue

import (
	"context"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

// MemQueue is a bounded in-memory FIFO backed by a buffered channel.
// It is meant for exactly one producer and one consumer.
type MemQueue struct {
	ch chan domain.Sample
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemQueue{ch: make(chan domain.Sample, capacity)}
}

func (q *MemQueue) Offer(s domain.Sample) bool {
	select {
	case q.ch <- s:
		return true
	default:
		return false
	}
}

func (q *MemQueue) Take(ctx context.Context) (domain.Sample, error) {
	select {
	case s := <-q.ch:
		return s, nil
	case <-ctx.Done():
		return domain.Sample{}, ctx.Err()
	}
}

// TryTake returns the next sample without blocking.
func (q *MemQueue) TryTake() (domain.Sample, bool) {
	select {
	case s := <-q.ch:
		return s, true
	default:
		return domain.Sample{}, false
	}
}

func (q *MemQueue) Len() int { return len(q.ch) }

func (q *MemQueue) Cap() int { return cap(q.ch) }

var _ ports.SampleQueue = (*MemQueue)(nil)
