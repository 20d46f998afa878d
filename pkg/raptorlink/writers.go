package raptorlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelWriterClosed is returned when a channel writer is used after being closed.
var ErrChannelWriterClosed = errors.New("raptorlink: channel writer closed")

// PointBatchFunc receives each flushed batch, in order.
type PointBatchFunc func(ctx context.Context, points []Point) error

// NewCallbackWriter adapts a function into a PointWriter so callers can plug
// arbitrary storage without defining structs.
func NewCallbackWriter(name string, fn PointBatchFunc) PointWriter {
	if name == "" {
		name = "callback"
	}
	return &callbackWriter{name: name, fn: fn}
}

// NewChannelWriter exposes batches via a channel; it returns the writer, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelWriter(name string, buffer int) (PointWriter, <-chan []Point, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Point, buffer)
	w := &channelWriter{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return w, ch, func() { w.close() }
}

type callbackWriter struct {
	name string
	fn   PointBatchFunc
}

func (w *callbackWriter) WritePoints(ctx context.Context, points []Point) error {
	if w.fn == nil {
		return fmt.Errorf("callback writer %q: nil handler", w.name)
	}
	if len(points) == 0 {
		return nil
	}
	return w.fn(ctx, copyPoints(points))
}

func (w *callbackWriter) Name() string { return w.name }

type channelWriter struct {
	name   string
	ch     chan []Point
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (w *channelWriter) WritePoints(ctx context.Context, points []Point) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	select {
	case <-w.closed:
		return ErrChannelWriterClosed
	default:
	}

	if len(points) == 0 {
		return nil
	}

	select {
	case <-w.closed:
		return ErrChannelWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	case w.ch <- copyPoints(points):
		return nil
	}
}

func (w *channelWriter) Name() string { return w.name }

func (w *channelWriter) close() {
	w.once.Do(func() {
		close(w.closed)
		w.mu.Lock()
		close(w.ch)
		w.mu.Unlock()
	})
}

func copyPoints(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	return out
}
