package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/raptorlink/internal/adapters/observability"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

type funcTask func(ctx context.Context) error

func (f funcTask) Run(ctx context.Context) error { return f(ctx) }

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSuperviseFailingTaskIsFatal(t *testing.T) {
	obs := newMockObs()
	err := Supervise(context.Background(), obs, map[string]Task{
		"source": funcTask(func(context.Context) error { return io.ErrUnexpectedEOF }),
		"sink":   funcTask(blockUntilDone),
	})
	if !errors.Is(err, domain.ErrPipelineTerminated) {
		t.Fatalf("expected ErrPipelineTerminated, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
	if !strings.Contains(err.Error(), "source") {
		t.Fatalf("expected task name in error, got %v", err)
	}
}

func TestSuperviseTaskReturningNilIsFatal(t *testing.T) {
	err := Supervise(context.Background(), newMockObs(), map[string]Task{
		"sink": funcTask(func(context.Context) error { return nil }),
	})
	if !errors.Is(err, domain.ErrPipelineTerminated) {
		t.Fatalf("expected ErrPipelineTerminated, got %v", err)
	}
}

func TestSuperviseParentCancelIsClean(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Supervise(ctx, newMockObs(), map[string]Task{
		"source": funcTask(blockUntilDone),
		"sink":   funcTask(blockUntilDone),
	})
	if err != nil {
		t.Fatalf("expected nil on parent cancel, got %v", err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	pr, pw := io.Pipe()
	w := &recordingWriter{}
	obs := newMockObs()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, pr, w, ports.Policy{QueueCapacity: 100, BatchSize: 50}, obs)
	}()

	go func() {
		for i := 0; i < 75; i++ {
			if _, err := fmt.Fprintf(pw, "%d.5\n", i); err != nil {
				return
			}
		}
	}()

	waitFor(t, func() bool { return w.total() >= 50 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if n := w.total(); n < 50 || n > 75 {
		t.Fatalf("unexpected point count %d", n)
	}
	if w.batches[0][0].Value != 0.5 {
		t.Fatalf("expected first value 0.5, got %v", w.batches[0][0].Value)
	}
}

func TestRunLinkFailureIsFatal(t *testing.T) {
	err := Run(context.Background(), strings.NewReader("1.0\n2.0\n"), &recordingWriter{}, ports.Policy{}, newMockObs())
	if !errors.Is(err, domain.ErrPipelineTerminated) {
		t.Fatalf("expected ErrPipelineTerminated, got %v", err)
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF cause, got %v", err)
	}
}

func TestRunCancelWritesQueuedSamples(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	w := &recordingWriter{gate: make(chan struct{}), entered: make(chan struct{}, 16)}
	obs := newMockObs()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, pr, w, ports.Policy{QueueCapacity: 1000, BatchSize: 50}, obs)
	}()

	go func() {
		for i := 0; i < 200; i++ {
			if _, err := fmt.Fprintf(pw, "%d.0\n", i); err != nil {
				return
			}
		}
	}()

	<-w.entered
	// the first batch is held, so the other 150 samples sit in the queue
	waitFor(t, func() bool {
		return obs.counter(observability.MetricSamplesParsed) == 200 &&
			obs.gauge(observability.MetricQueueLength) == 150
	})
	cancel()
	close(w.gate)

	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if got := w.total(); got != 200 {
		t.Fatalf("expected 200 points after stop, got %d", got)
	}
}
