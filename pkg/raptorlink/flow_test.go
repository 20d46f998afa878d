package raptorlink

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ghalamif/raptorlink/internal/adapters/queue"
)

type countingQueue struct {
	*queue.MemQueue
	offers atomic.Int64
}

func (c *countingQueue) Offer(s Sample) bool {
	c.offers.Add(1)
	return c.MemQueue.Offer(s)
}

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := DefaultConfig()

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	link := strings.NewReader("")
	w := &stubWriter{}
	obs := &stubObservability{}

	rt, err := flow.
		StreamIN(
			StreamInLink(link),
			StreamInObservability(obs),
		).
		StreamOUT(
			StreamOutWriter(w),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.link != link {
		t.Fatalf("expected custom link to be wired")
	}
	if rt.writer != w {
		t.Fatalf("expected custom writer to be wired")
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be wired")
	}
}

func TestFlowRunWithFiniteLinkTerminates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Metrics.Addr = "127.0.0.1:0"

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	err = flow.
		StreamIN(StreamInLink(strings.NewReader("1.0,2.0\n"))).
		Run(context.Background(), StreamOutCallback("cb", func(context.Context, []Point) error {
			return nil
		}))
	if !errors.Is(err, ErrPipelineTerminated) {
		t.Fatalf("expected ErrPipelineTerminated when the link ends, got %v", err)
	}
}

func TestStreamInQueueIsUsedByTheRuntime(t *testing.T) {
	cfg := DefaultConfig()
	q := &countingQueue{MemQueue: queue.NewMemQueue(8)}

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithoutMetricsServer()))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	var written atomic.Int64
	rt, err := flow.
		StreamIN(StreamInLink(strings.NewReader("1.0,2.0\n")), StreamInQueue(q)).
		StreamOUT(StreamOutCallback("cb", func(_ context.Context, points []Point) error {
			written.Add(int64(len(points)))
			return nil
		}))
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.queue != q {
		t.Fatalf("expected custom queue to be wired")
	}
	if err := rt.Run(context.Background()); !errors.Is(err, ErrPipelineTerminated) {
		t.Fatalf("expected ErrPipelineTerminated when the link ends, got %v", err)
	}
	if got := q.offers.Load(); got != 2 {
		t.Fatalf("expected 2 offers on the custom queue, got %d", got)
	}
	if got := written.Load(); got != 2 {
		t.Fatalf("expected the queued samples to be written on stop, got %d", got)
	}
}
