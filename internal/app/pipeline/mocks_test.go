package pipeline

import (
	"context"
	"sync"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

type mockObs struct {
	mu       sync.Mutex
	warnings []string
	errors   []error
	counters map[string]float64
	gauges   map[string]float64
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogWarn(msg string, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, msg)
}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

func (m *mockObs) warnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warnings)
}

// recordingWriter keeps every batch it accepts. fail makes the next n calls error.
type recordingWriter struct {
	mu      sync.Mutex
	batches [][]domain.Point
	fail    int
	gate    chan struct{}
	entered chan struct{}
}

func (w *recordingWriter) Name() string { return "recording" }

func (w *recordingWriter) WritePoints(ctx context.Context, points []domain.Point) error {
	if w.entered != nil {
		w.entered <- struct{}{}
	}
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errWriteFailed
	}
	w.batches = append(w.batches, points)
	return nil
}

func (w *recordingWriter) sizes() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int, 0, len(w.batches))
	for _, b := range w.batches {
		out = append(out, len(b))
	}
	return out
}

func (w *recordingWriter) total() int {
	n := 0
	for _, s := range w.sizes() {
		n += s
	}
	return n
}
