package raptorlink

import (
	"context"
	"sync"
)

type stubWriter struct {
	mu     sync.Mutex
	points []Point
}

func (s *stubWriter) WritePoints(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, points...)
	return nil
}
func (s *stubWriter) Name() string { return "stub" }

func (s *stubWriter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)         {}
func (s *stubObservability) LogWarn(string, ...Field)         {}
func (s *stubObservability) LogError(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)       {}
func (s *stubObservability) ObserveLatency(string, float64)   {}
func (s *stubObservability) SetGauge(string, float64)         {}
