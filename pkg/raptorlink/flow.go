package raptorlink

import (
	"context"
	"fmt"
	"io"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the link side of the pipeline.
type StreamInOption func(*Flow)

// StreamOutOption configures the storage side of the pipeline.
type StreamOutOption func(*Flow)

// Conf loads configuration, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records link-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records storage-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInLink reads telemetry lines from r instead of the serial port.
func StreamInLink(r io.Reader) StreamInOption {
	return func(f *Flow) {
		if f != nil && r != nil {
			f.appendOptions(WithLink(r))
		}
	}
}

// StreamInQueue swaps the bounded queue the link feeds.
func StreamInQueue(q SampleQueue) StreamInOption {
	return func(f *Flow) {
		if f != nil && q != nil {
			f.appendOptions(WithSampleQueue(q))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutWriter injects a custom PointWriter.
func StreamOutWriter(w PointWriter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && w != nil {
			f.appendOptions(WithWriter(w))
		}
	}
}

// StreamOutCallback installs a writer built from a simple callback function.
func StreamOutCallback(name string, fn PointBatchFunc) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithWriter(NewCallbackWriter(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
