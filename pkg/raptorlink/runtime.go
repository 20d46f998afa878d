package raptorlink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/adapters/observability"
	"github.com/ghalamif/raptorlink/internal/adapters/seriallink"
	"github.com/ghalamif/raptorlink/internal/adapters/sink"
	"github.com/ghalamif/raptorlink/internal/app/config"
	"github.com/ghalamif/raptorlink/internal/app/pipeline"
	"github.com/ghalamif/raptorlink/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	link          io.Reader
	queue         SampleQueue
	writer        PointWriter
	observability Observability
	logger        *zap.Logger
	registry      *prometheus.Registry
	noMetrics     bool
}

// WithLink replaces the serial port with any line-oriented reader (a pipe,
// a file, a socket).
func WithLink(r io.Reader) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.link = r
	}
}

// WithSampleQueue replaces the in-memory queue between link and storage.
func WithSampleQueue(q SampleQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithWriter injects a storage backend in place of the configured one.
func WithWriter(w PointWriter) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.writer = w
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers the runtime metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithoutMetricsServer skips the /metrics and /healthz listener.
func WithoutMetricsServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noMetrics = true
	}
}

// Runtime wires link → queue → storage and exposes simple lifecycle hooks
// for embedding the telemetry pipeline inside any Go service.
type Runtime struct {
	cfg      *Config
	log      *zap.Logger
	obs      ports.Observability
	registry *prometheus.Registry
	link     io.Reader
	queue    ports.SampleQueue
	writer   ports.PointWriter
	closers  []io.Closer

	serveMetrics bool
	mu           sync.Mutex
	metricsSrv   *http.Server
	metricsLn    net.Listener
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime bootstraps the default adapters (serial link, configured storage
// backend, Prometheus observability). Options override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	logger := overrides.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs(logger, reg)
	}

	rt := &Runtime{
		cfg:          cfg,
		log:          logger,
		obs:          obs,
		registry:     reg,
		serveMetrics: !overrides.noMetrics,
	}

	rt.writer = overrides.writer
	if rt.writer == nil {
		w, err := openWriter(cfg)
		if err != nil {
			return nil, err
		}
		rt.writer = w
		if c, ok := w.(io.Closer); ok {
			rt.closers = append(rt.closers, c)
		}
	}

	rt.link = overrides.link
	rt.queue = overrides.queue
	if rt.link == nil {
		link, err := seriallink.Open(cfg.Serial, logger)
		if err != nil {
			rt.closeAll()
			return nil, err
		}
		rt.link = link
		rt.closers = append(rt.closers, link)
	}

	return rt, nil
}

func openWriter(cfg *Config) (ports.PointWriter, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Backend {
	case config.BackendInflux:
		return sink.NewInfluxSink(cfg.Storage.Influx)
	case config.BackendTimescale:
		db, err := sql.Open("postgres", cfg.Storage.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		return sink.NewTimescaleSink(db, cfg.Storage.Timescale.Table), nil
	case config.BackendKafka:
		return sink.NewKafkaSink(cfg.Storage.Kafka)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Storage.Backend)
	}
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Run starts the metrics server and the pipeline and blocks until ctx is
// cancelled or the pipeline fails. A pipeline failure wraps
// ErrPipelineTerminated.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Shutdown(shutdownCtx); err != nil {
			r.log.Warn("runtime shutdown", zap.Error(err))
		}
	}()

	if r.serveMetrics {
		if err := r.startMetrics(); err != nil {
			return err
		}
	}

	if s, ok := r.writer.(schemaEnsurer); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	r.log.Info("telemetry pipeline running",
		zap.String("backend", r.writer.Name()),
		zap.Int("queue_capacity", r.cfg.Policy.QueueCapacity),
		zap.Int("batch_size", r.cfg.Policy.BatchSize))
	if r.queue != nil {
		return pipeline.RunWithQueue(ctx, r.link, r.queue, r.writer, r.cfg.Policy, r.obs)
	}
	return pipeline.Run(ctx, r.link, r.writer, r.cfg.Policy, r.obs)
}

// Shutdown stops the metrics server and closes the link and backend.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		var errs []error
		r.mu.Lock()
		srv := r.metricsSrv
		r.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		if err := r.closeAll(); err != nil {
			errs = append(errs, err)
		}
		r.shutdownErr = errors.Join(errs...)
	})
	return r.shutdownErr
}

func (r *Runtime) closeAll() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// MetricsHandler serves /metrics and /healthz.
func (r *Runtime) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// MetricsAddr is the bound metrics listener address once Run has started.
func (r *Runtime) MetricsAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metricsLn == nil {
		return ""
	}
	return r.metricsLn.Addr().String()
}

func (r *Runtime) startMetrics() error {
	ln, err := net.Listen("tcp", r.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           r.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.mu.Lock()
	r.metricsLn = ln
	r.metricsSrv = srv
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("metrics server exited", zap.Error(err))
		}
	}()
	r.log.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	return nil
}
