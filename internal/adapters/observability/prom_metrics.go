package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/ports"
)

// Metric names shared by the pipeline and the CLI stats command.
const (
	MetricSamplesIngested = "raptor_samples_ingested_total"
	MetricSamplesParsed   = "raptor_samples_parsed_total"
	MetricLinesDiscarded  = "raptor_lines_discarded_total"
	MetricQueueDropped    = "raptor_queue_dropped_total"
	MetricFlushFailures   = "raptor_sink_flush_failures_total"
	MetricQueueLength     = "raptor_queue_length"
	MetricFlushLatency    = "raptor_sink_flush_latency_seconds"
)

type PromObs struct {
	log      *zap.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics with reg (the default registerer
// when nil) and logs through logger.
func NewPromObs(logger *zap.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ingested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSamplesIngested,
		Help: "Total samples successfully written to storage.",
	})
	parsed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricSamplesParsed,
		Help: "Total samples parsed from the telemetry link.",
	})
	discarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricLinesDiscarded,
		Help: "Telemetry lines discarded because they did not parse.",
	})
	queueDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricQueueDropped,
		Help: "Samples lost because the telemetry queue was full.",
	})
	flushFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricFlushFailures,
		Help: "Batches the storage backend rejected.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricQueueLength,
		Help: "Current number of samples buffered in the telemetry queue.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricFlushLatency,
		Help:    "Time spent writing one batch to storage.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(ingested, parsed, discarded, queueDrops, flushFailures, queueGauge, latency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			MetricSamplesIngested: ingested,
			MetricSamplesParsed:   parsed,
			MetricLinesDiscarded:  discarded,
			MetricQueueDropped:    queueDrops,
			MetricFlushFailures:   flushFailures,
		},
		gauges: map[string]prometheus.Gauge{
			MetricQueueLength: queueGauge,
		},
		histos: map[string]prometheus.Observer{
			MetricFlushLatency: latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, zapFields(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.Warn(msg, zapFields(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func zapFields(fields []ports.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
