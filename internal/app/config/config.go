package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/raptorlink/internal/adapters/command"
	"github.com/ghalamif/raptorlink/internal/adapters/discovery"
	"github.com/ghalamif/raptorlink/internal/adapters/seriallink"
	"github.com/ghalamif/raptorlink/internal/adapters/sink"
	"github.com/ghalamif/raptorlink/internal/app/pipeline"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
	"github.com/ghalamif/raptorlink/internal/wire"
)

const (
	BackendInflux    = "influx"
	BackendTimescale = "timescale"
	BackendKafka     = "kafka"
)

type Config struct {
	Policy    ports.Policy       `yaml:"policy"`
	Serial    seriallink.Config  `yaml:"serial"`
	Discovery discovery.Config   `yaml:"discovery"`
	Command   command.Config     `yaml:"command"`
	GRPC      command.GRPCConfig `yaml:"grpc"`
	Storage   StorageConfig      `yaml:"storage"`
	Metrics   MetricsConfig      `yaml:"metrics"`
}

type StorageConfig struct {
	Backend   string            `yaml:"backend"`
	Influx    sink.InfluxConfig `yaml:"influx"`
	Timescale TimescaleConfig   `yaml:"timescale"`
	Kafka     sink.KafkaConfig  `yaml:"kafka"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the optional YAML file at path, then the .env files (missing
// ones are ignored), then the process environment. Later sources win.
func Load(path string, envFiles ...string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", domain.ErrInvalidConfig, key, v, err)
		}
		*dst = n
		return nil
	}

	str("INFLUX_URL", &c.Storage.Influx.URL)
	str("INFLUX_TOKEN", &c.Storage.Influx.Token)
	str("INFLUX_ORG", &c.Storage.Influx.Org)
	str("INFLUX_BUCKET", &c.Storage.Influx.Bucket)
	str("PORT", &c.Serial.Port)
	str("RAPTOR_BACKEND", &c.Storage.Backend)
	str("RAPTOR_TIMESCALE_DSN", &c.Storage.Timescale.ConnString)
	str("RAPTOR_KAFKA_TOPIC", &c.Storage.Kafka.Topic)
	str("RAPTOR_METRICS_ADDR", &c.Metrics.Addr)
	str("RAPTOR_MEASUREMENT", &c.Policy.Measurement)

	var framing string
	str("RAPTOR_FRAMING", &framing)
	if framing != "" {
		c.Command.Framing = wire.Framing(framing)
	}
	if v, ok := lookup("RAPTOR_KAFKA_BROKERS"); ok && v != "" {
		c.Storage.Kafka.Brokers = splitList(v)
	}

	return errors.Join(
		num("BAUDRATE", &c.Serial.BaudRate),
		num("RAPTOR_DISCOVERY_PORT", &c.Discovery.Port),
		num("RAPTOR_COMMAND_PORT", &c.Command.Port),
		num("RAPTOR_QUEUE_CAPACITY", &c.Policy.QueueCapacity),
		num("RAPTOR_BATCH_SIZE", &c.Policy.BatchSize),
	)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Policy.QueueCapacity == 0 {
		c.Policy.QueueCapacity = pipeline.DefaultQueueCapacity
	}
	if c.Policy.BatchSize == 0 {
		c.Policy.BatchSize = pipeline.DefaultBatchSize
	}
	if c.Policy.SampleInterval == 0 {
		c.Policy.SampleInterval = pipeline.DefaultSampleInterval
	}
	if c.Policy.PollInterval == 0 {
		c.Policy.PollInterval = seriallink.DefaultReadTimeout
	}
	if c.Policy.ShutdownTimeout == 0 {
		c.Policy.ShutdownTimeout = pipeline.DefaultShutdownTimeout
	}
	if c.Policy.Measurement == "" {
		c.Policy.Measurement = pipeline.DefaultMeasurement
	}
	if c.Policy.Field == "" {
		c.Policy.Field = pipeline.DefaultField
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = c.Policy.PollInterval
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendInflux
	}
	if c.Storage.Timescale.Table == "" {
		c.Storage.Timescale.Table = "samples"
	}
	if c.Storage.Kafka.Topic == "" {
		c.Storage.Kafka.Topic = "raptor.telemetry"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	c.Serial.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Command.ApplyDefaults()
	c.GRPC.ApplyDefaults()
}

func (c *Config) validate() error {
	if c.Policy.QueueCapacity < 1 {
		return fmt.Errorf("%w: policy.queue_capacity must be positive", domain.ErrInvalidConfig)
	}
	if c.Policy.BatchSize < 1 {
		return fmt.Errorf("%w: policy.batch_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Policy.SampleInterval < time.Nanosecond {
		return fmt.Errorf("%w: policy.sample_interval must be positive", domain.ErrInvalidConfig)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}
	if err := c.Command.Validate(); err != nil {
		return fmt.Errorf("command config: %w", err)
	}
	switch c.Storage.Backend {
	case BackendInflux, BackendTimescale, BackendKafka:
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", domain.ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required", domain.ErrInvalidConfig)
	}
	return nil
}

// ValidateIngest checks what the telemetry pipeline needs on top of the
// general settings: a serial port and a usable storage backend.
func (c *Config) ValidateIngest() error {
	if err := c.Serial.Validate(); err != nil {
		return fmt.Errorf("serial config: %w", err)
	}
	return c.ValidateStorage()
}

func (c *Config) ValidateStorage() error {
	switch c.Storage.Backend {
	case BackendInflux:
		return c.Storage.Influx.Validate()
	case BackendTimescale:
		if c.Storage.Timescale.ConnString == "" {
			return fmt.Errorf("%w: storage.timescale.conn_string is required", domain.ErrInvalidConfig)
		}
	case BackendKafka:
		return c.Storage.Kafka.Validate()
	}
	return nil
}
