package raptorlink

import (
	"github.com/ghalamif/raptorlink/internal/adapters/command"
	"github.com/ghalamif/raptorlink/internal/adapters/discovery"
	"github.com/ghalamif/raptorlink/internal/adapters/seriallink"
	"github.com/ghalamif/raptorlink/internal/adapters/sink"
	"github.com/ghalamif/raptorlink/internal/app/config"
	"github.com/ghalamif/raptorlink/internal/ports"
	"github.com/ghalamif/raptorlink/internal/wire"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy sizes the telemetry queue and batches.
	Policy = ports.Policy
	// SerialConfig selects the UART carrying telemetry.
	SerialConfig = seriallink.Config
	// DiscoveryConfig tunes the broadcast scan.
	DiscoveryConfig = discovery.Config
	// CommandConfig tunes the stream command transport.
	CommandConfig = command.Config
	// GRPCConfig tunes the gRPC command transport.
	GRPCConfig = command.GRPCConfig
	// Storage backend settings; Backend picks which one is used.
	StorageConfig   = config.StorageConfig
	InfluxConfig    = sink.InfluxConfig
	TimescaleConfig = config.TimescaleConfig
	KafkaConfig     = sink.KafkaConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
)

type (
	// DiscoveryWindow selects how long a scan keeps listening.
	DiscoveryWindow = discovery.WindowMode
	// Framing selects how command messages are delimited on the stream.
	Framing = wire.Framing
)

const (
	WindowIdle       = discovery.WindowIdle
	WindowFixed      = discovery.WindowFixed
	FramingDelimited = wire.FramingDelimited
	FramingRaw       = wire.FramingRaw
)

// Storage backend names accepted in StorageConfig.Backend.
const (
	BackendInflux    = config.BackendInflux
	BackendTimescale = config.BackendTimescale
	BackendKafka     = config.BackendKafka
)

// LoadConfig loads YAML from disk (optional when path is empty), then .env
// files and the environment.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	return config.Load(path, envFiles...)
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() *Config {
	return config.Default()
}
