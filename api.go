package raptorlink

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	base "github.com/ghalamif/raptorlink/pkg/raptorlink"
)

// Re-exported errors for convenience.
var (
	ErrDecode              = base.ErrDecode
	ErrTruncated           = base.ErrTruncated
	ErrKindMismatch        = base.ErrKindMismatch
	ErrMessageTooLarge     = base.ErrMessageTooLarge
	ErrConnection          = base.ErrConnection
	ErrTimeout             = base.ErrTimeout
	ErrProtocol            = base.ErrProtocol
	ErrParse               = base.ErrParse
	ErrPipelineTerminated  = base.ErrPipelineTerminated
	ErrInvalidConfig       = base.ErrInvalidConfig
	ErrCommandRejected     = base.ErrCommandRejected
	ErrChannelWriterClosed = base.ErrChannelWriterClosed
)

// Type aliases so consumers can import github.com/ghalamif/raptorlink directly.
type (
	Config            = base.Config
	Policy            = base.Policy
	SerialConfig      = base.SerialConfig
	DiscoveryConfig   = base.DiscoveryConfig
	DiscoveryWindow   = base.DiscoveryWindow
	CommandConfig     = base.CommandConfig
	GRPCConfig        = base.GRPCConfig
	Framing           = base.Framing
	StorageConfig     = base.StorageConfig
	InfluxConfig      = base.InfluxConfig
	TimescaleConfig   = base.TimescaleConfig
	KafkaConfig       = base.KafkaConfig
	MetricsConfig     = base.MetricsConfig
	Device            = base.Device
	CommandRequest    = base.CommandRequest
	CommandResponse   = base.CommandResponse
	CommandStatus     = base.CommandStatus
	VersionInfo       = base.VersionInfo
	Sample            = base.Sample
	Point             = base.Point
	PointWriter       = base.PointWriter
	PointBatchFunc    = base.PointBatchFunc
	SampleQueue       = base.SampleQueue
	Discoverer        = base.Discoverer
	Commander         = base.Commander
	Observability     = base.Observability
	Field             = base.Field
	CommandClient     = base.CommandClient
	GRPCCommandClient = base.GRPCCommandClient
	DiscoveryService  = base.DiscoveryService
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Publisher         = base.Publisher
)

const (
	StatusUnspecified = base.StatusUnspecified
	StatusOK          = base.StatusOK
	StatusGenErr      = base.StatusGenErr
	WindowIdle        = base.WindowIdle
	WindowFixed       = base.WindowFixed
	FramingDelimited  = base.FramingDelimited
	FramingRaw        = base.FramingRaw
	BackendInflux     = base.BackendInflux
	BackendTimescale  = base.BackendTimescale
	BackendKafka      = base.BackendKafka
)

// Config helpers.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	return base.LoadConfig(path, envFiles...)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Device helpers.
func NewDiscovery(cfg DiscoveryConfig, logger *zap.Logger) (*DiscoveryService, error) {
	return base.NewDiscovery(cfg, logger)
}

func Discover(ctx context.Context, cfg DiscoveryConfig, broadcastAddr string, logger *zap.Logger) ([]Device, error) {
	return base.Discover(ctx, cfg, broadcastAddr, logger)
}

func NewCommandClient(cfg CommandConfig, logger *zap.Logger) (*CommandClient, error) {
	return base.NewCommandClient(cfg, logger)
}

func NewGRPCCommandClient(cfg GRPCConfig, logger *zap.Logger) *GRPCCommandClient {
	return base.NewGRPCCommandClient(cfg, logger)
}

func GetVersionRequest() CommandRequest {
	return base.GetVersionRequest()
}

func GetVersion(ctx context.Context, c Commander, addr string) (VersionInfo, error) {
	return base.GetVersion(ctx, c, addr)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInLink(r io.Reader) StreamInOption {
	return base.StreamInLink(r)
}

func StreamInQueue(q SampleQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutWriter(w PointWriter) StreamOutOption {
	return base.StreamOutWriter(w)
}

func StreamOutCallback(name string, fn PointBatchFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithLink(r io.Reader) RuntimeOption {
	return base.WithLink(r)
}

func WithSampleQueue(q SampleQueue) RuntimeOption {
	return base.WithSampleQueue(q)
}

func WithWriter(w PointWriter) RuntimeOption {
	return base.WithWriter(w)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *zap.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithoutMetricsServer() RuntimeOption {
	return base.WithoutMetricsServer()
}

// Writer adapters.
func NewCallbackWriter(name string, fn PointBatchFunc) PointWriter {
	return base.NewCallbackWriter(name, fn)
}

func NewChannelWriter(name string, buffer int) (PointWriter, <-chan []Point, func()) {
	return base.NewChannelWriter(name, buffer)
}

// In-process publisher.
func NewPublisher(pol Policy, w PointWriter, obs Observability) (*Publisher, error) {
	return base.NewPublisher(pol, w, obs)
}
