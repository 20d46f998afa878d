package raptorlink

import (
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

// Device is one unit that answered discovery.
type Device = domain.Device

type (
	CommandRequest  = domain.CommandRequest
	CommandResponse = domain.CommandResponse
	CommandStatus   = domain.CommandStatus
	VersionInfo     = domain.VersionInfo
)

const (
	StatusUnspecified = domain.StatusUnspecified
	StatusOK          = domain.StatusOK
	StatusGenErr      = domain.StatusGenErr
)

// Sample is one parsed telemetry value with its synthetic timestamp.
type Sample = domain.Sample

// Point is the storage-ready form of a Sample.
type Point = domain.Point

// PointWriter persists batches of points to any downstream system.
type PointWriter = ports.PointWriter

// SampleQueue is the bounded queue between the telemetry source and sink.
type SampleQueue = ports.SampleQueue

// Discoverer and Commander are the device-facing ports.
type (
	Discoverer = ports.Discoverer
	Commander  = ports.Commander
)

// Observability emits metrics and logs about throughput and losses.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Errors callers can match with errors.Is.
var (
	ErrDecode             = domain.ErrDecode
	ErrTruncated          = domain.ErrTruncated
	ErrKindMismatch       = domain.ErrKindMismatch
	ErrMessageTooLarge    = domain.ErrMessageTooLarge
	ErrConnection         = domain.ErrConnection
	ErrTimeout            = domain.ErrTimeout
	ErrProtocol           = domain.ErrProtocol
	ErrParse              = domain.ErrParse
	ErrPipelineTerminated = domain.ErrPipelineTerminated
	ErrInvalidConfig      = domain.ErrInvalidConfig
)
