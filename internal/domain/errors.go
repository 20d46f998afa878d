package domain

import "errors"

// Error taxonomy shared by every component. Callers match with errors.Is.
var (
	// ErrDecode marks malformed, truncated or mismatched wire data.
	ErrDecode = errors.New("raptor: decode error")
	// ErrTruncated is wrapped alongside ErrDecode when input ends early.
	ErrTruncated = errors.New("raptor: truncated message")
	// ErrKindMismatch is wrapped alongside ErrDecode when bytes are not the expected message kind.
	ErrKindMismatch = errors.New("raptor: unexpected message kind")
	// ErrMessageTooLarge is returned when a frame exceeds the configured maximum size.
	ErrMessageTooLarge = errors.New("raptor: message too large")

	// ErrConnection marks an unreachable or refusing peer.
	ErrConnection = errors.New("raptor: connection error")
	// ErrTimeout marks a peer that did not answer within its deadline.
	ErrTimeout = errors.New("raptor: timeout")
	// ErrProtocol marks a response that could not be understood.
	ErrProtocol = errors.New("raptor: protocol error")

	// ErrParse marks a telemetry line that is not a list of floats.
	ErrParse = errors.New("raptor: telemetry parse error")

	// ErrPipelineTerminated is returned when the source or sink task exits on its own.
	ErrPipelineTerminated = errors.New("raptor: telemetry pipeline terminated")

	ErrInvalidConfig = errors.New("raptor: invalid configuration")
)
