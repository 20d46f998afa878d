package domain

import "fmt"

// CommandStatus mirrors raptor.v1.CommandStatus.
type CommandStatus int32

const (
	StatusUnspecified CommandStatus = 0
	StatusOK          CommandStatus = 1
	StatusGenErr      CommandStatus = 2
)

func (s CommandStatus) String() string {
	switch s {
	case StatusUnspecified:
		return "COMMAND_STATUS_UNSPECIFIED"
	case StatusOK:
		return "COMMAND_STATUS_OK"
	case StatusGenErr:
		return "COMMAND_STATUS_GEN_ERR"
	default:
		return fmt.Sprintf("COMMAND_STATUS(%d)", int32(s))
	}
}

// CommandKind names the sub-command carried by a request.
type CommandKind int

const (
	KindNone CommandKind = iota
	KindGetVersion
)

func (k CommandKind) String() string {
	switch k {
	case KindGetVersion:
		return "get_version"
	default:
		return "none"
	}
}

// GetVersionRequest asks a device for its firmware and hardware versions.
type GetVersionRequest struct{}

// VersionInfo is the payload of a get_version response.
type VersionInfo struct {
	FirmwareVersion string `json:"firmware_version"`
	HardwareVersion string `json:"hardware_version"`
}

// CommandRequest carries exactly one sub-command. Only one field may be set.
type CommandRequest struct {
	GetVersion *GetVersionRequest `json:"get_version,omitempty"`
}

// Kind reports which sub-command the request carries.
func (r CommandRequest) Kind() CommandKind {
	if r.GetVersion != nil {
		return KindGetVersion
	}
	return KindNone
}

// NewGetVersion builds a get_version request.
func NewGetVersion() CommandRequest {
	return CommandRequest{GetVersion: &GetVersionRequest{}}
}

// CommandResponse is a device's reply. A non-OK Status is a normal outcome.
type CommandResponse struct {
	Status     CommandStatus `json:"status"`
	GetVersion *VersionInfo  `json:"get_version,omitempty"`
}

// OK reports whether the device accepted the command.
func (r CommandResponse) OK() bool { return r.Status == StatusOK }

// DiscoveryRequest is the broadcast probe. It has no fields.
type DiscoveryRequest struct{}

// DiscoveryResponse is a device's unicast answer to a probe.
type DiscoveryResponse struct {
	UUID            uint64
	HardwareVersion string
	FirmwareVersion string
}

// Device binds the response to the address it arrived from.
func (r DiscoveryResponse) Device(ip string) Device {
	return Device{
		UUID:            r.UUID,
		IPAddress:       ip,
		HardwareVersion: r.HardwareVersion,
		FirmwareVersion: r.FirmwareVersion,
	}
}
