package domain

import "fmt"

// Device identifies a Raptor unit as reported by a discovery response.
type Device struct {
	UUID            uint64 `json:"uuid"`
	IPAddress       string `json:"ip_address"`
	HardwareVersion string `json:"hardware_version"`
	FirmwareVersion string `json:"firmware_version"`
}

func (d Device) String() string {
	return fmt.Sprintf("raptor %d %s (hw %s, fw %s)", d.UUID, d.IPAddress, d.HardwareVersion, d.FirmwareVersion)
}

// DedupeDevices collapses devices sharing a UUID, keeping the first one seen.
func DedupeDevices(devices []Device) []Device {
	if len(devices) == 0 {
		return devices
	}
	seen := make(map[uint64]struct{}, len(devices))
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if _, ok := seen[d.UUID]; ok {
			continue
		}
		seen[d.UUID] = struct{}{}
		out = append(out, d)
	}
	return out
}
