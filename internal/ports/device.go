package ports

import (
	"context"

	"github.com/ghalamif/raptorlink/internal/domain"
)

// Discoverer enumerates devices reachable from a broadcast address.
type Discoverer interface {
	Discover(ctx context.Context, broadcastAddr string) ([]domain.Device, error)
}

// Commander performs one command round trip against a device.
type Commander interface {
	SendCommand(ctx context.Context, addr string, req domain.CommandRequest) (domain.CommandResponse, error)
}
