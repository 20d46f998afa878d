package raptorlink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/adapters/command"
	"github.com/ghalamif/raptorlink/internal/adapters/discovery"
	"github.com/ghalamif/raptorlink/internal/domain"
)

// ErrCommandRejected is returned by helpers that need an OK status.
var ErrCommandRejected = errors.New("raptorlink: device rejected command")

type (
	CommandClient     = command.Client
	GRPCCommandClient = command.GRPCClient
	DiscoveryService  = discovery.Service
)

// NewDiscovery builds a scanner; see DiscoveryConfig for the defaults.
func NewDiscovery(cfg DiscoveryConfig, logger *zap.Logger) (*DiscoveryService, error) {
	return discovery.New(cfg, logger)
}

// Discover runs a single scan against broadcastAddr.
func Discover(ctx context.Context, cfg DiscoveryConfig, broadcastAddr string, logger *zap.Logger) ([]Device, error) {
	svc, err := discovery.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return svc.Discover(ctx, broadcastAddr)
}

func NewCommandClient(cfg CommandConfig, logger *zap.Logger) (*CommandClient, error) {
	return command.NewClient(cfg, logger)
}

func NewGRPCCommandClient(cfg GRPCConfig, logger *zap.Logger) *GRPCCommandClient {
	return command.NewGRPCClient(cfg, logger)
}

// GetVersionRequest builds the get_version command.
func GetVersionRequest() CommandRequest {
	return domain.NewGetVersion()
}

// GetVersion asks the device at addr for its versions. A non-OK status is
// reported as ErrCommandRejected.
func GetVersion(ctx context.Context, c Commander, addr string) (VersionInfo, error) {
	resp, err := c.SendCommand(ctx, addr, domain.NewGetVersion())
	if err != nil {
		return VersionInfo{}, err
	}
	if !resp.OK() {
		return VersionInfo{}, fmt.Errorf("%w: status %s", ErrCommandRejected, resp.Status)
	}
	if resp.GetVersion == nil {
		return VersionInfo{}, fmt.Errorf("%w: OK response without get_version payload", domain.ErrProtocol)
	}
	return *resp.GetVersion, nil
}
