package main

import (
	"context"
	"log"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := raptorlink.Discover(ctx, raptorlink.DiscoveryConfig{Timeout: 2 * time.Second}, "", logger)
	if err != nil {
		log.Fatalf("discover: %v", err)
	}

	client, err := raptorlink.NewCommandClient(raptorlink.CommandConfig{}, logger)
	if err != nil {
		log.Fatalf("command client: %v", err)
	}
	for _, d := range devices {
		addr := net.JoinHostPort(d.IPAddress, strconv.Itoa(50051))
		info, err := raptorlink.GetVersion(ctx, client, addr)
		if err != nil {
			logger.Warn("get_version failed", zap.Stringer("device", d), zap.Error(err))
			continue
		}
		logger.Info("device", zap.Uint64("uuid", d.UUID), zap.String("firmware", info.FirmwareVersion))
	}
}
