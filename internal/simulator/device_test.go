package simulator_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ghalamif/raptorlink/internal/adapters/discovery"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/simulator"
	"github.com/ghalamif/raptorlink/internal/wire"
)

func TestDeviceAnswersDiscovery(t *testing.T) {
	dev, err := simulator.Start(context.Background(), simulator.Config{
		UUID:            42,
		HardwareVersion: "0.3.0",
		FirmwareVersion: "2.0.1",
		DiscoveryAddr:   "127.0.0.1:0",
		DiscoveryRepeat: 2,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dev.Close()

	svc, err := discovery.New(discovery.Config{Timeout: 200 * time.Millisecond, ListenAddr: "127.0.0.1:0"}, nil)
	require.NoError(t, err)

	devices, err := svc.Discover(context.Background(), dev.DiscoveryAddr().String())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	for _, d := range devices {
		require.Equal(t, uint64(42), d.UUID)
		require.Equal(t, "127.0.0.1", d.IPAddress)
		require.Equal(t, "0.3.0", d.HardwareVersion)
		require.Equal(t, "2.0.1", d.FirmwareVersion)
	}
}

func TestDeviceUndecodableRequestGetsGenErr(t *testing.T) {
	dev, err := simulator.Start(context.Background(), simulator.Config{CommandAddr: "127.0.0.1:0"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dev.Close()

	conn, err := net.Dial("tcp", dev.CommandAddr())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	// empty CommandRequest: no sub-command set
	require.NoError(t, wire.WriteMessage(conn, wire.FramingDelimited, nil))
	raw, err := wire.ReadMessage(conn, wire.FramingDelimited, wire.MaxMessageSize)
	require.NoError(t, err)

	resp, err := wire.DecodeCommandResponse(raw)
	require.NoError(t, err)
	require.Equal(t, domain.StatusGenErr, resp.Status)
	require.Nil(t, resp.GetVersion)
}

func TestDeviceGRPCConnectionsAgeOut(t *testing.T) {
	dev, err := simulator.Start(context.Background(), simulator.Config{
		GRPCAddr:         "127.0.0.1:0",
		MaxConnectionAge: 100 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dev.Close()

	conn, err := grpc.NewClient(dev.GRPCAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn.Connect()
	for s := conn.GetState(); s != connectivity.Ready; s = conn.GetState() {
		require.True(t, conn.WaitForStateChange(ctx, s), "connection never became ready")
	}
	start := time.Now()
	require.True(t, conn.WaitForStateChange(ctx, connectivity.Ready), "server never closed the aged connection")
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestDeviceCloseStopsEndpoints(t *testing.T) {
	dev, err := simulator.Start(context.Background(), simulator.Config{
		CommandAddr: "127.0.0.1:0",
		GRPCAddr:    "127.0.0.1:0",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	addr := dev.CommandAddr()

	require.NoError(t, dev.Close())
	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err)
}

func TestDeviceStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dev, err := simulator.Start(ctx, simulator.Config{CommandAddr: "127.0.0.1:0"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	cancel()
	done := make(chan error, 1)
	go func() { done <- dev.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("device did not stop after cancel")
	}
}

func TestStartFailsOnBadAddress(t *testing.T) {
	_, err := simulator.Start(context.Background(), simulator.Config{CommandAddr: "256.0.0.1:x"}, nil)
	require.Error(t, err)
}
