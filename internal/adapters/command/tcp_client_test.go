package command_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ghalamif/raptorlink/internal/adapters/command"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/simulator"
	"github.com/ghalamif/raptorlink/internal/wire"
)

func startDevice(t *testing.T, cfg simulator.Config) *simulator.Device {
	t.Helper()
	dev, err := simulator.Start(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func newClient(t *testing.T, cfg command.Config) *command.Client {
	t.Helper()
	c, err := command.NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

// stubPeer accepts one connection, drains the request and writes reply verbatim.
func stubPeer(t *testing.T, reply []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(reply)
	}()
	return ln.Addr().String()
}

func TestSendCommandGetVersion(t *testing.T) {
	for _, framing := range []wire.Framing{wire.FramingDelimited, wire.FramingRaw} {
		t.Run(string(framing), func(t *testing.T) {
			dev := startDevice(t, simulator.Config{
				UUID:            1,
				FirmwareVersion: "1.2.3",
				CommandAddr:     "127.0.0.1:0",
				Framing:         framing,
			})
			client := newClient(t, command.Config{Framing: framing, Timeout: time.Second})

			resp, err := client.SendCommand(context.Background(), dev.CommandAddr(), domain.NewGetVersion())
			require.NoError(t, err)
			require.Equal(t, domain.StatusOK, resp.Status)
			require.NotNil(t, resp.GetVersion)
			require.Equal(t, "1.2.3", resp.GetVersion.FirmwareVersion)
		})
	}
}

func TestSendCommandNonOKStatusIsNotAnError(t *testing.T) {
	addr := stubPeer(t, wire.AppendCommandResponse(nil, domain.CommandResponse{Status: domain.StatusGenErr}))
	client := newClient(t, command.Config{Framing: wire.FramingRaw, Timeout: time.Second})

	resp, err := client.SendCommand(context.Background(), addr, domain.NewGetVersion())
	require.NoError(t, err)
	require.False(t, resp.OK())
	require.Equal(t, domain.StatusGenErr, resp.Status)
}

func TestSendCommandSilentPeerTimesOut(t *testing.T) {
	dev := startDevice(t, simulator.Config{CommandAddr: "127.0.0.1:0", Mute: true})
	client := newClient(t, command.Config{Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := client.SendCommand(context.Background(), dev.CommandAddr(), domain.NewGetVersion())
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestSendCommandContextDeadline(t *testing.T) {
	dev := startDevice(t, simulator.Config{CommandAddr: "127.0.0.1:0", Mute: true})
	client := newClient(t, command.Config{Timeout: -1})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.SendCommand(ctx, dev.CommandAddr(), domain.NewGetVersion())
	require.ErrorIs(t, err, domain.ErrTimeout)
}

func TestSendCommandConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := newClient(t, command.Config{Timeout: time.Second})
	_, err = client.SendCommand(context.Background(), addr, domain.NewGetVersion())
	require.ErrorIs(t, err, domain.ErrConnection)
}

func TestSendCommandGarbageReplyIsProtocolError(t *testing.T) {
	addr := stubPeer(t, []byte{0xff, 0xff, 0xff})
	client := newClient(t, command.Config{Framing: wire.FramingRaw, Timeout: time.Second})

	_, err := client.SendCommand(context.Background(), addr, domain.NewGetVersion())
	require.ErrorIs(t, err, domain.ErrProtocol)
	require.ErrorIs(t, err, domain.ErrDecode)
}

func TestSendCommandOversizedReply(t *testing.T) {
	big := make([]byte, 1400)
	for i := range big {
		big[i] = 'x'
	}
	resp := wire.AppendCommandResponse(nil, domain.CommandResponse{
		Status:     domain.StatusOK,
		GetVersion: &domain.VersionInfo{FirmwareVersion: string(big)},
	})

	t.Run("raw", func(t *testing.T) {
		addr := stubPeer(t, resp)
		client := newClient(t, command.Config{Framing: wire.FramingRaw, Timeout: time.Second})
		_, err := client.SendCommand(context.Background(), addr, domain.NewGetVersion())
		require.ErrorIs(t, err, domain.ErrProtocol)
	})
	t.Run("delimited", func(t *testing.T) {
		addr := stubPeer(t, wire.AppendFrame(nil, resp))
		client := newClient(t, command.Config{Timeout: time.Second})
		_, err := client.SendCommand(context.Background(), addr, domain.NewGetVersion())
		require.ErrorIs(t, err, domain.ErrProtocol)
		require.ErrorIs(t, err, domain.ErrMessageTooLarge)
	})
}

func TestSendCommandRejectsEmptyRequest(t *testing.T) {
	client := newClient(t, command.Config{})
	_, err := client.SendCommand(context.Background(), "127.0.0.1", domain.CommandRequest{})
	require.Error(t, err)
}

func TestNewClientValidatesFraming(t *testing.T) {
	_, err := command.NewClient(command.Config{Framing: "jsonl"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
