package discovery

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/wire"
)

// responder answers the first discovery request it receives with the given datagrams,
// pausing gap between each one.
func responder(t *testing.T, gap time.Duration, replies ...[]byte) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 64)
		_, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		for _, r := range replies {
			if gap > 0 {
				time.Sleep(gap)
			}
			if _, err := conn.WriteToUDP(r, from); err != nil {
				return
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func reply(uuid uint64) []byte {
	return wire.AppendDiscoveryResponse(nil, domain.DiscoveryResponse{
		UUID:            uuid,
		HardwareVersion: "0.1.0",
		FirmwareVersion: "1.0.0",
	})
}

func newService(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.ListenAddr = "127.0.0.1:0"
	svc, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func TestDiscoverNoDevicesReturnsEmpty(t *testing.T) {
	port := responder(t, 0)
	svc := newService(t, Config{Port: port, Timeout: 100 * time.Millisecond})

	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, devices)
	require.Empty(t, devices)
}

func TestDiscoverPreservesDuplicates(t *testing.T) {
	port := responder(t, 0, reply(1), reply(2), reply(2))
	svc := newService(t, Config{Port: port, Timeout: 200 * time.Millisecond})

	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, devices, 3)

	uuids := []uint64{devices[0].UUID, devices[1].UUID, devices[2].UUID}
	require.ElementsMatch(t, []uint64{1, 2, 2}, uuids)
	for _, d := range devices {
		require.Equal(t, "127.0.0.1", d.IPAddress)
		require.Equal(t, "0.1.0", d.HardwareVersion)
		require.Equal(t, "1.0.0", d.FirmwareVersion)
	}
}

func TestDiscoverDedupe(t *testing.T) {
	port := responder(t, 0, reply(1), reply(2), reply(2))
	svc := newService(t, Config{Port: port, Timeout: 200 * time.Millisecond, Dedupe: true})

	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
}

func TestDiscoverSkipsUndecodableDatagrams(t *testing.T) {
	port := responder(t, 0, []byte{0xff, 0xff}, reply(7), []byte("hello"))
	svc := newService(t, Config{Port: port, Timeout: 200 * time.Millisecond})

	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, uint64(7), devices[0].UUID)
}

func TestDiscoverIdleWindowResetsOnEachAnswer(t *testing.T) {
	port := responder(t, 60*time.Millisecond, reply(1), reply(2), reply(3))
	svc := newService(t, Config{Port: port, Timeout: 150 * time.Millisecond, Window: WindowIdle})

	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, devices, 3)
}

func TestDiscoverFixedWindowStopsOnTime(t *testing.T) {
	replies := make([][]byte, 20)
	for i := range replies {
		replies[i] = reply(uint64(i))
	}
	port := responder(t, 40*time.Millisecond, replies...)
	svc := newService(t, Config{Port: port, Timeout: 150 * time.Millisecond, Window: WindowFixed})

	start := time.Now()
	devices, err := svc.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Less(t, len(devices), len(replies))
	require.Less(t, time.Since(start), time.Second)
}

func TestDiscoverHonoursContext(t *testing.T) {
	port := responder(t, 0)
	svc := newService(t, Config{Port: port, Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	devices, err := svc.Discover(ctx, "127.0.0.1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, devices)
}

func TestDiscoverCancelDuringBusyScan(t *testing.T) {
	replies := make([][]byte, 400)
	for i := range replies {
		replies[i] = reply(uint64(i + 1))
	}
	for i := 0; i < 5; i++ {
		port := responder(t, time.Millisecond, replies...)
		svc := newService(t, Config{Port: port, Timeout: 5 * time.Second})

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(30*time.Millisecond, cancel)

		start := time.Now()
		_, err := svc.Discover(ctx, "127.0.0.1")
		cancel()
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(start), time.Second)
	}
}

func TestDiscoverAddressWithPortOverridesConfig(t *testing.T) {
	port := responder(t, 0, reply(42))
	svc := newService(t, Config{Port: 1, Timeout: 100 * time.Millisecond})

	devices, err := svc.Discover(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	require.Len(t, devices, 1)
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{Window: "forever"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
