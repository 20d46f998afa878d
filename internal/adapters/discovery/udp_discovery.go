// Package discovery finds Raptor devices with a UDP broadcast probe.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
	"github.com/ghalamif/raptorlink/internal/wire"
)

const (
	DefaultPort       = 8000
	DefaultTimeout    = 2 * time.Second
	DefaultBroadcast  = "255.255.255.255"
	DefaultBufferSize = 1024
)

// WindowMode controls how long a scan listens for answers.
type WindowMode string

const (
	// WindowIdle keeps listening until Timeout passes with no new datagram.
	WindowIdle WindowMode = "idle"
	// WindowFixed stops Timeout after the probe was sent.
	WindowFixed WindowMode = "fixed"
)

// Config describes a discovery scan.
type Config struct {
	Port       int           `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	Window     WindowMode    `yaml:"window"`
	Dedupe     bool          `yaml:"dedupe"`
	BufferSize int           `yaml:"buffer_size"`
	// ListenAddr is the local address the probe is sent from.
	ListenAddr string `yaml:"listen_addr"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Window == "" {
		c.Window = WindowIdle
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:0"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: discovery port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	switch c.Window {
	case WindowIdle, WindowFixed:
	default:
		return fmt.Errorf("%w: unknown discovery window %q", domain.ErrInvalidConfig, c.Window)
	}
	return nil
}

// Service runs discovery scans. It holds no per-scan state, so concurrent
// scans are safe; each one opens its own socket.
type Service struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, log: logger.Named("discovery")}, nil
}

// Discover broadcasts one probe to broadcastAddr and collects responses until
// the listen window closes. An empty broadcastAddr means 255.255.255.255; an
// address carrying its own port overrides the configured one.
//
// Undecodable datagrams are skipped. Duplicate UUIDs are preserved unless the
// service was configured to dedupe. If ctx ends first, the devices seen so far
// are returned with ctx.Err().
func (s *Service) Discover(ctx context.Context, broadcastAddr string) ([]domain.Device, error) {
	dst, err := s.resolveTarget(broadcastAddr)
	if err != nil {
		return nil, err
	}
	laddr, err := net.ResolveUDPAddr("udp4", s.cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen addr: %w", err)
	}

	// Go sets SO_BROADCAST on every IPv4 datagram socket.
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: open discovery socket: %w", domain.ErrConnection, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.WriteToUDP(wire.AppendDiscoveryRequest(nil), dst); err != nil {
		return nil, fmt.Errorf("%w: send discovery probe to %s: %w", domain.ErrConnection, dst, err)
	}
	s.log.Debug("discovery probe sent", zap.Stringer("target", dst), zap.String("window", string(s.cfg.Window)))

	var (
		devices []domain.Device
		buf     = make([]byte, s.cfg.BufferSize)
		fixed   = time.Now().Add(s.cfg.Timeout)
	)
	for {
		deadline := fixed
		if s.cfg.Window == WindowIdle {
			deadline = time.Now().Add(s.cfg.Timeout)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
		// a cancel that fired before the line above had its deadline overwritten
		if ctx.Err() != nil {
			return s.finish(devices), ctx.Err()
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(devices), ctx.Err()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return s.finish(devices), nil
			}
			return s.finish(devices), fmt.Errorf("%w: receive discovery response: %w", domain.ErrConnection, err)
		}

		resp, err := wire.DecodeDiscoveryResponse(buf[:n])
		if err != nil {
			s.log.Warn("skipping undecodable discovery datagram", zap.Stringer("from", from), zap.Int("bytes", n), zap.Error(err))
			continue
		}
		dev := resp.Device(from.IP.String())
		s.log.Debug("device answered", zap.Uint64("uuid", dev.UUID), zap.String("ip", dev.IPAddress))
		devices = append(devices, dev)
	}
}

func (s *Service) finish(devices []domain.Device) []domain.Device {
	if devices == nil {
		devices = []domain.Device{}
	}
	if s.cfg.Dedupe {
		devices = domain.DedupeDevices(devices)
	}
	s.log.Info("discovery finished", zap.Int("devices", len(devices)))
	return devices
}

func (s *Service) resolveTarget(addr string) (*net.UDPAddr, error) {
	if addr == "" {
		addr = DefaultBroadcast
	}
	host, port := addr, strconv.Itoa(s.cfg.Port)
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host, port = h, p
	}
	dst, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast addr %q: %w", addr, err)
	}
	return dst, nil
}

var _ ports.Discoverer = (*Service)(nil)
