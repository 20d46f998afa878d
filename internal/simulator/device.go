// Package simulator emulates a Raptor device on the local host: it answers
// discovery probes, serves the stream command protocol, and optionally the
// gRPC CommandService.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/ghalamif/raptorlink/internal/adapters/command"
	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/wire"
)

// Config describes the emulated unit.
type Config struct {
	UUID            uint64
	HardwareVersion string
	FirmwareVersion string

	// Listen addresses. Empty disables the endpoint.
	DiscoveryAddr string
	CommandAddr   string
	GRPCAddr      string

	Framing wire.Framing
	// Mute makes the command endpoint accept and read requests but never answer.
	Mute bool
	// DiscoveryRepeat sends each discovery answer this many times.
	DiscoveryRepeat int
	// MaxConnectionAge closes gRPC connections after this long, like the
	// firmware's grpc.max_connection_age_ms.
	MaxConnectionAge time.Duration
}

const DefaultMaxConnectionAge = 3 * time.Second

func (c *Config) ApplyDefaults() {
	if c.HardwareVersion == "" {
		c.HardwareVersion = "0.1.0"
	}
	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "1.0.0"
	}
	if c.Framing == "" {
		c.Framing = wire.FramingDelimited
	}
	if c.DiscoveryRepeat <= 0 {
		c.DiscoveryRepeat = 1
	}
	if c.MaxConnectionAge <= 0 {
		c.MaxConnectionAge = DefaultMaxConnectionAge
	}
}

// Device is a running emulator.
type Device struct {
	cfg Config
	log *zap.Logger

	udp  *net.UDPConn
	tcp  net.Listener
	rpc  net.Listener
	grpc *grpc.Server

	cancel context.CancelFunc
	group  *errgroup.Group
	conns  sync.WaitGroup
}

// Start binds every configured endpoint and serves until Close or ctx ends.
func Start(ctx context.Context, cfg Config, logger *zap.Logger) (*Device, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Device{cfg: cfg, log: logger.Named("simulator")}

	if err := d.bind(); err != nil {
		d.closeListeners()
		return nil, err
	}

	ctx, d.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	d.group = g

	if d.udp != nil {
		g.Go(func() error { return d.serveDiscovery(gctx) })
	}
	if d.tcp != nil {
		g.Go(func() error { return d.serveCommands(gctx) })
	}
	if d.rpc != nil {
		g.Go(func() error {
			if err := d.grpc.Serve(d.rpc); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		d.closeListeners()
		return nil
	})

	discovery := ""
	if a := d.DiscoveryAddr(); a != nil {
		discovery = a.String()
	}
	d.log.Info("simulated device up",
		zap.Uint64("uuid", cfg.UUID),
		zap.String("discovery", discovery),
		zap.String("command", d.CommandAddr()),
		zap.String("grpc", d.GRPCAddr()))
	return d, nil
}

func (d *Device) bind() error {
	var err error
	if d.cfg.DiscoveryAddr != "" {
		laddr, rerr := net.ResolveUDPAddr("udp4", d.cfg.DiscoveryAddr)
		if rerr != nil {
			return fmt.Errorf("resolve discovery addr: %w", rerr)
		}
		if d.udp, err = net.ListenUDP("udp4", laddr); err != nil {
			return fmt.Errorf("listen discovery: %w", err)
		}
	}
	if d.cfg.CommandAddr != "" {
		if d.tcp, err = net.Listen("tcp", d.cfg.CommandAddr); err != nil {
			return fmt.Errorf("listen command: %w", err)
		}
	}
	if d.cfg.GRPCAddr != "" {
		if d.rpc, err = net.Listen("tcp", d.cfg.GRPCAddr); err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		d.grpc = grpc.NewServer(
			grpc.ForceServerCodec(command.Codec{}),
			grpc.KeepaliveParams(keepalive.ServerParameters{
				MaxConnectionAge:      d.cfg.MaxConnectionAge,
				MaxConnectionAgeGrace: d.cfg.MaxConnectionAge,
			}),
		)
		command.RegisterCommandServer(d.grpc, d)
	}
	return nil
}

// Wait blocks until the device stops.
func (d *Device) Wait() error {
	err := d.group.Wait()
	d.conns.Wait()
	return err
}

// Close stops every endpoint and waits for in-flight sessions.
func (d *Device) Close() error {
	d.cancel()
	return d.Wait()
}

func (d *Device) DiscoveryAddr() *net.UDPAddr {
	if d.udp == nil {
		return nil
	}
	return d.udp.LocalAddr().(*net.UDPAddr)
}

func (d *Device) CommandAddr() string {
	if d.tcp == nil {
		return ""
	}
	return d.tcp.Addr().String()
}

func (d *Device) GRPCAddr() string {
	if d.rpc == nil {
		return ""
	}
	return d.rpc.Addr().String()
}

// SendCommand implements command.CommandServer.
func (d *Device) SendCommand(_ context.Context, req *domain.CommandRequest) (*domain.CommandResponse, error) {
	resp := d.handle(*req)
	return &resp, nil
}

func (d *Device) handle(req domain.CommandRequest) domain.CommandResponse {
	switch req.Kind() {
	case domain.KindGetVersion:
		return domain.CommandResponse{
			Status: domain.StatusOK,
			GetVersion: &domain.VersionInfo{
				FirmwareVersion: d.cfg.FirmwareVersion,
				HardwareVersion: d.cfg.HardwareVersion,
			},
		}
	default:
		d.log.Warn("unknown request mux value")
		return domain.CommandResponse{Status: domain.StatusGenErr}
	}
}

func (d *Device) serveDiscovery(ctx context.Context) error {
	answer := wire.AppendDiscoveryResponse(nil, domain.DiscoveryResponse{
		UUID:            d.cfg.UUID,
		HardwareVersion: d.cfg.HardwareVersion,
		FirmwareVersion: d.cfg.FirmwareVersion,
	})
	buf := make([]byte, wire.MaxMessageSize)
	for {
		n, from, err := d.udp.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("discovery read: %w", err)
		}
		if err := wire.DecodeDiscoveryRequest(buf[:n]); err != nil {
			d.log.Debug("ignoring datagram", zap.Stringer("from", from), zap.Error(err))
			continue
		}
		for i := 0; i < d.cfg.DiscoveryRepeat; i++ {
			if _, err := d.udp.WriteToUDP(answer, from); err != nil {
				d.log.Warn("discovery answer failed", zap.Stringer("to", from), zap.Error(err))
			}
		}
	}
}

func (d *Device) serveCommands(ctx context.Context) error {
	for {
		conn, err := d.tcp.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("command accept: %w", err)
		}
		d.conns.Add(1)
		go func() {
			defer d.conns.Done()
			defer conn.Close()
			d.session(ctx, conn)
		}()
	}
}

// session serves exactly one request per connection, as the firmware does.
func (d *Device) session(ctx context.Context, conn net.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	raw, err := wire.ReadMessage(conn, d.cfg.Framing, wire.MaxMessageSize)
	if err != nil {
		d.log.Debug("command read failed", zap.Error(err))
		return
	}
	if d.cfg.Mute {
		<-ctx.Done()
		return
	}

	resp := domain.CommandResponse{Status: domain.StatusGenErr}
	if req, err := wire.DecodeCommandRequest(raw); err == nil {
		resp = d.handle(req)
	}
	if err := wire.WriteMessage(conn, d.cfg.Framing, wire.AppendCommandResponse(nil, resp)); err != nil {
		d.log.Debug("command write failed", zap.Error(err))
	}
}

func (d *Device) closeListeners() {
	if d.udp != nil {
		_ = d.udp.Close()
	}
	if d.tcp != nil {
		_ = d.tcp.Close()
	}
	if d.grpc != nil {
		d.grpc.Stop()
	} else if d.rpc != nil {
		_ = d.rpc.Close()
	}
}
