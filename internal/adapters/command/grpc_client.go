package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
)

// GRPCConfig configures the gRPC command transport.
type GRPCConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	// IdleTimeout closes a device connection after it has been unused this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

func (c *GRPCConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 3 * time.Second
	}
}

// GRPCClient sends commands through raptor.v1.CommandService. One client
// connection is kept per device address.
type GRPCClient struct {
	cfg GRPCConfig
	log *zap.Logger

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewGRPCClient(cfg GRPCConfig, logger *zap.Logger) *GRPCClient {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCClient{
		cfg:   cfg,
		log:   logger.Named("grpc"),
		conns: make(map[string]*grpc.ClientConn),
	}
}

func (c *GRPCClient) SendCommand(ctx context.Context, addr string, req domain.CommandRequest) (domain.CommandResponse, error) {
	if req.Kind() == domain.KindNone {
		return domain.CommandResponse{}, errors.New("command request carries no sub-command")
	}
	target := withDefaultPort(addr, c.cfg.Port)
	conn, err := c.conn(target)
	if err != nil {
		return domain.CommandResponse{}, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var resp domain.CommandResponse
	if err := conn.Invoke(ctx, FullMethodSendCommand, &req, &resp); err != nil {
		return domain.CommandResponse{}, classifyStatus(target, err)
	}
	c.log.Debug("command answered", zap.String("device", target), zap.Stringer("status", resp.Status))
	return resp, nil
}

// Close tears down every cached device connection.
func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
		delete(c.conns, addr)
	}
	return errors.Join(errs...)
}

func (c *GRPCClient) conn(target string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[target]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithIdleTimeout(c.cfg.IdleTimeout),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	c.conns[target] = conn
	return conn, nil
}

func classifyStatus(target string, err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, target, err)
	case codes.Unavailable, codes.Canceled:
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, target, err)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrProtocol, target, err)
	}
}

var _ ports.Commander = (*GRPCClient)(nil)
