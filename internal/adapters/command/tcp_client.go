// Package command sends command requests to a single Raptor device.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/ports"
	"github.com/ghalamif/raptorlink/internal/wire"
)

const (
	DefaultPort        = 50051
	DefaultDialTimeout = 3 * time.Second
	DefaultTimeout     = 5 * time.Second
)

// Config configures the stream command transport.
type Config struct {
	Port        int           `yaml:"port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// Timeout bounds the whole exchange after the connection is up.
	// Zero keeps the default; a negative value disables it.
	Timeout        time.Duration `yaml:"timeout"`
	Framing        wire.Framing  `yaml:"framing"`
	MaxMessageSize int           `yaml:"max_message_size"`
}

func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Framing == "" {
		c.Framing = wire.FramingDelimited
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = wire.MaxMessageSize
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: command port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if _, err := wire.ParseFraming(string(c.Framing)); err != nil {
		return err
	}
	return nil
}

// Client performs one request/response exchange per call over a fresh TCP
// connection. It keeps no state between calls and never retries.
type Client struct {
	cfg Config
	log *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, log: logger.Named("command")}, nil
}

// SendCommand sends req to the device at addr (host or host:port) and returns
// its response. A non-OK status is returned as a normal response.
//
// Failures wrap domain.ErrConnection, domain.ErrTimeout or domain.ErrProtocol.
func (c *Client) SendCommand(ctx context.Context, addr string, req domain.CommandRequest) (domain.CommandResponse, error) {
	payload, err := wire.AppendCommandRequest(nil, req)
	if err != nil {
		return domain.CommandResponse{}, err
	}
	target := withDefaultPort(addr, c.cfg.Port)

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return domain.CommandResponse{}, classify(ctx, fmt.Sprintf("dial %s", target), err)
	}
	defer conn.Close()

	if c.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	}
	if dl, ok := ctx.Deadline(); ok && (c.cfg.Timeout <= 0 || dl.Before(time.Now().Add(c.cfg.Timeout))) {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c.log.Info("sending command", zap.String("device", target), zap.Stringer("kind", req.Kind()))

	if err := wire.WriteMessage(conn, c.cfg.Framing, payload); err != nil {
		return domain.CommandResponse{}, classify(ctx, "write request", err)
	}

	raw, err := wire.ReadMessage(conn, c.cfg.Framing, c.cfg.MaxMessageSize)
	if err != nil {
		return domain.CommandResponse{}, classify(ctx, "read response", err)
	}
	resp, err := wire.DecodeCommandResponse(raw)
	if err != nil {
		return domain.CommandResponse{}, fmt.Errorf("%w: %w", domain.ErrProtocol, err)
	}

	c.log.Info("command answered", zap.String("device", target), zap.Stringer("status", resp.Status))
	return resp, nil
}

func withDefaultPort(addr string, port int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// classify maps transport failures onto the error taxonomy.
func classify(ctx context.Context, op string, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, domain.ErrDecode):
		return fmt.Errorf("%w: %s: %w", domain.ErrProtocol, op, err)
	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, op, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, op, ctx.Err())
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, op, err)
	case errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("%w: %s: peer closed connection: %w", domain.ErrConnection, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, op, err)
	}
}

var _ ports.Commander = (*Client)(nil)
