// Package seriallink opens the telemetry UART.
package seriallink

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/ghalamif/raptorlink/internal/domain"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

type Config struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baudrate"`
	// ReadTimeout is how long one read waits for bytes before returning
	// empty-handed.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: serial port is required", domain.ErrInvalidConfig)
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("%w: baudrate %d", domain.ErrInvalidConfig, c.BaudRate)
	}
	return nil
}

type openFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Link is an open serial port. A read that times out returns 0, nil.
type Link struct {
	port serial.Port
	name string
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func Open(cfg Config, logger *zap.Logger) (*Link, error) {
	return open(cfg, logger, serial.Open)
}

func open(cfg Config, logger *zap.Logger, openPort openFunc) (*Link, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	port, err := openPort(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial %s read timeout: %w", cfg.Port, err)
	}
	_ = port.ResetInputBuffer()

	logger.Info("serial link open",
		zap.String("port", cfg.Port),
		zap.Int("baudrate", cfg.BaudRate),
		zap.Duration("read_timeout", cfg.ReadTimeout))
	return &Link{port: port, name: cfg.Port, log: logger}, nil
}

func (l *Link) Read(p []byte) (int, error) { return l.port.Read(p) }

func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.port.Close()
		l.log.Info("serial link closed", zap.String("port", l.name))
	})
	return l.closeErr
}

// Ports lists the serial devices present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
