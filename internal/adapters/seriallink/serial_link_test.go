package seriallink

import (
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/ghalamif/raptorlink/internal/domain"
)

type fakePort struct {
	serial.Port
	timeout time.Duration
	data    []byte
	closed  int
	resets  int
}

func (f *fakePort) SetReadTimeout(t time.Duration) error { f.timeout = t; return nil }
func (f *fakePort) ResetInputBuffer() error              { f.resets++; return nil }
func (f *fakePort) Close() error                         { f.closed++; return nil }
func (f *fakePort) Read(p []byte) (int, error) {
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestOpenAppliesModeAndTimeout(t *testing.T) {
	fp := &fakePort{data: []byte("1.0,2.0\n")}
	var gotName string
	var gotMode serial.Mode
	link, err := open(Config{Port: "/dev/ttyACM0", BaudRate: 9600}, nil, func(name string, mode *serial.Mode) (serial.Port, error) {
		gotName, gotMode = name, *mode
		return fp, nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if gotName != "/dev/ttyACM0" || gotMode.BaudRate != 9600 {
		t.Fatalf("unexpected open args %q %+v", gotName, gotMode)
	}
	if fp.timeout != DefaultReadTimeout {
		t.Fatalf("expected read timeout %v, got %v", DefaultReadTimeout, fp.timeout)
	}

	buf := make([]byte, 16)
	n, _ := link.Read(buf)
	if string(buf[:n]) != "1.0,2.0\n" {
		t.Fatalf("unexpected read %q", buf[:n])
	}
	n, err = link.Read(buf)
	if n != 0 || err != nil {
		t.Fatalf("expected empty read on timeout, got %d %v", n, err)
	}

	_ = link.Close()
	_ = link.Close()
	if fp.closed != 1 {
		t.Fatalf("expected a single close, got %d", fp.closed)
	}
}

func TestOpenRequiresPort(t *testing.T) {
	_, err := open(Config{}, nil, func(string, *serial.Mode) (serial.Port, error) {
		t.Fatal("must not open without a port name")
		return nil, nil
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenWrapsDriverError(t *testing.T) {
	driverErr := errors.New("no such device")
	_, err := open(Config{Port: "/dev/none"}, nil, func(string, *serial.Mode) (serial.Port, error) {
		return nil, driverErr
	})
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected driver error, got %v", err)
	}
}
