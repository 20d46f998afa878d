package wire

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ghalamif/raptorlink/internal/domain"
)

// MaxMessageSize bounds any single command message on the stream transport.
const MaxMessageSize = 1024

// Framing selects how command messages are delimited on a stream connection.
type Framing string

const (
	// FramingDelimited prefixes each message with its varint length.
	FramingDelimited Framing = "delimited"
	// FramingRaw writes bare messages and reads the reply with one bounded read.
	// This is what the legacy firmware speaks.
	FramingRaw Framing = "raw"
)

// ParseFraming validates a framing name. Empty selects FramingDelimited.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "", FramingDelimited:
		return FramingDelimited, nil
	case FramingRaw:
		return FramingRaw, nil
	default:
		return "", fmt.Errorf("%w: unknown framing %q", domain.ErrInvalidConfig, s)
	}
}

// AppendFrame appends msg to b behind a varint length prefix.
func AppendFrame(b, msg []byte) []byte {
	b = protowire.AppendVarint(b, uint64(len(msg)))
	return append(b, msg...)
}

// WriteMessage writes msg to w using the given framing, in a single Write.
func WriteMessage(w io.Writer, f Framing, msg []byte) error {
	if len(msg) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", domain.ErrMessageTooLarge, len(msg))
	}
	out := msg
	if f != FramingRaw {
		out = AppendFrame(make([]byte, 0, len(msg)+protowire.SizeVarint(uint64(len(msg)))), msg)
	}
	_, err := w.Write(out)
	return err
}

// ReadMessage reads one message from r using the given framing.
// Raw framing performs exactly one read of at most max bytes.
func ReadMessage(r io.Reader, f Framing, max int) ([]byte, error) {
	if max <= 0 {
		max = MaxMessageSize
	}
	if f == FramingRaw {
		buf := make([]byte, max)
		n, err := r.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w: empty read", domain.ErrDecode, domain.ErrTruncated)
		}
		return nil, err
	}
	return ReadFrame(r, max)
}

// ReadFrame reads one varint-length-prefixed message, looping until it is complete.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	size, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > uint64(max) {
		return nil, fmt.Errorf("%w: %w: frame of %d bytes exceeds %d", domain.ErrDecode, domain.ErrMessageTooLarge, size, max)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w: frame body", domain.ErrDecode, domain.ErrTruncated)
		}
		return nil, err
	}
	return buf, nil
}

func readUvarint(r io.Reader) (uint64, error) {
	var (
		x     uint64
		shift uint
		one   [1]byte
	)
	for i := 0; i < protowire.SizeVarint(^uint64(0)); i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("%w: %w: frame length", domain.ErrDecode, domain.ErrTruncated)
			}
			return 0, err
		}
		b := one[0]
		x |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return x, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("%w: frame length overflows", domain.ErrDecode)
}
