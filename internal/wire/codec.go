package wire

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ghalamif/raptorlink/internal/domain"
)

// Kind identifies a top-level message shape.
type Kind int

const (
	KindCommandRequest Kind = iota + 1
	KindCommandResponse
	KindDiscoveryRequest
	KindDiscoveryResponse
)

func (k Kind) String() string {
	switch k {
	case KindCommandRequest:
		return "CommandRequest"
	case KindCommandResponse:
		return "CommandResponse"
	case KindDiscoveryRequest:
		return "DiscoveryRequest"
	case KindDiscoveryResponse:
		return "DiscoveryResponse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Field numbers of the raptor.v1 messages.
const (
	fieldRequestGetVersion protowire.Number = 1

	fieldResponseStatus     protowire.Number = 1
	fieldResponseGetVersion protowire.Number = 2

	fieldVersionFirmware protowire.Number = 1
	fieldVersionHardware protowire.Number = 2

	fieldDiscoveryUUID     protowire.Number = 1
	fieldDiscoveryHardware protowire.Number = 2
	fieldDiscoveryFirmware protowire.Number = 3
)

// Marshal encodes one of the domain message types.
func Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case domain.CommandRequest:
		return AppendCommandRequest(nil, m)
	case *domain.CommandRequest:
		return AppendCommandRequest(nil, *m)
	case domain.CommandResponse:
		return AppendCommandResponse(nil, m), nil
	case *domain.CommandResponse:
		return AppendCommandResponse(nil, *m), nil
	case domain.DiscoveryRequest, *domain.DiscoveryRequest:
		return AppendDiscoveryRequest(nil), nil
	case domain.DiscoveryResponse:
		return AppendDiscoveryResponse(nil, m), nil
	case *domain.DiscoveryResponse:
		return AppendDiscoveryResponse(nil, *m), nil
	default:
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
}

// Unmarshal decodes b into v, which must be a pointer to a domain message.
// The pointer's type is the expected kind.
func Unmarshal(b []byte, v any) error {
	switch m := v.(type) {
	case *domain.CommandRequest:
		out, err := DecodeCommandRequest(b)
		if err != nil {
			return err
		}
		*m = out
	case *domain.CommandResponse:
		out, err := DecodeCommandResponse(b)
		if err != nil {
			return err
		}
		*m = out
	case *domain.DiscoveryRequest:
		return DecodeDiscoveryRequest(b)
	case *domain.DiscoveryResponse:
		out, err := DecodeDiscoveryResponse(b)
		if err != nil {
			return err
		}
		*m = out
	default:
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return nil
}

// Decode parses b as the given kind and returns the domain value.
func Decode(b []byte, kind Kind) (any, error) {
	switch kind {
	case KindCommandRequest:
		return DecodeCommandRequest(b)
	case KindCommandResponse:
		return DecodeCommandResponse(b)
	case KindDiscoveryRequest:
		if err := DecodeDiscoveryRequest(b); err != nil {
			return nil, err
		}
		return domain.DiscoveryRequest{}, nil
	case KindDiscoveryResponse:
		return DecodeDiscoveryResponse(b)
	default:
		return nil, fmt.Errorf("wire: unknown kind %s", kind)
	}
}

// AppendCommandRequest appends the encoding of r to b.
// A request must carry exactly one sub-command.
func AppendCommandRequest(b []byte, r domain.CommandRequest) ([]byte, error) {
	switch r.Kind() {
	case domain.KindGetVersion:
		b = protowire.AppendTag(b, fieldRequestGetVersion, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
		return b, nil
	default:
		return nil, errors.New("wire: command request carries no sub-command")
	}
}

// AppendCommandResponse appends the encoding of r to b. Status is always written.
func AppendCommandResponse(b []byte, r domain.CommandResponse) []byte {
	b = protowire.AppendTag(b, fieldResponseStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(r.Status)))
	if r.GetVersion != nil {
		var inner []byte
		inner = appendString(inner, fieldVersionFirmware, r.GetVersion.FirmwareVersion)
		inner = appendString(inner, fieldVersionHardware, r.GetVersion.HardwareVersion)
		b = protowire.AppendTag(b, fieldResponseGetVersion, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

// AppendDiscoveryRequest appends the (empty) discovery probe.
func AppendDiscoveryRequest(b []byte) []byte {
	if b == nil {
		b = []byte{}
	}
	return b
}

// AppendDiscoveryResponse appends the encoding of r to b. UUID is always written.
func AppendDiscoveryResponse(b []byte, r domain.DiscoveryResponse) []byte {
	b = protowire.AppendTag(b, fieldDiscoveryUUID, protowire.VarintType)
	b = protowire.AppendVarint(b, r.UUID)
	b = appendString(b, fieldDiscoveryHardware, r.HardwareVersion)
	b = appendString(b, fieldDiscoveryFirmware, r.FirmwareVersion)
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// DecodeCommandRequest parses a CommandRequest.
func DecodeCommandRequest(b []byte) (domain.CommandRequest, error) {
	var out domain.CommandRequest
	err := walk(b, KindCommandRequest, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldRequestGetVersion:
			body, n, err := consumeBytes(typ, v, KindCommandRequest)
			if err != nil {
				return n, err
			}
			if len(body) != 0 {
				return n, kindMismatch(KindCommandRequest, "get_version carries fields")
			}
			out = domain.CommandRequest{GetVersion: &domain.GetVersionRequest{}}
			return n, nil
		default:
			return 0, unknownField(KindCommandRequest, num)
		}
	})
	if err != nil {
		return domain.CommandRequest{}, err
	}
	if out.Kind() == domain.KindNone {
		return domain.CommandRequest{}, truncated(KindCommandRequest, "no sub-command")
	}
	return out, nil
}

// DecodeCommandResponse parses a CommandResponse.
func DecodeCommandResponse(b []byte) (domain.CommandResponse, error) {
	var (
		out       domain.CommandResponse
		hasStatus bool
	)
	err := walk(b, KindCommandResponse, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldResponseStatus:
			x, n, err := consumeVarint(typ, v, KindCommandResponse)
			if err != nil {
				return n, err
			}
			out.Status = domain.CommandStatus(int32(x))
			hasStatus = true
			return n, nil
		case fieldResponseGetVersion:
			body, n, err := consumeBytes(typ, v, KindCommandResponse)
			if err != nil {
				return n, err
			}
			info, err := decodeVersionInfo(body)
			if err != nil {
				return n, err
			}
			out.GetVersion = &info
			return n, nil
		default:
			return 0, unknownField(KindCommandResponse, num)
		}
	})
	if err != nil {
		return domain.CommandResponse{}, err
	}
	if !hasStatus {
		return domain.CommandResponse{}, truncated(KindCommandResponse, "missing status")
	}
	return out, nil
}

func decodeVersionInfo(b []byte) (domain.VersionInfo, error) {
	var out domain.VersionInfo
	err := walk(b, KindCommandResponse, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldVersionFirmware:
			s, n, err := consumeString(typ, v, KindCommandResponse)
			out.FirmwareVersion = s
			return n, err
		case fieldVersionHardware:
			s, n, err := consumeString(typ, v, KindCommandResponse)
			out.HardwareVersion = s
			return n, err
		default:
			return 0, unknownField(KindCommandResponse, num)
		}
	})
	return out, err
}

// DecodeDiscoveryRequest validates a discovery probe. Any field is a mismatch.
func DecodeDiscoveryRequest(b []byte) error {
	return walk(b, KindDiscoveryRequest, func(num protowire.Number, _ protowire.Type, _ []byte) (int, error) {
		return 0, unknownField(KindDiscoveryRequest, num)
	})
}

// DecodeDiscoveryResponse parses a DiscoveryResponse.
func DecodeDiscoveryResponse(b []byte) (domain.DiscoveryResponse, error) {
	var (
		out     domain.DiscoveryResponse
		hasUUID bool
	)
	err := walk(b, KindDiscoveryResponse, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		switch num {
		case fieldDiscoveryUUID:
			x, n, err := consumeVarint(typ, v, KindDiscoveryResponse)
			out.UUID = x
			hasUUID = err == nil
			return n, err
		case fieldDiscoveryHardware:
			s, n, err := consumeString(typ, v, KindDiscoveryResponse)
			out.HardwareVersion = s
			return n, err
		case fieldDiscoveryFirmware:
			s, n, err := consumeString(typ, v, KindDiscoveryResponse)
			out.FirmwareVersion = s
			return n, err
		default:
			return 0, unknownField(KindDiscoveryResponse, num)
		}
	})
	if err != nil {
		return domain.DiscoveryResponse{}, err
	}
	if !hasUUID {
		return domain.DiscoveryResponse{}, truncated(KindDiscoveryResponse, "missing uuid")
	}
	return out, nil
}

// walk iterates the top-level fields of b, handing each field's value bytes to fn.
func walk(b []byte, kind Kind, fn func(num protowire.Number, typ protowire.Type, v []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseErr(kind, "tag", n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte, kind Kind) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, kindMismatch(kind, fmt.Sprintf("wire type %d where varint expected", typ))
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, parseErr(kind, "varint", n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte, kind Kind) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, kindMismatch(kind, fmt.Sprintf("wire type %d where bytes expected", typ))
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, parseErr(kind, "bytes", n)
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte, kind Kind) (string, int, error) {
	v, n, err := consumeBytes(typ, b, kind)
	return string(v), n, err
}

func parseErr(kind Kind, what string, n int) error {
	cause := protowire.ParseError(n)
	if errors.Is(cause, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w: %s %s", domain.ErrDecode, domain.ErrTruncated, kind, what)
	}
	return fmt.Errorf("%w: %s %s: %v", domain.ErrDecode, kind, what, cause)
}

func truncated(kind Kind, why string) error {
	return fmt.Errorf("%w: %w: %s %s", domain.ErrDecode, domain.ErrTruncated, kind, why)
}

func kindMismatch(kind Kind, why string) error {
	return fmt.Errorf("%w: %w: %s: %s", domain.ErrDecode, domain.ErrKindMismatch, kind, why)
}

func unknownField(kind Kind, num protowire.Number) error {
	return kindMismatch(kind, fmt.Sprintf("unknown field %d", num))
}
