package command

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ghalamif/raptorlink/internal/domain"
	"github.com/ghalamif/raptorlink/internal/wire"
)

const (
	ServiceName           = "raptor.v1.CommandService"
	FullMethodSendCommand = "/" + ServiceName + "/SendCommand"
)

// Codec lets gRPC carry the raptor.v1 messages using the wire package
// instead of generated protobuf types. It registers as "proto" on the
// connections that force it, matching what the device expects.
type Codec struct{}

func (Codec) Name() string { return "proto" }

func (Codec) Marshal(v any) ([]byte, error) { return wire.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return wire.Unmarshal(data, v) }

// CommandServer is implemented by anything answering CommandService calls.
type CommandServer interface {
	SendCommand(ctx context.Context, req *domain.CommandRequest) (*domain.CommandResponse, error)
}

// RegisterCommandServer exposes srv on s. The server must be built with
// grpc.ForceServerCodec(Codec{}).
func RegisterCommandServer(s *grpc.Server, srv CommandServer) {
	s.RegisterService(&commandServiceDesc, srv)
}

var commandServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommandServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendCommand", Handler: sendCommandHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raptor/v1/commands.proto",
}

func sendCommandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(domain.CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CommandServer).SendCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodSendCommand}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CommandServer).SendCommand(ctx, req.(*domain.CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}
