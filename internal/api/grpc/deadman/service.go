package deadman

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "deadman.v1.SwitchService"

	// CheckInMethod is the full method name of CheckIn.
	CheckInMethod = "/" + ServiceName + "/CheckIn"
	// GetStatusMethod is the full method name of GetStatus.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
)

// SwitchServiceServer is the server API of the switch service.
type SwitchServiceServer interface {
	CheckIn(ctx context.Context, source *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error)
}

// SwitchServiceClient is the client API of the switch service.
type SwitchServiceClient interface {
	CheckIn(ctx context.Context, source *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ServiceDesc describes the switch service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SwitchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckIn",
			Handler:    checkInHandler,
		},
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "deadman/v1/switch.proto",
}

// RegisterSwitchServiceServer registers srv on registrar.
func RegisterSwitchServiceServer(registrar grpc.ServiceRegistrar, srv SwitchServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func checkInHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(SwitchServiceServer).CheckIn(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CheckInMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SwitchServiceServer).CheckIn(ctx, req.(*wrapperspb.StringValue)) //nolint:forcetypeassert // Same as above.
	}

	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(SwitchServiceServer).GetStatus(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SwitchServiceServer).GetStatus(ctx, req.(*emptypb.Empty)) //nolint:forcetypeassert // Same as above.
	}

	return interceptor(ctx, in, info, handler)
}

// switchServiceClient invokes the service over a client connection.
type switchServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSwitchServiceClient creates a client bound to cc.
func NewSwitchServiceClient(cc grpc.ClientConnInterface) SwitchServiceClient {
	return &switchServiceClient{cc: cc}
}

func (c *switchServiceClient) CheckIn(
	ctx context.Context,
	source *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CheckInMethod, source, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *switchServiceClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
