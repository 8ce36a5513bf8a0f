package ledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service exposed by ledger gateways. Messages are
// google.protobuf.Struct documents:
//
//	LogAuditHash      {hash, event_type}                -> {success, tx_hash, block_number, error}
//	LogCriticalEvent  {event_type, subject_id, details} -> {success, tx_hash, block_number, error}
//	VerifyHash        {hash}                            -> {exists, timestamp, error}
const ServiceName = "lgu.ledger.v1.AuditLedger"

const (
	methodLogAuditHash     = "LogAuditHash"
	methodLogCriticalEvent = "LogCriticalEvent"
	methodVerifyHash       = "VerifyHash"
)

// GatewayServer is implemented by ledger gateways.
type GatewayServer interface {
	LogAuditHash(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogCriticalEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyHash(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterGatewayServer registers srv on s under ServiceName.
func RegisterGatewayServer(s grpc.ServiceRegistrar, srv GatewayServer) {
	s.RegisterService(&serviceDesc, srv)
}

type gatewayCall func(GatewayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodLogAuditHash,
			Handler: unaryHandler(methodLogAuditHash, func(s GatewayServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.LogAuditHash(ctx, in)
			}),
		},
		{
			MethodName: methodLogCriticalEvent,
			Handler: unaryHandler(methodLogCriticalEvent, func(s GatewayServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.LogCriticalEvent(ctx, in)
			}),
		},
		{
			MethodName: methodVerifyHash,
			Handler: unaryHandler(methodVerifyHash, func(s GatewayServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.VerifyHash(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lgu/ledger/v1/ledger.proto",
}

func unaryHandler(method string, call gatewayCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GatewayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GatewayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
