package grpcservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Both services are assembled from protobuf well-known types, so there is no
// generated code: the descriptors below play the role of the _grpc.pb.go
// registration tables.
const (
	clipboardService = "clipd.v1.Clipboard"
	relayService     = "clipd.v1.Relay"
)

func fullMethod(service, name string) string { return "/" + service + "/" + name }

// unary builds a MethodDesc that decodes a Req and calls call on the
// registered server.
func unary[Srv any, Req proto.Message, Resp proto.Message](
	service, name string,
	newReq func() Req,
	call func(Srv, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Srv), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(service, name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(Srv), ctx, req.(Req))
			})
		},
	}
}

// serverStream builds a StreamDesc for a single request followed by a stream
// of responses.
func serverStream[Srv any, Req proto.Message](
	name string,
	newReq func() Req,
	call func(Srv, Req, grpc.ServerStream) error,
) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := newReq()
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return call(srv.(Srv), req, stream)
		},
	}
}

type clipboardServer interface {
	SetClip(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	GetClip(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	HasClip(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Clear(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Sync(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Dismiss(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Dump(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

func newEmpty() *emptypb.Empty         { return new(emptypb.Empty) }
func newBytes() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }
func newStruct() *structpb.Struct      { return new(structpb.Struct) }
func newInt32() *wrapperspb.Int32Value { return new(wrapperspb.Int32Value) }

var clipboardDesc = grpc.ServiceDesc{
	ServiceName: clipboardService,
	HandlerType: (*clipboardServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(clipboardService, "SetClip", newBytes, clipboardServer.SetClip),
		unary(clipboardService, "GetClip", newEmpty, clipboardServer.GetClip),
		unary(clipboardService, "HasClip", newEmpty, clipboardServer.HasClip),
		unary(clipboardService, "Clear", newEmpty, clipboardServer.Clear),
		unary(clipboardService, "Sync", newEmpty, clipboardServer.Sync),
		unary(clipboardService, "Dismiss", newEmpty, clipboardServer.Dismiss),
		unary(clipboardService, "Dump", newStruct, clipboardServer.Dump),
		unary(clipboardService, "Status", newEmpty, clipboardServer.Status),
	},
	Streams: []grpc.StreamDesc{
		serverStream("Watch", newEmpty, clipboardServer.Watch),
	},
	Metadata: "clipd/v1/clipboard.proto",
}

type relayServer interface {
	Publish(grpc.ServerStream) error
	TopEvents(*structpb.Struct, grpc.ServerStream) error
	Fetch(*wrapperspb.BytesValue, grpc.ServerStream) error
	Clear(context.Context, *wrapperspb.Int32Value) (*emptypb.Empty, error)
}

var relayDesc = grpc.ServiceDesc{
	ServiceName: relayService,
	HandlerType: (*relayServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(relayService, "Clear", newInt32, relayServer.Clear),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Publish",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(relayServer).Publish(stream)
			},
		},
		serverStream("TopEvents", newStruct, relayServer.TopEvents),
		serverStream("Fetch", newBytes, relayServer.Fetch),
	},
	Metadata: "clipd/v1/relay.proto",
}

// RegisterClipboard registers svc as the clipd.v1.Clipboard service on s.
func RegisterClipboard(s grpc.ServiceRegistrar, svc *Service) {
	s.RegisterService(&clipboardDesc, svc)
}

// RegisterRelay registers r as the clipd.v1.Relay service on s.
func RegisterRelay(s grpc.ServiceRegistrar, r *Relay) {
	s.RegisterService(&relayDesc, r)
}
