// Package pb declares the roomcast.v1.ChatService gRPC service. Messages are
// protobuf well-known types: stream frames are google.protobuf.Struct values
// holding the same {event, ackId, payload} envelopes the websocket carries.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ChatService_ServiceName                 = "roomcast.v1.ChatService"
	ChatService_Connect_FullMethodName      = "/roomcast.v1.ChatService/Connect"
	ChatService_ListMessages_FullMethodName = "/roomcast.v1.ChatService/ListMessages"
	ChatService_ListSessions_FullMethodName = "/roomcast.v1.ChatService/ListSessions"
)

type ChatServiceClient interface {
	// Connect opens one chat connection. The client sends request envelopes
	// and receives event envelopes.
	Connect(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error)
	// ListMessages takes {room, limit, search, before} and returns messages oldest first.
	ListMessages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	ListSessions(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func (c *chatServiceClient) Connect(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[structpb.Struct, structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_Connect_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	return x, nil
}

func (c *chatServiceClient) ListMessages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ChatService_ListMessages_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatServiceClient) ListSessions(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ChatService_ListSessions_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatServiceServer must embed UnimplementedChatServiceServer.
type ChatServiceServer interface {
	Connect(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error
	ListMessages(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	ListSessions(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	mustEmbedUnimplementedChatServiceServer()
}

type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Connect(grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method Connect not implemented")
}

func (UnimplementedChatServiceServer) ListMessages(context.Context, *structpb.Struct) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListMessages not implemented")
}

func (UnimplementedChatServiceServer) ListSessions(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListSessions not implemented")
}

func (UnimplementedChatServiceServer) mustEmbedUnimplementedChatServiceServer() {}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

func _ChatService_Connect_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Connect(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func _ChatService_ListMessages_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ChatService_ListMessages_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListMessages(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _ChatService_ListSessions_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListSessions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ChatService_ListSessions_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListSessions(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatService_ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListMessages",
			Handler:    _ChatService_ListMessages_Handler,
		},
		{
			MethodName: "ListSessions",
			Handler:    _ChatService_ListSessions_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       _ChatService_Connect_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "roomcast/v1/chat.proto",
}
