package adminrpc

import (
	"context"

	"google.golang.org/grpc"
)

// AdminServiceServer is the interface a concrete admin server must
// implement; it plays the role a protoc-gen-go-grpc "XxxServer"
// interface would, but is hand-written since no .proto is compiled
// here (see jsonCodec).
type AdminServiceServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	StreamLobbyEvents(*StreamRequest, AdminService_StreamLobbyEventsServer) error
}

// AdminService_StreamLobbyEventsServer is the server-side stream
// handle for StreamLobbyEvents, mirroring the generated
// "Xxx_StreamServer" interfaces grpc codegen normally produces.
type AdminService_StreamLobbyEventsServer interface {
	Send(*LobbyEvent) error
	grpc.ServerStream
}

type adminServiceStreamLobbyEventsServer struct {
	grpc.ServerStream
}

func (x *adminServiceStreamLobbyEventsServer) Send(m *LobbyEvent) error {
	return x.ServerStream.SendMsg(m)
}

func adminServiceGetStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/stklobby.admin.AdminService/GetStatus",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdminServiceServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func adminServiceStreamLobbyEventsHandler(srv any, stream grpc.ServerStream) error {
	m := new(StreamRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AdminServiceServer).StreamLobbyEvents(m, &adminServiceStreamLobbyEventsServer{stream})
}

// serviceDesc is the hand-authored equivalent of the ServiceDesc a
// protoc-gen-go-grpc plugin would emit from an adminrpc.proto file.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "stklobby.admin.AdminService",
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    adminServiceGetStatusHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamLobbyEvents",
			Handler:       adminServiceStreamLobbyEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "adminrpc",
}

// RegisterAdminServiceServer wires srv into s, mirroring the
// generated pb.RegisterXxxServer helpers.
func RegisterAdminServiceServer(s *grpc.Server, srv AdminServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
