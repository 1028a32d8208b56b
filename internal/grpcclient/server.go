package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ForwarderServer is the receiving side of SendData.
type ForwarderServer interface {
	SendData(ctx context.Context, deviceID, payload string) (bool, error)
}

// ForwarderServiceDesc registers a ForwarderServer on a grpc.Server.
var ForwarderServiceDesc = grpc.ServiceDesc{
	ServiceName: "forwarder.Forwarder",
	HandlerType: (*ForwarderServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "SendData",
		Handler:    sendDataHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func sendDataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		f := req.(*structpb.Struct).GetFields()
		ok, err := srv.(ForwarderServer).SendData(ctx, f["device_id"].GetStringValue(), f["payload"].GetStringValue())
		if err != nil {
			return nil, err
		}
		return wrapperspb.Bool(ok), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendDataMethod}
	return interceptor(ctx, in, info, call)
}
