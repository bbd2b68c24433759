// Package grpcproto the quadstash.Index gRPC service.
//
// Every message is a wrapperspb.BytesValue holding one of the binary layouts:
//
//	Insert(bbox 16 bytes)   -> db key 10 bytes
//	Encode(bbox 16 bytes)   -> quadkey 8 bytes BigEndian
//	Decode(quadkey 8 bytes) -> cell bbox 16 bytes
//	Get(db key 10 bytes)    -> db value 17 bytes
package grpcproto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "quadstash.Index"

const (
	InsertMethod = "/" + ServiceName + "/Insert"
	EncodeMethod = "/" + ServiceName + "/Encode"
	DecodeMethod = "/" + ServiceName + "/Decode"
	GetMethod    = "/" + ServiceName + "/Get"
)

// IndexServer is the server API for the quadstash.Index service.
type IndexServer interface {
	Insert(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Encode(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Decode(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Get(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

type unaryCall func(IndexServer, context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(IndexServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(IndexServer), ctx, req.(*wrapperspb.BytesValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Index_ServiceDesc is the grpc.ServiceDesc for the quadstash.Index service.
var Index_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IndexServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Insert",
			Handler:    unaryHandler(InsertMethod, IndexServer.Insert),
		},
		{
			MethodName: "Encode",
			Handler:    unaryHandler(EncodeMethod, IndexServer.Encode),
		},
		{
			MethodName: "Decode",
			Handler:    unaryHandler(DecodeMethod, IndexServer.Decode),
		},
		{
			MethodName: "Get",
			Handler:    unaryHandler(GetMethod, IndexServer.Get),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "quadstash/index.proto",
}

func RegisterIndexServer(s grpc.ServiceRegistrar, srv IndexServer) {
	s.RegisterService(&Index_ServiceDesc, srv)
}

// IndexClient is the client API for the quadstash.Index service.
type IndexClient interface {
	Insert(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Encode(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Decode(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Get(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type indexClient struct {
	cc grpc.ClientConnInterface
}

func NewIndexClient(cc grpc.ClientConnInterface) IndexClient {
	return &indexClient{cc}
}

func (c *indexClient) invoke(ctx context.Context, method string, in *wrapperspb.BytesValue, opts []grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *indexClient) Insert(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, InsertMethod, in, opts)
}

func (c *indexClient) Encode(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, EncodeMethod, in, opts)
}

func (c *indexClient) Decode(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, DecodeMethod, in, opts)
}

func (c *indexClient) Get(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return c.invoke(ctx, GetMethod, in, opts)
}
