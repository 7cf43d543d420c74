// Package rpc defines the flowreprog.v1.Reprogrammer gRPC service.
//
// The service has no .proto of its own. Its messages are the protobuf
// well-known types: requests and responses are google.protobuf.Struct
// or ListValue documents carrying the JSON form of the types in
// wire.go, and StringValue or Empty where that is all a call needs.
// Any gRPC client can therefore call it without generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "flowreprog.v1.Reprogrammer"

// Full method names.
const (
	MethodUpdateFlow  = "/" + ServiceName + "/UpdateFlow"
	MethodGetFlow     = "/" + ServiceName + "/GetFlow"
	MethodListFlows   = "/" + ServiceName + "/ListFlows"
	MethodListPending = "/" + ServiceName + "/ListPending"
	MethodClassify    = "/" + ServiceName + "/Classify"
)

// ReprogrammerServer is the server API for the Reprogrammer service.
type ReprogrammerServer interface {
	// UpdateFlow takes an UpdateRequest and returns an UpdateResult.
	UpdateFlow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetFlow takes a flow name and returns a FlowInfo.
	GetFlow(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// ListFlows returns a list of FlowInfo.
	ListFlows(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// ListPending returns a list of compute.Request.
	ListPending(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// Classify takes a ClassifyRequest and returns a ClassifyResult.
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Reprogrammer service to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReprogrammerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpdateFlow",
			Handler: unary(MethodUpdateFlow, func(s ReprogrammerServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.UpdateFlow(ctx, in)
			}),
		},
		{
			MethodName: "GetFlow",
			Handler: unary(MethodGetFlow, func(s ReprogrammerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.GetFlow(ctx, in)
			}),
		},
		{
			MethodName: "ListFlows",
			Handler: unary(MethodListFlows, func(s ReprogrammerServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ListFlows(ctx, in)
			}),
		},
		{
			MethodName: "ListPending",
			Handler: unary(MethodListPending, func(s ReprogrammerServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ListPending(ctx, in)
			}),
		},
		{
			MethodName: "Classify",
			Handler: unary(MethodClassify, func(s ReprogrammerServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Classify(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterReprogrammerServer registers srv with s.
func RegisterReprogrammerServer(s grpc.ServiceRegistrar, srv ReprogrammerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds a grpc.MethodHandler that decodes a *Req and hands it
// to call, through the server's interceptor if one is installed.
func unary[Req any](method string, call func(ReprogrammerServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(ReprogrammerServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

// ReprogrammerClient is the client API for the Reprogrammer service.
type ReprogrammerClient interface {
	UpdateFlow(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetFlow(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListFlows(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	ListPending(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type reprogrammerClient struct {
	cc grpc.ClientConnInterface
}

// NewReprogrammerClient returns a client that invokes methods on cc.
func NewReprogrammerClient(cc grpc.ClientConnInterface) ReprogrammerClient {
	return &reprogrammerClient{cc: cc}
}

func (c *reprogrammerClient) UpdateFlow(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodUpdateFlow, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reprogrammerClient) GetFlow(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetFlow, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reprogrammerClient) ListFlows(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListFlows, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reprogrammerClient) ListPending(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, MethodListPending, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reprogrammerClient) Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodClassify, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
