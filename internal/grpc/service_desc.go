package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified name of the transfer engine service.
const ServiceName = "dinarflow.transfer.v1.TransferEngine"

const (
	transferMethod = "/" + ServiceName + "/Transfer"
	getUsageMethod = "/" + ServiceName + "/GetUsage"
)

// TransferEngineServer is the server API of the transfer engine service.
type TransferEngineServer interface {
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	GetUsage(context.Context, *GetUsageRequest) (*GetUsageResponse, error)
}

// TransferEngineServiceDesc describes the service for grpc.Server.RegisterService.
var TransferEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransferEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transfer", Handler: transferHandler},
		{MethodName: "GetUsage", Handler: getUsageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dinarflow/transfer/v1/engine",
}

// RegisterTransferEngineServer registers srv with s.
func RegisterTransferEngineServer(s grpc.ServiceRegistrar, srv TransferEngineServer) {
	s.RegisterService(&TransferEngineServiceDesc, srv)
}

func transferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TransferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransferEngineServer).Transfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: transferMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferEngineServer).Transfer(ctx, req.(*TransferRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getUsageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUsageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransferEngineServer).GetUsage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUsageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferEngineServer).GetUsage(ctx, req.(*GetUsageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the transfer engine service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	out := new(TransferResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, transferMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUsage(ctx context.Context, in *GetUsageRequest, opts ...grpc.CallOption) (*GetUsageResponse, error) {
	out := new(GetUsageResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, getUsageMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
