package pluginpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "io.pact.plugin.PactPlugin"

const (
	PactPlugin_InitPlugin_FullMethodName        = "/" + ServiceName + "/InitPlugin"
	PactPlugin_UpdateCatalogue_FullMethodName   = "/" + ServiceName + "/UpdateCatalogue"
	PactPlugin_CompareContents_FullMethodName   = "/" + ServiceName + "/CompareContents"
	PactPlugin_ConfigureContents_FullMethodName = "/" + ServiceName + "/ConfigureContents"
	PactPlugin_GenerateContent_FullMethodName   = "/" + ServiceName + "/GenerateContent"
)

// PactPluginServer is implemented by content plugins.
type PactPluginServer interface {
	InitPlugin(context.Context, *InitPluginRequest) (*InitPluginResponse, error)
	UpdateCatalogue(context.Context, *Catalogue) (*Void, error)
	CompareContents(context.Context, *CompareContentsRequest) (*CompareContentsResponse, error)
	ConfigureContents(context.Context, *ConfigureContentsRequest) (*ConfigureContentsResponse, error)
	GenerateContent(context.Context, *GenerateContentRequest) (*GenerateContentResponse, error)
}

// UnimplementedPactPluginServer can be embedded to stay forward compatible.
type UnimplementedPactPluginServer struct{}

func (UnimplementedPactPluginServer) InitPlugin(context.Context, *InitPluginRequest) (*InitPluginResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method InitPlugin not implemented")
}

func (UnimplementedPactPluginServer) UpdateCatalogue(context.Context, *Catalogue) (*Void, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpdateCatalogue not implemented")
}

func (UnimplementedPactPluginServer) CompareContents(context.Context, *CompareContentsRequest) (*CompareContentsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CompareContents not implemented")
}

func (UnimplementedPactPluginServer) ConfigureContents(context.Context, *ConfigureContentsRequest) (*ConfigureContentsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ConfigureContents not implemented")
}

func (UnimplementedPactPluginServer) GenerateContent(context.Context, *GenerateContentRequest) (*GenerateContentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GenerateContent not implemented")
}

// RegisterPactPluginServer registers srv on s. The server must be created
// with ServerOptions so requests are decoded with Codec.
func RegisterPactPluginServer(s grpc.ServiceRegistrar, srv PactPluginServer) {
	s.RegisterService(&PactPlugin_ServiceDesc, srv)
}

// ServerOptions returns the options a gRPC server needs to speak the protocol.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(Codec{})}
}

func unaryHandler[Req, Resp any](fullMethod string, call func(PactPluginServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PactPluginServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PactPluginServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PactPlugin_ServiceDesc is the grpc.ServiceDesc for the PactPlugin service.
var PactPlugin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PactPluginServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "InitPlugin",
			Handler:    unaryHandler(PactPlugin_InitPlugin_FullMethodName, PactPluginServer.InitPlugin),
		},
		{
			MethodName: "UpdateCatalogue",
			Handler:    unaryHandler(PactPlugin_UpdateCatalogue_FullMethodName, PactPluginServer.UpdateCatalogue),
		},
		{
			MethodName: "CompareContents",
			Handler:    unaryHandler(PactPlugin_CompareContents_FullMethodName, PactPluginServer.CompareContents),
		},
		{
			MethodName: "ConfigureContents",
			Handler:    unaryHandler(PactPlugin_ConfigureContents_FullMethodName, PactPluginServer.ConfigureContents),
		},
		{
			MethodName: "GenerateContent",
			Handler:    unaryHandler(PactPlugin_GenerateContent_FullMethodName, PactPluginServer.GenerateContent),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plugin.proto",
}

// PactPluginClient calls a content plugin.
type PactPluginClient interface {
	InitPlugin(ctx context.Context, in *InitPluginRequest, opts ...grpc.CallOption) (*InitPluginResponse, error)
	UpdateCatalogue(ctx context.Context, in *Catalogue, opts ...grpc.CallOption) (*Void, error)
	CompareContents(ctx context.Context, in *CompareContentsRequest, opts ...grpc.CallOption) (*CompareContentsResponse, error)
	ConfigureContents(ctx context.Context, in *ConfigureContentsRequest, opts ...grpc.CallOption) (*ConfigureContentsResponse, error)
	GenerateContent(ctx context.Context, in *GenerateContentRequest, opts ...grpc.CallOption) (*GenerateContentResponse, error)
}

type pactPluginClient struct {
	cc grpc.ClientConnInterface
}

// NewPactPluginClient returns a client that encodes calls with Codec.
func NewPactPluginClient(cc grpc.ClientConnInterface) PactPluginClient {
	return &pactPluginClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pactPluginClient) InitPlugin(ctx context.Context, in *InitPluginRequest, opts ...grpc.CallOption) (*InitPluginResponse, error) {
	return invoke[InitPluginResponse](ctx, c.cc, PactPlugin_InitPlugin_FullMethodName, in, opts)
}

func (c *pactPluginClient) UpdateCatalogue(ctx context.Context, in *Catalogue, opts ...grpc.CallOption) (*Void, error) {
	return invoke[Void](ctx, c.cc, PactPlugin_UpdateCatalogue_FullMethodName, in, opts)
}

func (c *pactPluginClient) CompareContents(ctx context.Context, in *CompareContentsRequest, opts ...grpc.CallOption) (*CompareContentsResponse, error) {
	return invoke[CompareContentsResponse](ctx, c.cc, PactPlugin_CompareContents_FullMethodName, in, opts)
}

func (c *pactPluginClient) ConfigureContents(ctx context.Context, in *ConfigureContentsRequest, opts ...grpc.CallOption) (*ConfigureContentsResponse, error) {
	return invoke[ConfigureContentsResponse](ctx, c.cc, PactPlugin_ConfigureContents_FullMethodName, in, opts)
}

func (c *pactPluginClient) GenerateContent(ctx context.Context, in *GenerateContentRequest, opts ...grpc.CallOption) (*GenerateContentResponse, error) {
	return invoke[GenerateContentResponse](ctx, c.cc, PactPlugin_GenerateContent_FullMethodName, in, opts)
}
