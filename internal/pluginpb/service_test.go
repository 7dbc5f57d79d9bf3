package pluginpb

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type echoServer struct {
	UnimplementedPactPluginServer
	seen *InitPluginRequest
}

func (s *echoServer) InitPlugin(_ context.Context, req *InitPluginRequest) (*InitPluginResponse, error) {
	s.seen = req
	return &InitPluginResponse{Catalogue: []*CatalogueEntry{{
		Type:   EntryContentMatcher,
		Key:    "csv",
		Values: map[string]string{"content-types": "text/csv"},
	}}}, nil
}

func startServer(t *testing.T, srv PactPluginServer, opts ...grpc.ServerOption) PactPluginClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(append(ServerOptions(), opts...)...)
	RegisterPactPluginServer(server, srv)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewPactPluginClient(conn)
}

func TestServiceInitPluginRoundTrip(t *testing.T) {
	srv := &echoServer{}
	client := startServer(t, srv)

	resp, err := client.InitPlugin(context.Background(), &InitPluginRequest{Implementation: "driver", Version: "1.0"})
	require.NoError(t, err)
	require.Len(t, resp.Catalogue, 1)
	assert.Equal(t, EntryContentMatcher, resp.Catalogue[0].Type)
	assert.Equal(t, "text/csv", resp.Catalogue[0].Values["content-types"])
	require.NotNil(t, srv.seen)
	assert.Equal(t, "driver", srv.seen.Implementation)
}

func TestServiceUnimplementedMethods(t *testing.T) {
	client := startServer(t, &echoServer{})

	_, err := client.GenerateContent(context.Background(), &GenerateContentRequest{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestServiceRunsInterceptor(t *testing.T) {
	var methods []string
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		methods = append(methods, info.FullMethod)
		return handler(ctx, req)
	}
	client := startServer(t, &echoServer{}, grpc.UnaryInterceptor(interceptor))

	_, err := client.InitPlugin(context.Background(), &InitPluginRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{PactPlugin_InitPlugin_FullMethodName}, methods)
}
