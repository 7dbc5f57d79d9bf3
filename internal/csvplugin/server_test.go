package csvplugin

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/config"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

func dialBufconn(t *testing.T, svc pluginpb.PactPluginServer) pluginpb.PactPluginClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(pluginpb.ServerOptions()...)
	pluginpb.RegisterPactPluginServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return pluginpb.NewPactPluginClient(conn)
}

func TestConfigureOverGRPC(t *testing.T) {
	client := dialBufconn(t, NewService())

	fields, err := structpb.NewStruct(map[string]any{"column:1": "matching(integer, 42)"})
	require.NoError(t, err)

	resp, err := client.ConfigureContents(context.Background(), &pluginpb.ConfigureContentsRequest{
		ContentType:    "text/csv",
		ContentsConfig: pluginpb.NewValues(fields),
	})
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(resp.Contents.Content))
	assert.Equal(t, "integer", resp.Rules["column:0"].Rule[0].Type)

	gen := resp.Generators["column:0"]
	require.NotNil(t, gen)
	assert.Equal(t, "RandomInt", gen.Type)
	assert.Equal(t, 99.0, gen.Values.Fields()["max"].GetNumberValue())

	generated, err := client.GenerateContent(context.Background(), &pluginpb.GenerateContentRequest{
		Contents:   resp.Contents,
		Generators: resp.Generators,
	})
	require.NoError(t, err)
	value, err := strconv.Atoi(strings.TrimSpace(string(generated.Contents.Content)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, value, 0)
	assert.LessOrEqual(t, value, 99)
}

func TestErrorsSurfaceAsAborted(t *testing.T) {
	client := dialBufconn(t, NewService())

	_, err := client.ConfigureContents(context.Background(), &pluginpb.ConfigureContentsRequest{ContentType: "text/csv"})
	require.Error(t, err)
	assert.Equal(t, codes.Aborted, status.Code(err))
	assert.Equal(t, "No config provided to match/generate CSV content", status.Convert(err).Message())

	_, err = client.CompareContents(context.Background(), &pluginpb.CompareContentsRequest{
		Expected: csvBody(""),
		Actual:   csvBody("a\n"),
	})
	assert.Equal(t, codes.Aborted, status.Code(err))

	_, err = client.GenerateContent(context.Background(), &pluginpb.GenerateContentRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCompareOverGRPCKeepsMismatchOrder(t *testing.T) {
	client := dialBufconn(t, NewService())

	resp, err := client.CompareContents(context.Background(), &pluginpb.CompareContentsRequest{
		Expected: csvBody("a,b\n"),
		Actual:   csvBody("x,b,c\na,y\n"),
	})
	require.NoError(t, err)

	var got []string
	for _, m := range resp.Results {
		got = append(got, m.Path+"|"+m.Mismatch)
	}
	assert.Equal(t, []string{
		"|Expected at least 2 columns, but got 3",
		"row:1, column:0|Expected column 0 value to equal 'a', but got 'x'",
		"row:1, column:2|Expected column 2 value to equal '', but got 'c'",
		"row:2, column:1|Expected column 1 value to equal 'b', but got 'y'",
	}, got)
}

func TestAnnounce(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Announce(&buf, pluginpb.RunningPluginInfo{Port: 4000, ServerKey: "abc"}))
	assert.Equal(t, "{\"port\":4000,\"serverKey\":\"abc\"}\n", buf.String())
}

func TestServerStartServesPluginHealthAndMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := NewMetrics()
	srv := NewServer(config.Plugin{Host: "127.0.0.1", MetricsAddr: "127.0.0.1:0"}, nil, metrics)
	info, err := srv.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	assert.NotZero(t, info.Port)
	assert.Len(t, info.ServerKey, 36)
	assert.Equal(t, info, srv.Info())

	_, err = srv.Start(ctx)
	assert.Error(t, err)

	conn, err := grpc.NewClient("passthrough:///"+net.JoinHostPort("127.0.0.1", strconv.Itoa(int(info.Port))),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := pluginpb.NewPactPluginClient(conn)
	resp, err := client.InitPlugin(ctx, &pluginpb.InitPluginRequest{Implementation: "test", Version: "1"})
	require.NoError(t, err)
	assert.Len(t, resp.Catalogue, 2)

	_, err = client.CompareContents(ctx, &pluginpb.CompareContentsRequest{Actual: csvBody("a\n")})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mismatches))

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: pluginpb.ServiceName},
		grpc.ForceCodec(pluginpb.Codec{}))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.Status)

	httpResp, err := http.Get("http://" + srv.MetricsAddress() + "/metrics")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "csv_plugin_requests_total")
	assert.Contains(t, string(body), "csv_plugin_mismatches_total 1")
}

func TestServerWithoutMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(config.Plugin{MetricsAddr: "127.0.0.1:0"}, nil, nil)
	_, err := srv.Start(ctx)
	require.NoError(t, err)
	assert.Empty(t, srv.MetricsAddress())

	cancel()
	for err := range srv.Errors() {
		t.Fatalf("unexpected serve error: %v", err)
	}
}

type panickingService struct {
	pluginpb.UnimplementedPactPluginServer
}

func (panickingService) GenerateContent(context.Context, *pluginpb.GenerateContentRequest) (*pluginpb.GenerateContentResponse, error) {
	panic("boom")
}

func TestRecoveryInterceptorKeepsServerAlive(t *testing.T) {
	s := NewServer(config.Plugin{}, nil, nil)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(append(pluginpb.ServerOptions(), grpc.UnaryInterceptor(s.recoveryInterceptor))...)
	pluginpb.RegisterPactPluginServer(srv, panickingService{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := pluginpb.NewPactPluginClient(conn)

	for i := 0; i < 2; i++ {
		_, err = client.GenerateContent(context.Background(), &pluginpb.GenerateContentRequest{})
		require.Error(t, err)
		assert.Equal(t, codes.Internal, status.Code(err))
		assert.Contains(t, status.Convert(err).Message(), "boom")
	}
}

func TestGenerateWithInvalidParametersIsAborted(t *testing.T) {
	client := dialBufconn(t, NewService())

	cases := []struct {
		kind   string
		values map[string]any
	}{
		{kind: "RandomString", values: map[string]any{"size": -1}},
		{kind: "RandomHexadecimal", values: map[string]any{"digits": -5}},
	}
	for _, tc := range cases {
		values, err := structpb.NewStruct(tc.values)
		require.NoError(t, err)
		_, err = client.GenerateContent(context.Background(), &pluginpb.GenerateContentRequest{
			Contents:   &pluginpb.Body{ContentType: "text/csv", Content: []byte("a,b\n")},
			Generators: map[string]*pluginpb.Generator{"column:0": {Type: tc.kind, Values: pluginpb.NewValues(values)}},
		})
		require.Error(t, err, tc.kind)
		assert.Equal(t, codes.Aborted, status.Code(err), tc.kind)
	}

	values, err := structpb.NewStruct(map[string]any{"min": -9e18, "max": 9e18})
	require.NoError(t, err)
	resp, err := client.GenerateContent(context.Background(), &pluginpb.GenerateContentRequest{
		Contents:   &pluginpb.Body{ContentType: "text/csv", Content: []byte("a,b\n")},
		Generators: map[string]*pluginpb.Generator{"column:1": {Type: "RandomInt", Values: pluginpb.NewValues(values)}},
	})
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(string(resp.Contents.Content)), ",")
	require.Len(t, fields, 2)
	_, err = strconv.ParseInt(fields[1], 10, 64)
	require.NoError(t, err)
}
