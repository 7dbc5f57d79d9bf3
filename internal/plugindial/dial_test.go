package plugindial

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

func TestDialOptionsDefaults(t *testing.T) {
	opts := DialOptions(context.Background(), nil)
	if len(opts) != 2 {
		t.Fatalf("expected 2 options (insecure creds, codec), got %d", len(opts))
	}
}

func TestDialOptionsWithQoSAndDialer(t *testing.T) {
	dialer := func(context.Context, string) (net.Conn, error) { return nil, nil }
	ctx := ContextWithDialer(context.Background(), dialer)

	opts := DialOptions(ctx, DefaultQoS())
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}
}

func TestDialerFromContext(t *testing.T) {
	if DialerFromContext(context.Background()) != nil {
		t.Fatal("expected no dialer on a bare context")
	}
	if ContextWithDialer(context.Background(), nil) != context.Background() {
		t.Fatal("nil dialer should leave the context untouched")
	}
}

func TestAddress(t *testing.T) {
	if got := Address(4000); got != "127.0.0.1:4000" {
		t.Fatalf("Address(4000) = %q", got)
	}
}

func TestDialRejectsEmptyAddress(t *testing.T) {
	if _, err := Dial(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

type catalogueServer struct {
	pluginpb.UnimplementedPactPluginServer
}

func (catalogueServer) InitPlugin(context.Context, *pluginpb.InitPluginRequest) (*pluginpb.InitPluginResponse, error) {
	return &pluginpb.InitPluginResponse{Catalogue: []*pluginpb.CatalogueEntry{{Type: pluginpb.EntryContentMatcher, Key: "csv"}}}, nil
}

func TestDialOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(pluginpb.ServerOptions()...)
	pluginpb.RegisterPactPluginServer(srv, catalogueServer{})
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx := ContextWithDialer(context.Background(), func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	conn, err := Dial(ctx, "bufnet")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp, err := pluginpb.NewPactPluginClient(conn).InitPlugin(ctx, &pluginpb.InitPluginRequest{})
	if err != nil {
		t.Fatalf("init plugin: %v", err)
	}
	if len(resp.Catalogue) != 1 || resp.Catalogue[0].Key != "csv" {
		t.Fatalf("unexpected catalogue %+v", resp.Catalogue)
	}
}
