// Package plugindial provides the gRPC dialing helpers the driver uses to
// reach plugins it has started.
//
// Plugins listen on localhost without transport security, so connections use
// insecure credentials. Calls are encoded with the plugin JSON codec.
package plugindial

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

// QoSConfig holds quality-of-service parameters for gRPC connections.
type QoSConfig struct {
	KeepaliveTime    time.Duration // interval between keepalive pings (default 30s)
	KeepaliveTimeout time.Duration // timeout waiting for ping ack (default 10s)
}

// DefaultQoS returns sensible QoS defaults for plugin connections.
func DefaultQoS() *QoSConfig {
	return &QoSConfig{
		KeepaliveTime:    constants.PluginKeepaliveTime,
		KeepaliveTimeout: constants.PluginKeepaliveTimeout,
	}
}

type dialerContextKey struct{}

// ContextWithDialer attaches a custom dialer to the context.
// This is primarily for tests using bufconn without real network sockets.
func ContextWithDialer(ctx context.Context, dialer func(context.Context, string) (net.Conn, error)) context.Context {
	if ctx == nil || dialer == nil {
		return ctx
	}
	return context.WithValue(ctx, dialerContextKey{}, dialer)
}

// DialerFromContext extracts a custom dialer from the context, if present.
func DialerFromContext(ctx context.Context) func(context.Context, string) (net.Conn, error) {
	if ctx == nil {
		return nil
	}
	dialer, _ := ctx.Value(dialerContextKey{}).(func(context.Context, string) (net.Conn, error))
	return dialer
}

// PassthroughPrefix is the gRPC target scheme that bypasses DNS resolution.
const PassthroughPrefix = "passthrough:///"

// DialOptions returns gRPC dial options for connecting to a plugin.
//
// When qos is non-nil and KeepaliveTime > 0, keepalive parameters are added.
func DialOptions(ctx context.Context, qos *QoSConfig) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(pluginpb.Codec{})),
	}

	if qos != nil && qos.KeepaliveTime > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                qos.KeepaliveTime,
			Timeout:             qos.KeepaliveTimeout,
			PermitWithoutStream: true,
		}))
	}

	if dialer := DialerFromContext(ctx); dialer != nil {
		opts = append(opts, grpc.WithContextDialer(dialer))
	}

	return opts
}

// Address returns the loopback address of a plugin listening on port.
func Address(port uint16) string {
	return net.JoinHostPort(constants.DefaultListenHost, strconv.Itoa(int(port)))
}

// Dial opens a client connection to address. The connection is lazy: the
// first RPC establishes it.
func Dial(ctx context.Context, address string, extraOpts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if address == "" {
		return nil, fmt.Errorf("plugindial: empty plugin address")
	}
	opts := append(DialOptions(ctx, DefaultQoS()), extraOpts...)
	conn, err := grpc.NewClient(PassthroughPrefix+address, opts...)
	if err != nil {
		return nil, fmt.Errorf("plugindial: create client for %s: %w", address, err)
	}
	return conn, nil
}
