package csvplugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nupi-ai/contentplugins/internal/config"
	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

// Server hosts a Service over gRPC on an ephemeral port and, optionally,
// a Prometheus endpoint.
type Server struct {
	cfg     config.Plugin
	logger  *zap.Logger
	service *Service
	metrics *Metrics

	mu             sync.Mutex
	grpcServer     *grpc.Server
	grpcListener   net.Listener
	health         *health.Server
	metricsServer  *http.Server
	metricsAddress string
	info           pluginpb.RunningPluginInfo
	errCh          chan error
	wg             sync.WaitGroup
}

// NewServer builds a server for cfg. A nil metrics disables the endpoint
// even when cfg.MetricsAddr is set.
func NewServer(cfg config.Plugin, logger *zap.Logger, metrics *Metrics) *Server {
	logger = logging.OrNop(logger)
	return &Server{
		cfg:     cfg,
		logger:  logger.Named("server"),
		metrics: metrics,
		service: NewService(WithLogger(logger), WithMetrics(metrics)),
	}
}

// Start binds the listeners and starts serving. It returns the handshake
// info to announce. It must not be called concurrently with Shutdown.
func (s *Server) Start(ctx context.Context) (pluginpb.RunningPluginInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grpcListener != nil {
		return pluginpb.RunningPluginInfo{}, fmt.Errorf("csvplugin: server already started")
	}

	host := s.cfg.Host
	if host == "" {
		host = constants.DefaultListenHost
	}
	grpcListener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return pluginpb.RunningPluginInfo{}, fmt.Errorf("csvplugin: listen grpc: %w", err)
	}

	var metricsListener net.Listener
	if s.metrics != nil && s.cfg.MetricsAddr != "" {
		metricsListener, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = grpcListener.Close()
			return pluginpb.RunningPluginInfo{}, fmt.Errorf("csvplugin: listen metrics: %w", err)
		}
	}

	grpcServer := grpc.NewServer(append(pluginpb.ServerOptions(),
		grpc.ChainUnaryInterceptor(s.metrics.UnaryInterceptor(), s.loggingInterceptor, s.recoveryInterceptor),
	)...)
	pluginpb.RegisterPactPluginServer(grpcServer, s.service)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(pluginpb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	s.grpcServer = grpcServer
	s.grpcListener = grpcListener
	s.health = healthServer
	s.errCh = make(chan error, 2)
	s.info = pluginpb.RunningPluginInfo{
		Port:      uint16(listenerPort(grpcListener)),
		ServerKey: uuid.NewString(),
	}

	s.wg.Add(1)
	go s.serveGRPC(ctx, grpcServer, grpcListener)

	if metricsListener != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: constants.Duration5Seconds}
		s.metricsAddress = metricsListener.Addr().String()
		s.wg.Add(1)
		go s.serveMetrics(ctx, s.metricsServer, metricsListener)
	}

	errCh := s.errCh
	go func() {
		s.wg.Wait()
		close(errCh)
	}()

	s.logger.Info("plugin server started",
		zap.String("address", grpcListener.Addr().String()),
		zap.String("metrics", s.metricsAddress))
	return s.info, nil
}

// Announce writes the handshake line for info to w.
func Announce(w io.Writer, info pluginpb.RunningPluginInfo) error {
	line, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(info)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", line)
	return err
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("request failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("request served", fields...)
	}
	return resp, err
}

// recoveryInterceptor turns a panicking handler into an Internal status so
// that one bad request does not take the plugin process down.
func (s *Server) recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request panicked",
				zap.String("method", info.FullMethod),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp, err = nil, status.Errorf(codes.Internal, "%s failed: %v", info.FullMethod, r)
		}
	}()
	return handler(ctx, req)
}

func (s *Server) serveGRPC(ctx context.Context, grpcServer *grpc.Server, listener net.Listener) {
	defer s.wg.Done()

	go func() {
		<-ctx.Done()
		stopGRPC(grpcServer)
	}()

	if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, grpc.ErrServerStopped) && status.Code(err) != codes.Canceled {
		s.pushError(err)
	}
}

func (s *Server) serveMetrics(ctx context.Context, srv *http.Server, listener net.Listener) {
	defer s.wg.Done()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.MetricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.pushError(err)
	}
}

func stopGRPC(grpcServer *grpc.Server) {
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(constants.Duration5Seconds):
		grpcServer.Stop()
	}
}

func (s *Server) pushError(err error) {
	s.mu.Lock()
	ch := s.errCh
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

// Errors reports serve failures. The channel is closed once every listener has stopped.
func (s *Server) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errCh == nil {
		ch := make(chan error)
		close(ch)
		return ch
	}
	return s.errCh
}

// Info returns the handshake info of the running server.
func (s *Server) Info() pluginpb.RunningPluginInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// MetricsAddress returns the bound metrics address, or "" when disabled.
func (s *Server) MetricsAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddress
}

// Shutdown stops the listeners and waits for the serve goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	grpcServer := s.grpcServer
	healthServer := s.health
	metricsServer := s.metricsServer
	s.grpcServer = nil
	s.grpcListener = nil
	s.health = nil
	s.metricsServer = nil
	s.mu.Unlock()

	if grpcServer == nil {
		return nil
	}

	healthServer.Shutdown()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, constants.MetricsShutdownTimeout)
		err := metricsServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	stopGRPC(grpcServer)
	s.wg.Wait()
	return nil
}

func listenerPort(l net.Listener) int {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
