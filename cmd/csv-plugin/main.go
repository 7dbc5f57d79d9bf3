package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nupi-ai/contentplugins/internal/config"
	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/csvplugin"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "csv-plugin",
		Short:         "CSV content plugin - matches and generates text/csv bodies",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPlugin,
	}
	rootCmd.Version = version.FormatVersion(version.String())
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := rootCmd.Flags()
	flags.String(config.KeyHost, constants.DefaultListenHost, "Interface the gRPC server binds to (port is always ephemeral)")
	flags.String(config.KeyMetricsAddr, "", "Address for the Prometheus /metrics endpoint (empty disables it)")
	flags.String(config.KeyLogLevel, logging.DefaultLevel, "Log level: debug, info, warn or error")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlugin(cmd *cobra.Command, _ []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.LoadPlugin(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := csvplugin.NewServer(cfg, logger, csvplugin.NewMetrics())
	info, err := server.Start(ctx)
	if err != nil {
		return err
	}
	if err := csvplugin.Announce(os.Stdout, info); err != nil {
		_ = server.Shutdown(context.Background())
		return fmt.Errorf("announce startup: %w", err)
	}
	logger.Info("CSV plugin started",
		zap.Int("pid", os.Getpid()),
		zap.Uint16("port", info.Port),
		zap.String("version", version.String()))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case serveErr = <-server.Errors():
		logger.Error("server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.Duration5Seconds)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("CSV plugin stopped")
	return serveErr
}
