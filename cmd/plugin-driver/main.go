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
	"github.com/nupi-ai/contentplugins/internal/host"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/version"
)

type globalOptions struct {
	plugin        string
	pluginVersion string
}

func main() {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "plugin-driver",
		Short:         "Start content plugins from their manifests and call them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version.FormatVersion(version.String())
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyPluginDir, config.DefaultPluginDir(), "Directory holding installed plugins (<name>-<version>/)")
	flags.Duration(config.KeyHandshakeTimeout, constants.PluginHandshakeTimeout, "How long to wait for a plugin's startup line")
	flags.Duration(config.KeyRequestTimeout, constants.PluginRequestTimeout, "Timeout of each plugin call")
	flags.String(config.KeyLogLevel, logging.DefaultLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&opts.plugin, "plugin", constants.CSVCatalogueKey, "Name of the plugin to load")
	flags.StringVar(&opts.pluginVersion, "plugin-version", "", "Version of the plugin to load (default: highest installed)")

	rootCmd.AddCommand(
		newCatalogueCommand(opts),
		newConfigureCommand(opts),
		newCompareCommand(opts),
		newGenerateCommand(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is a manager with the selected plugin loaded.
type session struct {
	ctx     context.Context
	manager *host.Manager
	logger  *zap.Logger
	close   func()
}

func loadConfig(cmd *cobra.Command) (config.Driver, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Driver{}, err
	}
	return config.LoadDriver(v)
}

func openSession(cmd *cobra.Command, opts *globalOptions, plugins ...string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	manager := host.NewManager(host.Options{
		PluginDir:        cfg.PluginDir,
		HandshakeTimeout: cfg.HandshakeTimeout,
		RequestTimeout:   cfg.RequestTimeout,
		Logger:           logger,
	})
	s := &session{
		ctx:     ctx,
		manager: manager,
		logger:  logger,
		close: func() {
			manager.Shutdown()
			stop()
			_ = logger.Sync()
		},
	}

	if len(plugins) == 0 {
		plugins = []string{opts.plugin}
	}
	for _, name := range plugins {
		ver := ""
		if name == opts.plugin {
			ver = opts.pluginVersion
		}
		if _, err := manager.Load(ctx, name, ver); err != nil {
			s.close()
			return nil, err
		}
	}
	logger.Debug("plugins loaded", zap.Strings("plugins", plugins), zap.String("plugin_dir", cfg.PluginDir))
	return s, nil
}
