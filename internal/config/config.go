// Package config loads plugin and driver settings from the environment and
// command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/logging"
)

// Setting keys. Flags bound with BindFlags use the same names.
const (
	KeyLogLevel         = "log-level"
	KeyHost             = "host"
	KeyMetricsAddr      = "metrics-addr"
	KeyPluginDir        = "plugin-dir"
	KeyHandshakeTimeout = "handshake-timeout"
	KeyRequestTimeout   = "request-timeout"
)

var envBindings = map[string]string{
	KeyLogLevel:         "LOG_LEVEL",
	KeyHost:             "PLUGIN_HOST",
	KeyMetricsAddr:      "PLUGIN_METRICS_ADDR",
	KeyPluginDir:        PluginDirEnv,
	KeyHandshakeTimeout: "PLUGIN_HANDSHAKE_TIMEOUT",
	KeyRequestTimeout:   "PLUGIN_REQUEST_TIMEOUT",
}

// Plugin configures the CSV plugin server.
type Plugin struct {
	LogLevel    string `mapstructure:"log-level"`
	Host        string `mapstructure:"host"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Driver configures the plugin driver.
type Driver struct {
	LogLevel         string        `mapstructure:"log-level"`
	PluginDir        string        `mapstructure:"plugin-dir"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`
	RequestTimeout   time.Duration `mapstructure:"request-timeout"`
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLogLevel, logging.DefaultLevel)
	v.SetDefault(KeyHost, constants.DefaultListenHost)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyPluginDir, DefaultPluginDir())
	v.SetDefault(KeyHandshakeTimeout, constants.PluginHandshakeTimeout)
	v.SetDefault(KeyRequestTimeout, constants.PluginRequestTimeout)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// BindFlags lets explicitly set flags override the environment. Flags that
// do not exist in fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for key := range envBindings {
		flag := fs.Lookup(key)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: bind flag %s: %w", key, err)
		}
	}
	return nil
}

// LoadPlugin decodes the plugin settings.
func LoadPlugin(v *viper.Viper) (Plugin, error) {
	var cfg Plugin
	if err := v.Unmarshal(&cfg); err != nil {
		return Plugin{}, fmt.Errorf("config: decode plugin settings: %w", err)
	}
	if cfg.Host == "" {
		cfg.Host = constants.DefaultListenHost
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return Plugin{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadDriver decodes the driver settings.
func LoadDriver(v *viper.Viper) (Driver, error) {
	var cfg Driver
	if err := v.Unmarshal(&cfg); err != nil {
		return Driver{}, fmt.Errorf("config: decode driver settings: %w", err)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = constants.PluginHandshakeTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.PluginRequestTimeout
	}
	cfg.PluginDir = ExpandPath(cfg.PluginDir)
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return Driver{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
