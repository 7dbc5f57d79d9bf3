package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/contentplugins/internal/constants"
)

func TestLoadPluginDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PLUGIN_HOST", "")
	t.Setenv("PLUGIN_METRICS_ADDR", "")

	cfg, err := LoadPlugin(New())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultListenHost, cfg.Host)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadPluginFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PLUGIN_HOST", "0.0.0.0")
	t.Setenv("PLUGIN_METRICS_ADDR", ":9102")

	cfg, err := LoadPlugin(New())
	require.NoError(t, err)
	assert.Equal(t, Plugin{LogLevel: "debug", Host: "0.0.0.0", MetricsAddr: ":9102"}, cfg)
}

func TestLoadPluginRejectsBadLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")

	_, err := LoadPlugin(New())
	assert.Error(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PLUGIN_HOST", "10.0.0.1")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyHost, "", "")
	fs.String("unrelated", "", "")
	require.NoError(t, fs.Parse([]string{"--host=192.168.1.1"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))

	cfg, err := LoadPlugin(v)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", cfg.Host)
}

func TestLoadDriverDurations(t *testing.T) {
	t.Setenv("PLUGIN_HANDSHAKE_TIMEOUT", "2s")
	t.Setenv("PLUGIN_REQUEST_TIMEOUT", "")
	t.Setenv(PluginDirEnv, "/plugins")

	cfg, err := LoadDriver(New())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, constants.PluginRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, "/plugins", cfg.PluginDir)
}
