package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPluginDirHonoursEnv(t *testing.T) {
	t.Setenv(PluginDirEnv, "/opt/plugins")

	if got := DefaultPluginDir(); got != "/opt/plugins" {
		t.Errorf("DefaultPluginDir() = %s; want /opt/plugins", got)
	}
}

func TestDefaultPluginDirFallsBackToHome(t *testing.T) {
	t.Setenv(PluginDirEnv, "")

	userHome, _ := os.UserHomeDir()
	expected := filepath.Join(userHome, ".pact", "plugins")
	if got := DefaultPluginDir(); got != expected {
		t.Errorf("DefaultPluginDir() = %s; want %s", got, expected)
	}
}

func TestPluginInstallDir(t *testing.T) {
	if got := PluginInstallDir("/p", "csv", "0.0.3"); got != filepath.Join("/p", "csv-0.0.3") {
		t.Errorf("unexpected install dir %s", got)
	}
	if got := PluginInstallDir("/p", "csv", ""); got != filepath.Join("/p", "csv") {
		t.Errorf("unexpected install dir %s", got)
	}
}

func TestExpandPath(t *testing.T) {
	userHome, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", userHome},
		{"~/plugins", filepath.Join(userHome, "plugins")},
		{"/abs/path", "/abs/path"},
		{"~other", "~other"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
