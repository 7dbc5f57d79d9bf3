package config

import (
	"os"
	"path/filepath"
)

// PluginDirEnv overrides the directory plugins are installed into.
const PluginDirEnv = "PACT_PLUGIN_DIR"

// DefaultPluginDir returns the plugin install directory: $PACT_PLUGIN_DIR, or
// ~/.pact/plugins when unset.
func DefaultPluginDir() string {
	if dir := os.Getenv(PluginDirEnv); dir != "" {
		return ExpandPath(dir)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".pact", "plugins")
}

// PluginInstallDir returns the directory a plugin version is installed in
// (<root>/<name>-<version>). An empty version yields <root>/<name>.
func PluginInstallDir(root, name, version string) string {
	if version == "" {
		return filepath.Join(root, name)
	}
	return filepath.Join(root, name+"-"+version)
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
