// Package manifest loads plugin manifests (pact-plugin.json or plugin.yaml)
// and resolves the command that launches a plugin.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nupi-ai/contentplugins/internal/logging"
)

const (
	manifestJSON = "pact-plugin.json"
	manifestYAML = "plugin.yaml"
	manifestYML  = "plugin.yml"

	// ExecutableTypeExec runs the entry point directly.
	ExecutableTypeExec = "exec"
)

var (
	// ErrNotFound is returned when no manifest matches a lookup.
	ErrNotFound = errors.New("manifest: plugin not found")
	// ErrUnsupportedExecutable is returned for executable types that can not be launched.
	ErrUnsupportedExecutable = errors.New("manifest: unsupported executable type")
)

// Manifest describes an installed plugin. It is not modified after loading.
type Manifest struct {
	Dir  string `yaml:"-" json:"-"`
	File string `yaml:"-" json:"-"`

	ManifestVersion        int               `yaml:"manifestVersion" json:"manifestVersion"`
	PluginInterfaceVersion int               `yaml:"pluginInterfaceVersion" json:"pluginInterfaceVersion"`
	Name                   string            `yaml:"name" json:"name"`
	Version                string            `yaml:"version" json:"version"`
	ExecutableType         string            `yaml:"executableType" json:"executableType"`
	MinimumRequiredVersion string            `yaml:"minimumRequiredVersion" json:"minimumRequiredVersion,omitempty"`
	EntryPoint             string            `yaml:"entryPoint" json:"entryPoint"`
	EntryPoints            map[string]string `yaml:"entryPoints" json:"entryPoints,omitempty"`
	Args                   []string          `yaml:"args" json:"args,omitempty"`
	PluginConfig           map[string]any    `yaml:"pluginConfig" json:"pluginConfig,omitempty"`
}

// DiscoveryWarning represents a plugin directory skipped during discovery.
type DiscoveryWarning struct {
	Dir string
	Err error
}

// Parse decodes a manifest without a backing directory. JSON manifests are
// accepted since JSON is valid YAML.
func Parse(data []byte) (*Manifest, error) {
	return decodeManifest(data, "", "")
}

// LoadFromDir loads the manifest found in dir.
func LoadFromDir(dir string) (*Manifest, error) {
	file, err := locateManifestFile(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", file, err)
	}

	return decodeManifest(data, dir, file)
}

func decodeManifest(data []byte, dir, file string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", file, err)
	}

	m.Dir = dir
	m.File = file
	m.Name = strings.TrimSpace(m.Name)
	m.Version = strings.TrimSpace(m.Version)
	m.ExecutableType = strings.TrimSpace(m.ExecutableType)
	if m.ExecutableType == "" {
		m.ExecutableType = ExecutableTypeExec
	}
	if m.PluginInterfaceVersion == 0 {
		m.PluginInterfaceVersion = 1
	}

	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s missing name", file)
	}
	if strings.TrimSpace(m.EntryPoint) == "" {
		return nil, fmt.Errorf("manifest %s missing entryPoint", file)
	}
	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			return nil, fmt.Errorf("manifest %s has invalid version %q: %w", file, m.Version, err)
		}
	}
	return &m, nil
}

func locateManifestFile(dir string) (string, error) {
	for _, name := range []string{manifestJSON, manifestYAML, manifestYML} {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat manifest %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no manifest found in %s: %w", dir, fs.ErrNotExist)
}

// EntryPointFor returns the entry point for goos, honouring per-OS overrides.
func (m *Manifest) EntryPointFor(goos string) string {
	if ep, ok := m.EntryPoints[goos]; ok && strings.TrimSpace(ep) != "" {
		return ep
	}
	return m.EntryPoint
}

// Command resolves the executable and arguments that launch the plugin on
// the current OS. Relative entry points resolve against the manifest directory.
func (m *Manifest) Command() (string, []string, error) {
	if m.ExecutableType != ExecutableTypeExec {
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedExecutable, m.ExecutableType)
	}
	entry := m.EntryPointFor(runtime.GOOS)
	if !filepath.IsAbs(entry) && m.Dir != "" {
		entry = filepath.Join(m.Dir, entry)
	}
	args := append([]string(nil), m.Args...)
	return entry, args, nil
}

// Discover scans root for plugin directories (<root>/<name>-<version>) and
// returns the valid manifests sorted by name then version. Invalid plugins
// are reported as warnings.
func Discover(root string, logger *zap.Logger) ([]*Manifest, []DiscoveryWarning) {
	logger = logging.OrNop(logger).Named("manifest")

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []DiscoveryWarning{{Dir: root, Err: fmt.Errorf("read plugin root: %w", err)}}
	}

	var manifests []*Manifest
	var warnings []DiscoveryWarning
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		m, err := LoadFromDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			warnings = append(warnings, DiscoveryWarning{Dir: dir, Err: err})
			logger.Warn("skipping plugin directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		if manifests[i].Name != manifests[j].Name {
			return manifests[i].Name < manifests[j].Name
		}
		return compareVersions(manifests[i].Version, manifests[j].Version) < 0
	})
	return manifests, warnings
}

// Find returns the manifest of plugin name under root. An empty version
// selects the highest installed version.
func Find(root, name, version string, logger *zap.Logger) (*Manifest, error) {
	manifests, _ := Discover(root, logger)

	var best *Manifest
	for _, m := range manifests {
		if m.Name != name {
			continue
		}
		if version != "" {
			if compareVersions(m.Version, version) == 0 {
				return m, nil
			}
			continue
		}
		if best == nil || compareVersions(m.Version, best.Version) > 0 {
			best = m
		}
	}
	if best == nil {
		if version != "" {
			return nil, fmt.Errorf("%w: %s/%s in %s", ErrNotFound, name, version, root)
		}
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, root)
	}
	return best, nil
}

// compareVersions orders semantic versions; unparsable versions sort first
// and compare as strings among themselves.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB != nil:
		return 1
	}
	return strings.Compare(a, b)
}
