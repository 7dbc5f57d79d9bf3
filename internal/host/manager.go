// Package host loads content plugins from their manifests, keeps their
// catalogue entries, and routes content requests to the plugin that handles
// a content type.
package host

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/manifest"
	"github.com/nupi-ai/contentplugins/internal/plugindial"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/procutil"
	"github.com/nupi-ai/contentplugins/internal/supervisor"
	"github.com/nupi-ai/contentplugins/internal/version"
)

var (
	ErrNoPlugin      = errors.New("host: no plugin handles the content type")
	ErrManagerClosed = errors.New("host: manager is shut down")
)

// Process is a running plugin child.
type Process interface {
	Info() supervisor.RunningPluginInfo
	PID() int
	Kill()
}

// Launcher starts the plugin described by a manifest and returns once it
// has completed its handshake.
type Launcher interface {
	Launch(ctx context.Context, m *manifest.Manifest) (Process, error)
}

// SupervisorLauncher launches plugins as child processes.
type SupervisorLauncher struct {
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// Launch implements Launcher.
func (l SupervisorLauncher) Launch(ctx context.Context, m *manifest.Manifest) (Process, error) {
	proc, err := supervisor.Start(ctx, m, &supervisor.StartOptions{
		HandshakeTimeout: l.HandshakeTimeout,
		Logger:           l.Logger,
	})
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// Options configures a Manager.
type Options struct {
	PluginDir        string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	Launcher         Launcher
	// Dialer replaces the network dialer used to reach plugins (tests).
	Dialer func(context.Context, string) (net.Conn, error)
	Logger *zap.Logger
}

// Plugin is a loaded plugin with an open connection.
type Plugin struct {
	Manifest  *manifest.Manifest
	Catalogue []*pluginpb.CatalogueEntry

	process Process
	conn    *grpc.ClientConn
	client  pluginpb.PactPluginClient
}

// Name returns the manifest name of the plugin.
func (p *Plugin) Name() string { return p.Manifest.Name }

// Client returns the protocol client of the plugin.
func (p *Plugin) Client() pluginpb.PactPluginClient { return p.client }

// Manager owns the plugins it loaded. It is safe for concurrent use.
type Manager struct {
	opts   Options
	logger *zap.Logger

	// plugins are started under baseCtx so that request contexts do not
	// bound their lifetime.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	plugins []*Plugin
	closed  bool
}

// NewManager returns a manager with no plugins loaded.
func NewManager(opts Options) *Manager {
	logger := logging.OrNop(opts.Logger).Named("host")
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = constants.PluginHandshakeTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = constants.PluginRequestTimeout
	}
	if opts.Launcher == nil {
		opts.Launcher = SupervisorLauncher{HandshakeTimeout: opts.HandshakeTimeout, Logger: logger}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{opts: opts, logger: logger, baseCtx: ctx, cancel: cancel}
}

// Load starts plugin name (highest version when version is empty), registers
// its catalogue and pushes the merged catalogue to every loaded plugin.
func (m *Manager) Load(ctx context.Context, name, ver string) (*Plugin, error) {
	mf, err := manifest.Find(m.opts.PluginDir, name, ver, m.logger)
	if err != nil {
		return nil, err
	}
	return m.LoadManifest(ctx, mf)
}

// LoadManifest starts the plugin described by mf.
func (m *Manager) LoadManifest(ctx context.Context, mf *manifest.Manifest) (*Plugin, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	logger := m.logger.With(zap.String("plugin", mf.Name), zap.String("version", mf.Version))
	proc, err := m.opts.Launcher.Launch(m.baseCtx, mf)
	if err != nil {
		return nil, fmt.Errorf("host: start plugin %s: %w", mf.Name, err)
	}
	info := proc.Info()
	logger.Debug("plugin started", zap.Int("pid", proc.PID()), zap.Uint16("port", info.Port))

	dialCtx := plugindial.ContextWithDialer(ctx, m.opts.Dialer)
	conn, err := plugindial.Dial(dialCtx, plugindial.Address(info.Port))
	if err != nil {
		proc.Kill()
		return nil, err
	}
	plugin := &Plugin{
		Manifest: mf,
		process:  proc,
		conn:     conn,
		client:   pluginpb.NewPactPluginClient(conn),
	}

	callCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	resp, err := plugin.client.InitPlugin(callCtx, &pluginpb.InitPluginRequest{
		Implementation: version.Implementation,
		Version:        version.String(),
	})
	cancel()
	if err != nil {
		m.release(plugin)
		return nil, fmt.Errorf("host: init plugin %s: %w", mf.Name, err)
	}
	plugin.Catalogue = resp.Catalogue
	logger.Info("plugin loaded", zap.Int("entries", len(resp.Catalogue)))

	m.mu.Lock()
	m.plugins = append(m.plugins, plugin)
	m.mu.Unlock()

	if err := m.PushCatalogue(ctx); err != nil {
		return plugin, err
	}
	return plugin, nil
}

// Plugins returns the loaded plugins in load order.
func (m *Manager) Plugins() []*Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Plugin(nil), m.plugins...)
}

// Catalogue returns the merged catalogue of all loaded plugins, sorted by
// entry type then key.
func (m *Manager) Catalogue() []*pluginpb.CatalogueEntry {
	var entries []*pluginpb.CatalogueEntry
	for _, p := range m.Plugins() {
		entries = append(entries, p.Catalogue...)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// PushCatalogue sends the merged catalogue to every loaded plugin concurrently.
func (m *Manager) PushCatalogue(ctx context.Context) error {
	catalogue := &pluginpb.Catalogue{Catalogue: m.Catalogue()}
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range m.Plugins() {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, m.opts.RequestTimeout)
			defer cancel()
			if _, err := p.client.UpdateCatalogue(callCtx, catalogue); err != nil {
				return fmt.Errorf("host: update catalogue of %s: %w", p.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// PluginFor returns the plugin whose content-matcher entry lists the media
// type of contentType.
func (m *Manager) PluginFor(contentType string) (*Plugin, error) {
	want := mediaType(contentType)
	for _, p := range m.Plugins() {
		for _, entry := range p.Catalogue {
			if entry.Type != pluginpb.EntryContentMatcher {
				continue
			}
			for _, ct := range strings.Split(entry.Values[constants.CatalogueContentTypesAttribute], ";") {
				if ct != "" && mediaType(ct) == want {
					return p, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPlugin, contentType)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// ConfigureContents asks the matching plugin to build example content from
// field expressions keyed by field selector.
func (m *Manager) ConfigureContents(ctx context.Context, contentType string, fields *structpb.Struct) (*pluginpb.ConfigureContentsResponse, error) {
	p, err := m.PluginFor(contentType)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return p.client.ConfigureContents(ctx, &pluginpb.ConfigureContentsRequest{
		ContentType:    contentType,
		ContentsConfig: pluginpb.NewValues(fields),
	})
}

// CompareContents routes req to the plugin for the expected body's content
// type, falling back to the actual body.
func (m *Manager) CompareContents(ctx context.Context, req *pluginpb.CompareContentsRequest) (*pluginpb.CompareContentsResponse, error) {
	var contentType string
	switch {
	case req.Expected != nil:
		contentType = req.Expected.ContentType
	case req.Actual != nil:
		contentType = req.Actual.ContentType
	}
	p, err := m.PluginFor(contentType)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return p.client.CompareContents(ctx, req)
}

// GenerateContent routes req to the plugin for its content type.
func (m *Manager) GenerateContent(ctx context.Context, req *pluginpb.GenerateContentRequest) (*pluginpb.GenerateContentResponse, error) {
	var contentType string
	if req.Contents != nil {
		contentType = req.Contents.ContentType
	}
	p, err := m.PluginFor(contentType)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return p.client.GenerateContent(ctx, req)
}

// Shutdown closes every connection and kills every plugin. The manager
// cannot load plugins afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = nil
	m.closed = true
	m.mu.Unlock()

	for _, p := range plugins {
		m.release(p)
	}
	m.cancel()
}

func (m *Manager) release(p *Plugin) {
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			m.logger.Debug("close plugin connection", zap.String("plugin", p.Name()), zap.Error(err))
		}
	}
	if !procutil.IsProcessAlive(p.process.PID()) {
		m.logger.Debug("plugin already exited", zap.String("plugin", p.Name()), zap.Int("pid", p.process.PID()))
		return
	}
	p.process.Kill()
}
