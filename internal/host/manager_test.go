package host

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/csvplugin"
	"github.com/nupi-ai/contentplugins/internal/manifest"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/supervisor"
)

type fakeProcess struct {
	pid    int
	killed atomic.Bool
}

func (p *fakeProcess) Info() supervisor.RunningPluginInfo {
	return supervisor.RunningPluginInfo{Port: 4000, ServerKey: "test"}
}
func (p *fakeProcess) PID() int { return p.pid }
func (p *fakeProcess) Kill() { p.killed.Store(true) }

type fakeLauncher struct {
	pid      int
	launched []*fakeProcess
	err      error
}

func (l *fakeLauncher) Launch(context.Context, *manifest.Manifest) (Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProcess{pid: l.pid}
	l.launched = append(l.launched, p)
	return p, nil
}

type catalogueRecorder struct {
	*csvplugin.Service
	updates atomic.Int32
}

func (r *catalogueRecorder) UpdateCatalogue(ctx context.Context, req *pluginpb.Catalogue) (*pluginpb.Void, error) {
	r.updates.Add(1)
	return r.Service.UpdateCatalogue(ctx, req)
}

func startCSVPlugin(t *testing.T) (*catalogueRecorder, func(context.Context, string) (net.Conn, error)) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(pluginpb.ServerOptions()...)
	rec := &catalogueRecorder{Service: csvplugin.NewService()}
	pluginpb.RegisterPactPluginServer(srv, rec)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return rec, func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
}

func writeCSVManifest(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "csv-0.0.3")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pact-plugin.json"),
		[]byte(`{"name":"csv","version":"0.0.3","entryPoint":"pact-plugin-csv"}`), 0o644))
	return root
}

func newTestManager(t *testing.T) (*Manager, *fakeLauncher, *catalogueRecorder) {
	t.Helper()
	rec, dialer := startCSVPlugin(t)
	launcher := &fakeLauncher{pid: os.Getpid()}
	m := NewManager(Options{
		PluginDir: writeCSVManifest(t),
		Launcher:  launcher,
		Dialer:    dialer,
	})
	t.Cleanup(m.Shutdown)
	return m, launcher, rec
}

func TestLoadRegistersCatalogue(t *testing.T) {
	m, launcher, rec := newTestManager(t)

	plugin, err := m.Load(context.Background(), "csv", "")
	require.NoError(t, err)
	assert.Equal(t, "csv", plugin.Name())
	assert.Len(t, launcher.launched, 1)
	assert.Equal(t, int32(1), rec.updates.Load())

	entries := m.Catalogue()
	require.Len(t, entries, 2)
	assert.Equal(t, pluginpb.EntryContentGenerator, entries[0].Type)
	assert.Equal(t, pluginpb.EntryContentMatcher, entries[1].Type)
	assert.Equal(t, constants.CSVCatalogueKey, entries[1].Key)
}

func TestLoadUnknownPlugin(t *testing.T) {
	m, launcher, _ := newTestManager(t)

	_, err := m.Load(context.Background(), "protobuf", "")
	require.ErrorIs(t, err, manifest.ErrNotFound)
	assert.Empty(t, launcher.launched)
}

func TestLoadLaunchFailure(t *testing.T) {
	m, launcher, _ := newTestManager(t)
	launcher.err = supervisor.ErrHandshakeTimeout

	_, err := m.Load(context.Background(), "csv", "0.0.3")
	require.ErrorIs(t, err, supervisor.ErrHandshakeTimeout)
	assert.Empty(t, m.Plugins())
}

func TestPluginForMatchesMediaType(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Load(context.Background(), "csv", "")
	require.NoError(t, err)

	for _, ct := range []string{"text/csv", "text/csv;charset=UTF-8", "application/csv"} {
		p, err := m.PluginFor(ct)
		require.NoError(t, err, ct)
		assert.Equal(t, "csv", p.Name())
	}

	_, err = m.PluginFor("application/json")
	assert.True(t, errors.Is(err, ErrNoPlugin))
}

func TestContentRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Load(ctx, "csv", "")
	require.NoError(t, err)

	fields, err := structpb.NewStruct(map[string]any{
		"column:1": "Name",
		"column:2": "matching(number,100)",
	})
	require.NoError(t, err)

	configured, err := m.ConfigureContents(ctx, "text/csv", fields)
	require.NoError(t, err)
	require.NotNil(t, configured.Contents)
	assert.Equal(t, "Name,100\n", string(configured.Contents.Content))
	assert.Contains(t, configured.Rules, "column:1")

	compared, err := m.CompareContents(ctx, &pluginpb.CompareContentsRequest{
		Expected: configured.Contents,
		Actual:   &pluginpb.Body{ContentType: "text/csv", Content: []byte("Name,200\n")},
		Rules:    configured.Rules,
	})
	require.NoError(t, err)
	assert.Empty(t, compared.Results)

	generated, err := m.GenerateContent(ctx, &pluginpb.GenerateContentRequest{Contents: configured.Contents})
	require.NoError(t, err)
	assert.Equal(t, configured.Contents.Content, generated.Contents.Content)
}

func TestShutdownKillsPlugins(t *testing.T) {
	m, launcher, _ := newTestManager(t)
	_, err := m.Load(context.Background(), "csv", "")
	require.NoError(t, err)

	m.Shutdown()
	require.Len(t, launcher.launched, 1)
	assert.True(t, launcher.launched[0].killed.Load())
	assert.Empty(t, m.Plugins())

	_, err = m.Load(context.Background(), "csv", "")
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestShutdownSkipsExitedPlugins(t *testing.T) {
	m, launcher, _ := newTestManager(t)
	launcher.pid = math.MaxInt32
	_, err := m.Load(context.Background(), "csv", "")
	require.NoError(t, err)

	m.Shutdown()
	require.Len(t, launcher.launched, 1)
	assert.False(t, launcher.launched[0].killed.Load())
}
