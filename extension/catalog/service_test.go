package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/smarthome/extgateway"
	"github.com/smarthome/extgateway/extension/factory"
)

type recordingListener struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (l *recordingListener) record(event string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return l.err
}

func (l *recordingListener) ExtensionInstalled(ctx context.Context, id string) error {
	return l.record("installed " + id)
}

func (l *recordingListener) ExtensionUninstalled(ctx context.Context, id string) error {
	return l.record("uninstalled " + id)
}

func (l *recordingListener) ExtensionFailed(ctx context.Context, id, message string) error {
	return l.record("failed " + id)
}

func newTestService(t *testing.T, statefile string, listener *recordingListener) *Service {
	c, err := Parse(strings.NewReader(testCatalog))
	require.NoError(t, err)

	if listener == nil {
		s, err := New(c, statefile, nil)
		require.NoError(t, err)
		return s
	}

	s, err := New(c, statefile, listener)
	require.NoError(t, err)
	return s
}

func TestServiceListing(t *testing.T) {
	s := newTestService(t, "", nil)
	ctx := context.Background()

	extensions, err := s.Extensions(ctx, language.German)
	require.NoError(t, err)
	require.Len(t, extensions, 3)
	require.Equal(t, "Hue-Binding", extensions[0].Label)
	require.False(t, extensions[0].Installed)
	require.True(t, extensions[1].Installed)

	types, err := s.Types(ctx, language.English)
	require.NoError(t, err)
	require.Equal(t, []extgateway.ExtensionType{
		{ID: "binding", Label: "Bindings"},
		{ID: "ui", Label: "User Interfaces"},
	}, types)

	e, err := s.Extension(ctx, "ui-basic", language.English)
	require.NoError(t, err)
	require.Equal(t, "Basic UI", e.Label)

	e, err = s.Extension(ctx, "binding-sonos", language.English)
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestServiceInstallUninstall(t *testing.T) {
	listener := &recordingListener{}
	s := newTestService(t, "", listener)
	ctx := context.Background()

	require.NoError(t, s.Install(ctx, "binding-hue"))
	require.True(t, s.Installed("binding-hue"))
	require.Equal(t, ErrAlreadyInstalled, s.Install(ctx, "binding-hue"))

	require.NoError(t, s.Uninstall(ctx, "binding-hue"))
	require.False(t, s.Installed("binding-hue"))
	require.Equal(t, ErrNotInstalled, s.Uninstall(ctx, "binding-hue"))

	require.Equal(t, extgateway.ErrExtensionUnknown{ID: "binding-sonos"}, s.Install(ctx, "binding-sonos"))

	require.Equal(t, []string{"installed binding-hue", "uninstalled binding-hue"}, listener.events)
}

func TestServiceListenerErrorIgnored(t *testing.T) {
	listener := &recordingListener{err: errors.New("sink closed")}
	s := newTestService(t, "", listener)

	require.NoError(t, s.Install(context.Background(), "binding-hue"))
	require.True(t, s.Installed("binding-hue"))
}

func TestServiceStateFile(t *testing.T) {
	statefile := filepath.Join(t.TempDir(), "state", "installed.yml")
	ctx := context.Background()

	s := newTestService(t, statefile, nil)
	require.True(t, s.Installed("binding-zwave"), "catalog flags apply without state")

	require.NoError(t, s.Install(ctx, "ui-basic"))
	require.NoError(t, s.Uninstall(ctx, "binding-zwave"))

	content, err := os.ReadFile(statefile)
	require.NoError(t, err)
	require.Equal(t, "installed:\n- ui-basic\n", string(content))

	reloaded := newTestService(t, statefile, nil)
	require.True(t, reloaded.Installed("ui-basic"))
	require.False(t, reloaded.Installed("binding-zwave"))
}

func TestServiceStateFileUnknownIDs(t *testing.T) {
	statefile := filepath.Join(t.TempDir(), "installed.yml")
	require.NoError(t, os.WriteFile(statefile, []byte("installed: [binding-hue, binding-removed]\n"), 0o644))

	s := newTestService(t, statefile, nil)
	require.True(t, s.Installed("binding-hue"))
	require.False(t, s.Installed("binding-removed"))
	require.False(t, s.Installed("binding-zwave"))
}

func TestServiceStateFileSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := newTestService(t, filepath.Join(dir, "installed.yml"), nil)
	s.state.path = filepath.Join(blocker, "installed.yml")

	err := s.Install(context.Background(), "binding-hue")
	require.Error(t, err)
	require.False(t, s.Installed("binding-hue"))
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))

	service, err := factory.Create(context.Background(), "catalog", map[string]any{
		"path":      path,
		"statefile": filepath.Join(dir, "installed.yml"),
	}, nil)
	require.NoError(t, err)
	require.IsType(t, &Service{}, service)

	_, err = factory.Create(context.Background(), "catalog", map[string]any{}, nil)
	require.Error(t, err)

	_, err = factory.Create(context.Background(), "catalog", map[string]any{"path": filepath.Join(dir, "missing.yml")}, nil)
	require.Error(t, err)
}
