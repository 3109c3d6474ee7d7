package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/editorerr"
	"github.com/nodeloom/core/internal/registry"
	"github.com/nodeloom/core/internal/types"
)

type stubFactory struct{}

func (stubFactory) Metadata() registry.NodeMetadata { return registry.NodeMetadata{} }
func (stubFactory) CreateNode(types.Vec3) (registry.PluginNodeHandle, error) {
	return nil, nil
}

// stubPlugin is a minimal pluginImpl for exercising NewHandle and the
// safe* dispatch helpers without a real .so.
type stubPlugin struct {
	meta        Metadata
	registerErr error
	loadErr     error
	unloadErr   error
	registered  []string
	panicWhere  string
}

func (p *stubPlugin) Metadata() Metadata { return p.meta }

func (p *stubPlugin) RegisterNodes(r Registrar) error {
	if p.panicWhere == "register_nodes" {
		panic("boom")
	}
	if p.registerErr != nil {
		return p.registerErr
	}
	for _, id := range p.registered {
		if err := r.Register(id, stubFactory{}); err != nil {
			return err
		}
	}
	return nil
}

func (p *stubPlugin) OnLoad() error {
	if p.panicWhere == "on_load" {
		panic("boom")
	}
	return p.loadErr
}

func (p *stubPlugin) OnUnload() error {
	if p.panicWhere == "on_unload" {
		panic("boom")
	}
	return p.unloadErr
}

func TestCompatibleMajor(t *testing.T) {
	cases := []struct {
		host, plugin string
		want         bool
	}{
		{"v1.4.0", "1.0.0", true},
		{"1.4.0", "v1.9.9", true},
		{"v1.0.0", "v2.0.0", false},
		{"v1.0.0", "not-a-version", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, compatibleMajor(c.host, c.plugin), "%s vs %s", c.host, c.plugin)
	}
}

func TestTrackingRegistrarNamespacesAndRollsBack(t *testing.T) {
	reg := registry.New()
	tr := &trackingRegistrar{prefix: "demo.", inner: reg}

	require.NoError(t, tr.Register("light", stubFactory{}))
	_, ok := reg.Lookup("demo.light")
	assert.True(t, ok)

	tr.rollback()
	_, ok = reg.Lookup("demo.light")
	assert.False(t, ok)
}

func TestTrackingRegistrarRejectsCollisionWithinNamespace(t *testing.T) {
	reg := registry.New()
	tr := &trackingRegistrar{prefix: "demo.", inner: reg}
	require.NoError(t, tr.Register("light", stubFactory{}))
	err := tr.Register("light", stubFactory{})
	assert.Error(t, err)
}

func TestDiscoverFindsSharedLibraries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte{}, 0o644))

	h := NewHost(registry.New(), "v1.0.0", nil)
	found, err := h.Discover(dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(dir, "a.so"), found[0])
}

func TestUnloadRefusesWhileNodesOwned(t *testing.T) {
	h := NewHost(registry.New(), "v1.0.0", nil)
	h.plugins["demo"] = &loaded{typeIDs: []string{"demo.light"}}

	err := h.Unload("demo", func([]string) bool { return true })
	assert.Error(t, err)
}

func TestUnloadUnknownPlugin(t *testing.T) {
	h := NewHost(registry.New(), "v1.0.0", nil)
	err := h.Unload("nope", func([]string) bool { return false })
	assert.Error(t, err)
}

func TestNewHandleDispatchesThroughVtableNotTheOriginalInterface(t *testing.T) {
	impl := &stubPlugin{meta: Metadata{Name: "demo"}, registered: []string{"light"}}
	handle := NewHandle(impl)

	reg := registry.New()
	tr := &trackingRegistrar{prefix: "demo.", inner: reg}

	assert.Equal(t, "demo", handle.metadata().Name)
	require.NoError(t, handle.registerNodes(tr))
	_, ok := reg.Lookup("demo.light")
	assert.True(t, ok)
	require.NoError(t, handle.onLoad())
	require.NoError(t, handle.onUnload())
}

func TestSafeRegisterNodesIsolatesPanic(t *testing.T) {
	h := NewHost(registry.New(), "v1.0.0", nil)
	handle := NewHandle(&stubPlugin{panicWhere: "register_nodes"})
	tr := &trackingRegistrar{prefix: "demo.", inner: h.registry}

	err := h.safeRegisterNodes("demo.so", handle, tr)
	require.Error(t, err)
	var panicErr *editorerr.PanicIsolatedError
	assert.ErrorAs(t, err, &panicErr)
}

func TestSafeOnUnloadIsolatesPanic(t *testing.T) {
	h := NewHost(registry.New(), "v1.0.0", nil)
	handle := NewHandle(&stubPlugin{panicWhere: "on_unload"})

	err := h.safeOnUnload("demo.so", handle)
	require.Error(t, err)
	var panicErr *editorerr.PanicIsolatedError
	assert.ErrorAs(t, err, &panicErr)
}

func TestSafeCreateIsolatesPanic(t *testing.T) {
	h := NewHost(registry.New(), "v1.0.0", nil)
	panicky := func() *PluginHandle { panic("boom") }

	_, err := h.safeCreate("demo.so", panicky)
	require.Error(t, err)
	var panicErr *editorerr.PanicIsolatedError
	assert.ErrorAs(t, err, &panicErr)
}
