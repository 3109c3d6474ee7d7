// Package plugin is the Plugin Host (spec.md §4.2): it discovers, loads and
// unloads shared-library plugins, each contributing node factories to the
// Node Factory & Registry behind a "<plugin name>." namespace prefix so two
// plugins never collide on a type id. Every call across the plugin boundary
// — load, node registration, lifecycle hooks — is isolated behind a
// recover() so a panicking plugin degrades to an error instead of taking
// the host down with it.
package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/nodeloom/core/internal/editorerr"
	"github.com/nodeloom/core/internal/registry"
)

// Registrar is the narrow view of the Registry a plugin's RegisterNodes
// receives: it can add factories but cannot look up or remove anyone
// else's. The Host wraps the real *registry.Registry in a namespacing,
// bookkeeping implementation before handing it to a plugin.
type Registrar interface {
	Register(typeID string, factory registry.Factory) error
}

// MenuNode is one entry in a plugin's contribution to the node creation
// menu (supplements spec.md §4.2 with the menu hierarchy the original
// Nodle editor exposed; the distilled spec is silent on menu shape). A
// node with no Children and a non-empty TypeID is a leaf the menu can
// instantiate; a node with Children and an empty TypeID is a submenu.
type MenuNode struct {
	Label    string
	TypeID   string
	Children []MenuNode
}

// Metadata describes a plugin independent of the nodes it registers.
type Metadata struct {
	Name    string
	Version string
	// CompatibleCoreVersion is a semver string (e.g. "v1.4.0" or "1.4.0");
	// only its major version is checked against the host's.
	CompatibleCoreVersion string
	Menu                  []MenuNode
}

// pluginImpl is the set of operations a plugin author implements. It never
// crosses the shared-library boundary itself — NewHandle folds it into a
// PluginHandle's function fields at the moment create_plugin builds one,
// so the Host on the other side of plugin.Open never holds a value of a
// plugin-defined type satisfying a host-defined interface (spec.md §9's
// REDESIGN FLAGS call that pattern, a language-specific trait object, the
// one thing to avoid at a dynamic-library boundary).
type pluginImpl interface {
	Metadata() Metadata
	RegisterNodes(r Registrar) error
	OnLoad() error
	OnUnload() error
}

// PluginHandle is the opaque handle create_plugin returns and
// destroy_plugin consumes (spec.md §4.2). Its fields are unexported
// function values, a host-side vtable captured once at construction; the
// Host only ever calls through these fields, never through a Go interface
// method set shared with the plugin's own package.
type PluginHandle struct {
	metadata      func() Metadata
	registerNodes func(Registrar) error
	onLoad        func() error
	onUnload      func() error
}

// NewHandle builds the PluginHandle a plugin's exported CreatePlugin
// function returns. Call it exactly once, at CreatePlugin's return
// statement; everything past that point talks to the handle, not to impl.
func NewHandle(impl pluginImpl) *PluginHandle {
	return &PluginHandle{
		metadata:      impl.Metadata,
		registerNodes: impl.RegisterNodes,
		onLoad:        impl.OnLoad,
		onUnload:      impl.OnUnload,
	}
}

// createPluginSymbol and destroyPluginSymbol are the two exported symbols
// spec.md §4.2 requires every plugin shared library to provide: a
// zero-argument constructor and a matching destructor for the opaque
// handle it returns.
const (
	createPluginSymbol  = "CreatePlugin"
	destroyPluginSymbol = "DestroyPlugin"
)

type createPluginFunc func() *PluginHandle
type destroyPluginFunc func(*PluginHandle)

// loaded tracks one plugin's library handle and what it contributed, so
// Unload can reverse exactly what Load did.
type loaded struct {
	path          string
	lib           *plugin.Plugin
	handle        *PluginHandle
	destroy       destroyPluginFunc
	correlationID uuid.UUID
	typeIDs       []string
}

// Host owns the set of currently loaded plugins and the Registry they
// populate.
type Host struct {
	mu          sync.Mutex
	registry    *registry.Registry
	hostVersion string
	logf        func(format string, args ...any)
	plugins     map[string]*loaded
}

// NewHost returns a Host that registers plugin nodes into reg. hostVersion
// is a semver string; only its major component is compared against a
// plugin's CompatibleCoreVersion. logf receives diagnostic lines (load
// success/failure, isolated panics); pass a no-op func to discard them.
func NewHost(reg *registry.Registry, hostVersion string, logf func(format string, args ...any)) *Host {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Host{
		registry:    reg,
		hostVersion: hostVersion,
		logf:        logf,
		plugins:     make(map[string]*loaded),
	}
}

// Discover walks dirs (typically a user-scoped plugin directory and the
// local ./plugins/ directory) and returns every ".so" file found, in no
// particular order. Plugins built for other platforms use other shared
// library extensions; spec.md §4.2 only requires Linux/.so support here.
func (h *Host) Discover(dirs ...string) ([]string, error) {
	var all []string
	for _, dir := range dirs {
		found, err := findSharedLibraries(dir)
		if err != nil {
			return nil, fmt.Errorf("plugin: discover %s: %w", dir, err)
		}
		all = append(all, found...)
	}
	return all, nil
}

// findSharedLibraries walks root for every ".so" file; spec.md §4.2 only
// requires Linux/.so support. A missing root is not an error: a plugin
// directory the host has never populated is the common case, not a
// misconfiguration.
func findSharedLibraries(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".so") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Load opens the shared library at path, validates its declared core
// version compatibility, and registers its nodes. On any failure the
// library's contribution is fully rolled back: no partial registration is
// left behind.
func (h *Host) Load(path string) (name string, err error) {
	lib, err := plugin.Open(path)
	if err != nil {
		return "", &editorerr.LoadFailedError{Path: path, Reason: err.Error()}
	}

	createSym, err := lib.Lookup(createPluginSymbol)
	if err != nil {
		return "", &editorerr.LoadFailedError{Path: path, Reason: err.Error()}
	}
	create, ok := createSym.(func() *PluginHandle)
	if !ok {
		return "", &editorerr.LoadFailedError{
			Path:   path,
			Reason: fmt.Sprintf("exported symbol %q is not a func() *plugin.PluginHandle", createPluginSymbol),
		}
	}

	destroySym, err := lib.Lookup(destroyPluginSymbol)
	if err != nil {
		return "", &editorerr.LoadFailedError{Path: path, Reason: err.Error()}
	}
	destroy, ok := destroySym.(func(*PluginHandle))
	if !ok {
		return "", &editorerr.LoadFailedError{
			Path:   path,
			Reason: fmt.Sprintf("exported symbol %q is not a func(*plugin.PluginHandle)", destroyPluginSymbol),
		}
	}

	handle, panicErr := h.safeCreate(path, create)
	if panicErr != nil {
		return "", panicErr
	}
	if handle == nil {
		return "", &editorerr.LoadFailedError{Path: path, Reason: createPluginSymbol + " returned a nil handle"}
	}

	meta, panicErr := h.safeMetadata(path, handle)
	if panicErr != nil {
		destroy(handle)
		return "", panicErr
	}
	if meta.Name == "" {
		destroy(handle)
		return "", &editorerr.LoadFailedError{Path: path, Reason: "metadata().Name is empty"}
	}
	if !compatibleMajor(h.hostVersion, meta.CompatibleCoreVersion) {
		destroy(handle)
		return "", &editorerr.IncompatibleVersionError{
			Path:         path,
			TheirVersion: meta.CompatibleCoreVersion,
			HostVersion:  h.hostVersion,
		}
	}

	h.mu.Lock()
	if _, exists := h.plugins[meta.Name]; exists {
		h.mu.Unlock()
		destroy(handle)
		return "", &editorerr.LoadFailedError{Path: path, Reason: fmt.Sprintf("plugin %q already loaded", meta.Name)}
	}
	h.mu.Unlock()

	tr := &trackingRegistrar{prefix: meta.Name + ".", inner: h.registry}
	if panicErr := h.safeRegisterNodes(path, handle, tr); panicErr != nil {
		tr.rollback()
		destroy(handle)
		return "", panicErr
	}

	if panicErr := h.safeOnLoad(path, handle); panicErr != nil {
		tr.rollback()
		destroy(handle)
		return "", panicErr
	}

	lp := &loaded{
		path:          path,
		lib:           lib,
		handle:        handle,
		destroy:       destroy,
		correlationID: uuid.New(),
		typeIDs:       tr.added,
	}
	h.mu.Lock()
	h.plugins[meta.Name] = lp
	h.mu.Unlock()

	h.logf("plugin loaded: name=%s version=%s path=%s correlation_id=%s node_types=%d",
		meta.Name, meta.Version, path, lp.correlationID, len(lp.typeIDs))
	return meta.Name, nil
}

// Unload removes a loaded plugin. hasOwnedNodes is called with the
// plugin's registered type ids and must report whether any live node in
// the Graph Store still has one of those types; if so Unload refuses,
// since deleting those nodes is the caller's responsibility first
// (spec.md §4.2 unload protocol: nodes must be deleted before the plugin
// that defines them is unloaded).
//
// The stdlib plugin package offers no way to actually reclaim a loaded
// .so's memory — Unload here means discarding the Host's references and
// the Registry entries, not unmapping the library from the process.
func (h *Host) Unload(name string, hasOwnedNodes func(typeIDs []string) bool) error {
	h.mu.Lock()
	lp, ok := h.plugins[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("plugin: %q is not loaded", name)
	}

	if hasOwnedNodes(lp.typeIDs) {
		return fmt.Errorf("plugin: %q still has live nodes in the graph", name)
	}

	if panicErr := h.safeOnUnload(lp.path, lp.handle); panicErr != nil {
		h.logf("plugin unload hook failed, continuing unload: %v", panicErr)
	}

	for _, id := range lp.typeIDs {
		h.registry.Unregister(id)
	}

	if lp.destroy != nil {
		lp.destroy(lp.handle)
	}

	h.mu.Lock()
	delete(h.plugins, name)
	h.mu.Unlock()

	h.logf("plugin unloaded: name=%s", name)
	return nil
}

// Loaded returns the names of every currently loaded plugin.
func (h *Host) Loaded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		out = append(out, name)
	}
	return out
}

// MenuTree aggregates every loaded plugin's menu contribution under a
// top-level submenu named after the plugin.
func (h *Host) MenuTree() []MenuNode {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MenuNode, 0, len(h.plugins))
	for name, lp := range h.plugins {
		meta, err := safeCall(func() (Metadata, error) { return lp.handle.metadata(), nil })
		if err != nil {
			continue
		}
		out = append(out, MenuNode{Label: name, Children: meta.Menu})
	}
	return out
}

func compatibleMajor(hostVersion, pluginVersion string) bool {
	h := normalizeSemver(hostVersion)
	p := normalizeSemver(pluginVersion)
	if !semver.IsValid(h) || !semver.IsValid(p) {
		return false
	}
	return semver.Major(h) == semver.Major(p)
}

func normalizeSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// trackingRegistrar namespaces every registration under prefix and
// remembers the resulting type ids so a failed load can be rolled back.
type trackingRegistrar struct {
	prefix string
	inner  *registry.Registry
	added  []string
}

func (t *trackingRegistrar) Register(typeID string, factory registry.Factory) error {
	full := t.prefix + typeID
	if err := t.inner.Register(full, factory); err != nil {
		return err
	}
	t.added = append(t.added, full)
	return nil
}

func (t *trackingRegistrar) rollback() {
	for _, id := range t.added {
		t.inner.Unregister(id)
	}
	t.added = nil
}

// safeCreate, safeMetadata, safeRegisterNodes, safeOnLoad and safeOnUnload
// each run one plugin-boundary call under recover(), converting a panic
// into an *editorerr.PanicIsolatedError instead of propagating it.

func (h *Host) safeCreate(path string, create createPluginFunc) (handle *PluginHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &editorerr.PanicIsolatedError{Plugin: path, Where: "create_plugin", Value: r}
		}
	}()
	handle = create()
	return handle, nil
}

func (h *Host) safeMetadata(path string, handle *PluginHandle) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &editorerr.PanicIsolatedError{Plugin: path, Where: "metadata", Value: r}
		}
	}()
	meta = handle.metadata()
	return meta, nil
}

func (h *Host) safeRegisterNodes(path string, handle *PluginHandle, r Registrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &editorerr.PanicIsolatedError{Plugin: path, Where: "register_nodes", Value: rec}
		}
	}()
	if regErr := handle.registerNodes(r); regErr != nil {
		return &editorerr.LoadFailedError{Path: path, Reason: regErr.Error()}
	}
	return nil
}

func (h *Host) safeOnLoad(path string, handle *PluginHandle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &editorerr.PanicIsolatedError{Plugin: path, Where: "on_load", Value: rec}
		}
	}()
	if loadErr := handle.onLoad(); loadErr != nil {
		return &editorerr.LoadFailedError{Path: path, Reason: loadErr.Error()}
	}
	return nil
}

func (h *Host) safeOnUnload(path string, handle *PluginHandle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &editorerr.PanicIsolatedError{Plugin: path, Where: "on_unload", Value: rec}
		}
	}()
	return handle.onUnload()
}

// safeCall is a generic helper for the one remaining plugin-boundary call
// (Metadata, inside MenuTree) that does not need a *Host receiver.
func safeCall[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin: panic: %v", r)
		}
	}()
	return fn()
}
