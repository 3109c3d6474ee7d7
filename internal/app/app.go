package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nodeloom/core/internal/cache"
	"github.com/nodeloom/core/internal/ctxlog"
	"github.com/nodeloom/core/internal/engine"
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/gpu/instance"
	"github.com/nodeloom/core/internal/gpu/render"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/interaction"
	"github.com/nodeloom/core/internal/panel"
	"github.com/nodeloom/core/internal/plugin"
	"github.com/nodeloom/core/internal/registry"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

// Version is the core's own semver, checked against every plugin's
// declared CompatibleCoreVersion by the Plugin Host.
const Version = "v1.0.0"

// Config holds all the necessary configuration for an Editor instance.
type Config struct {
	LogFormat string
	LogLevel  string
	// PluginDirs is walked for ".so" plugin libraries at startup.
	PluginDirs []string
	// Workers, when > 1, enables the Execution Engine's concurrent
	// dispatcher instead of the sequential default.
	Workers int
	// PanelStackX/PanelStackWidth position the Panel Manager's stacked
	// parameter panels against the canvas edge.
	PanelStackX     float64
	PanelStackWidth float64
}

// Editor is the facade composing every core component into one coherent
// session: a root Graph Store, the Registry and Plugin Host that populate
// it with node types, the Execution Engine that runs it, and the
// View/Interaction/Panel/GPU layers that let a host UI present and mutate
// it. It owns exactly one root Graph Store; subgraph nodes carry their own
// nested Store, reached through the Navigator.
type Editor struct {
	outW   io.Writer
	logger *slog.Logger

	registry *registry.Registry
	plugins  *plugin.Host
	cache    *cache.Manager

	root   *graph.Store
	engine *engine.Engine
	nav    *view.Navigator
	interp *interaction.Machine
	panels *panel.Manager
	frames *instance.Builder

	renderer *render.Renderer
}

// New wires a fresh Editor: an empty Registry (spec.md §1 non-goals: no
// node's domain logic — geometry math, image processing, scene description
// — is part of this core, so the Registry starts with no factories of its
// own; every node type a session exposes comes from a loaded plugin, or
// from factories a test/host registers directly), a Plugin Host that
// discovers and loads every ".so" under cfg.PluginDirs, an empty root Graph
// Store, an Execution Engine subscribed to it, and the
// View/Interaction/Panel/GPU layers over it.
func New(outW io.Writer, cfg *Config) (*Editor, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("logger configured")

	reg := registry.New()

	host := plugin.NewHost(reg, Version, func(format string, args ...any) {
		logger.Info(fmt.Sprintf(format, args...))
	})

	paths, err := host.Discover(cfg.PluginDirs...)
	if err != nil {
		return nil, fmt.Errorf("app: plugin discovery: %w", err)
	}
	for _, p := range paths {
		if name, err := host.Load(p); err != nil {
			logger.Warn("plugin load failed", "path", p, "error", err)
		} else {
			logger.Info("plugin loaded", "name", name, "path", p)
		}
	}

	cacheMgr := cache.New()
	root := graph.New()
	eng := engine.New(root, engine.WithCache(cacheMgr), engine.WithWorkers(cfg.Workers))

	nav := view.NewNavigator(root)
	interp := interaction.NewMachine(nav)
	panels := panel.New(cfg.PanelStackX, cfg.PanelStackWidth)
	interp.SetPanelPinner(panels)
	frames := instance.New()

	root.Subscribe(func(ev graph.Event) {
		frames.Invalidate()
		switch ev.Kind {
		case graph.NodeAdded:
			// spec.md §4.8 rule 1: a node's panel appears automatically on
			// creation if its metadata declares a panel_type other than
			// None. Open is itself a no-op for PanelNone.
			if n := root.Get(ev.Node); n != nil {
				panels.Open(n)
			}
		case graph.NodeRemoved:
			panels.Discard(ev.Node)
		}
	})

	logger.Debug("editor ready", "node_count", root.NodeCount(), "plugin_count", len(host.Loaded()))

	return &Editor{
		outW:     outW,
		logger:   logger,
		registry: reg,
		plugins:  host,
		cache:    cacheMgr,
		root:     root,
		engine:   eng,
		nav:      nav,
		interp:   interp,
		panels:   panels,
		frames:   frames,
	}, nil
}

// AttachRenderer binds a GPU device provider so the Editor can drive Paint
// calls; a headless caller (a test, or a batch-processing use of the
// engine) may leave this unset and simply never call Paint.
func (e *Editor) AttachRenderer(r *render.Renderer) {
	e.renderer = r
}

// Registry returns the editor's node type Registry.
func (e *Editor) Registry() *registry.Registry { return e.registry }

// Plugins returns the editor's Plugin Host.
func (e *Editor) Plugins() *plugin.Host { return e.plugins }

// Cache returns the editor's Cache Manager.
func (e *Editor) Cache() *cache.Manager { return e.cache }

// RootGraph returns the root Graph Store. Subgraph nodes carry their own
// nested Store, reached through Navigator, not through this method.
func (e *Editor) RootGraph() *graph.Store { return e.root }

// Navigator returns the View/Navigation component.
func (e *Editor) Navigator() *view.Navigator { return e.nav }

// Interaction returns the Interaction State Machine.
func (e *Editor) Interaction() *interaction.Machine { return e.interp }

// Panels returns the Panel Manager.
func (e *Editor) Panels() *panel.Manager { return e.panels }

// CreateNode instantiates typeID at position in the active graph (per the
// Navigator, so a node created while inside a subgraph lands in that
// subgraph) and returns its assigned NodeID.
func (e *Editor) CreateNode(typeID string, position types.Vec3) (ids.NodeID, error) {
	n, err := e.registry.CreateNode(typeID, position)
	if err != nil {
		return ids.Zero, err
	}
	return e.nav.ActiveGraph().AddNode(n), nil
}

// Run advances the root Execution Engine, evaluating every currently dirty
// node in dependency order; a dirty subgraph node drains its own nested
// Engine as part of executing that one node, so one Run call covers the
// whole graph tree regardless of which level the Navigator currently has
// active. The editor's logger is embedded into ctx so a node's Process
// implementation can pull it back out via ctxlog.FromContext instead of
// needing a logger threaded through its own constructor.
func (e *Editor) Run(ctx context.Context) (engine.RunSummary, error) {
	return e.engine.Run(ctxlog.WithLogger(ctx, e.logger))
}

// Output returns the value the root Engine's last Run produced on the
// given node's output port, if any.
func (e *Editor) Output(id ids.NodeID, port ids.PortIndex) (types.NodeData, bool) {
	return e.engine.Output(id, port)
}

// Frame rebuilds (if stale) and returns the current GPU instance snapshot
// for the active graph level.
func (e *Editor) Frame() instance.Frame {
	return e.frames.Build(e.nav, e.interp)
}

// Close stops the Cache Manager's eviction goroutines. Call once, on
// editor shutdown.
func (e *Editor) Close() {
	e.cache.Close()
}
