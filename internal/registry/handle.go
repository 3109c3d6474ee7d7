package registry

import (
	"context"
	"sync"

	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// PluginNodeHandle is the opaque per-node handle a Factory's CreateNode
// returns: id/position/set_position/get_parameter/set_parameter/process/
// get_parameter_ui/handle_ui_action, the full surface a node implementation
// exposes across the plugin boundary (spec.md §4.2). The Graph Store and
// Execution Engine hold only this handle, never a domain-specific type —
// a plugin-owned node and a built-in node are indistinguishable past this
// point, and Impl is opaque even to the Registry that produced it.
type PluginNodeHandle interface {
	ID() ids.NodeID
	Position() types.Vec3
	SetPosition(types.Vec3)
	GetParameter(name string) (types.NodeData, bool)
	SetParameter(name string, value types.NodeData)
	// Process implements engine.Processor; kept as part of this interface
	// rather than split out, since every PluginNodeHandle is expected to
	// answer process() even if it is a no-op pass-through.
	Process(ctx context.Context, inputs map[ids.PortIndex]types.NodeData, params map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error)
	ParameterUI() []ParameterField
	HandleUIAction(action UIAction) []ParameterChange
}

// ViewportCapable is the optional half of PluginNodeHandle (spec.md §4.2:
// "optional supports_viewport(), get_viewport_data(),
// handle_viewport_camera(manipulation)"). Most node types have no
// viewport; a caller type-asserts a handle for this rather than every
// handle carrying three unused methods.
type ViewportCapable interface {
	SupportsViewport() bool
	ViewportData() []byte
	HandleViewportCamera(manipulation ViewportManipulation)
}

// ParameterField describes one field a node's get_parameter_ui contributes
// to its panel: enough for a host UI to render a generic editor (name,
// label, kind, current value) without knowing the node's domain.
type ParameterField struct {
	Name  string
	Label string
	Type  types.DataType
	Value types.NodeData
}

// UIAction is one user interaction the host forwards into a node's
// handle_ui_action: either a field edit (FieldName/Value) or a
// button-style command (Command).
type UIAction struct {
	FieldName string
	Value     types.NodeData
	Command   string
}

// ParameterChange is one parameter mutation handle_ui_action reports back;
// the caller applies it through the Graph Store's SetParameter so the
// change is tracked and the node marked dirty like any other edit.
type ParameterChange struct {
	Name  string
	Value types.NodeData
}

// ViewportManipulation is one camera gesture the host forwards to a
// ViewportCapable node's HandleViewportCamera, e.g. an orbit/pan/zoom
// delta originating in the 3D viewport panel.
type ViewportManipulation struct {
	Kind   string
	DX, DY float64
	Delta  float64
}

// BaseHandle implements every bookkeeping-only member of PluginNodeHandle
// (id, position, parameter storage, and no-op UI hooks) so a node
// implementation can embed it and write only Process. This is the
// host-supplied half of the vtable the plugin boundary hands back through
// create_node: the host owns identity and generic storage, the plugin
// supplies domain behavior.
type BaseHandle struct {
	mu         sync.Mutex
	id         ids.NodeID
	position   types.Vec3
	parameters map[string]types.NodeData
}

// NewBaseHandle returns a *BaseHandle seeded with position and parameters
// (parameters is not cloned; pass a fresh map).
func NewBaseHandle(position types.Vec3, parameters map[string]types.NodeData) *BaseHandle {
	if parameters == nil {
		parameters = make(map[string]types.NodeData)
	}
	return &BaseHandle{position: position, parameters: parameters}
}

// ID returns the NodeID the Graph Store assigned this handle, or the zero
// value before insertion.
func (h *BaseHandle) ID() ids.NodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// SetID is called once by the Graph Store's AddNode, since create_node
// runs before the node has an identity to report.
func (h *BaseHandle) SetID(id ids.NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = id
}

// Position returns the handle's last known position.
func (h *BaseHandle) Position() types.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// SetPosition updates the handle's position, mirroring the Graph Store's
// authoritative graph.Node.Position so parameter-panel and viewport code
// can read a node's location straight off its handle.
func (h *BaseHandle) SetPosition(p types.Vec3) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = p
}

// GetParameter returns the named parameter and whether it is set.
func (h *BaseHandle) GetParameter(name string) (types.NodeData, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.parameters[name]
	return v, ok
}

// SetParameter sets the named parameter.
func (h *BaseHandle) SetParameter(name string, value types.NodeData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.parameters == nil {
		h.parameters = make(map[string]types.NodeData)
	}
	h.parameters[name] = value
}

// ParameterUI returns nil: a node with no custom editor renders as a bare
// stack of its default parameter fields, which the embedder is free to
// override.
func (h *BaseHandle) ParameterUI() []ParameterField { return nil }

// HandleUIAction reports no changes. Node implementations that accept UI
// actions override this.
func (h *BaseHandle) HandleUIAction(UIAction) []ParameterChange { return nil }
