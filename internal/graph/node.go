package graph

import (
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// State is a node's position in the execution lifecycle.
type State int

const (
	// Clean means the node's OutputCache entries reflect its current
	// parameters and upstream state.
	Clean State = iota
	// Dirty means the node must be re-evaluated before its outputs may be
	// trusted. This is the initial state of every newly inserted node.
	Dirty
	// Computing means the Execution Engine is currently evaluating the
	// node's process() call.
	Computing
	// Error means the node's last evaluation failed; its OutputCache
	// entries (if any) are stale and must not be read by downstream nodes.
	Error
)

// String renders the State for logs and debug badges.
func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Computing:
		return "computing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Node is the generic envelope the Graph Store owns for every node,
// regardless of whether it is a built-in or plugin-provided type. Domain
// logic lives behind Impl, reached only through the handle-based boundary
// described in the plugin package; the Graph Store never inspects it.
type Node struct {
	ID         ids.NodeID
	TypeID     string
	Name       string
	Parameters map[string]types.NodeData
	Position   types.Vec3
	SizeHint   types.Vec3
	Inputs     []types.PortDefinition
	Outputs    []types.PortDefinition
	PanelType  types.PanelType
	// Color is the node type's configured display tint (from its factory's
	// metadata), the base color the GPU Instance Builder derives a node's
	// bevel/background gradient from. The zero value means "unstyled" and
	// falls back to a neutral default.
	Color   types.RGBA
	Visible bool

	// Subgraph, when non-nil, makes this a subgraph node: it owns a nested
	// Graph Store that is edited and executed as its own graph level.
	Subgraph *Store

	// Impl is the plugin- or built-in-owned implementation handle for this
	// node. The Graph Store never dereferences its contents; it exists so
	// the Execution Engine can dispatch process() calls and the Plugin Host
	// can enforce "no unload while nodes exist".
	Impl any

	state State
}

// State returns the node's current execution state.
func (n *Node) State() State { return n.state }

// InputDefinition returns the PortDefinition for the given input index, or
// false if the index is out of range.
func (n *Node) InputDefinition(idx ids.PortIndex) (types.PortDefinition, bool) {
	if idx < 0 || int(idx) >= len(n.Inputs) {
		return types.PortDefinition{}, false
	}
	return n.Inputs[idx], true
}

// OutputDefinition returns the PortDefinition for the given output index, or
// false if the index is out of range.
func (n *Node) OutputDefinition(idx ids.PortIndex) (types.PortDefinition, bool) {
	if idx < 0 || int(idx) >= len(n.Outputs) {
		return types.PortDefinition{}, false
	}
	return n.Outputs[idx], true
}

// Connection is a directed edge from one node's output port to another
// node's input port.
type Connection struct {
	FromNode   ids.NodeID
	FromOutput ids.PortIndex
	ToNode     ids.NodeID
	ToInput    ids.PortIndex
}

// sameEndpoints reports whether c and other name the identical four-tuple.
func (c Connection) sameEndpoints(other Connection) bool {
	return c.FromNode == other.FromNode && c.FromOutput == other.FromOutput &&
		c.ToNode == other.ToNode && c.ToInput == other.ToInput
}
