// Package interaction is the Interaction State Machine (spec.md §4.6): it
// turns raw pointer/keyboard gestures into Graph Store and View mutations
// through an explicit state enum (Idle/Panning/DraggingNodes/
// BoxSelecting/Connecting/Cutting) rather than ad hoc boolean flags, the
// same "one state, one set of valid transitions" shape the original
// editor's InteractionManager used for drag/box-select bookkeeping,
// generalized here to also own connection authoring and cutting.
package interaction

import (
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/layout"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

// State is the interaction gesture currently in progress.
type State int

const (
	Idle State = iota
	Panning
	DraggingNodes
	BoxSelecting
	Connecting
	Cutting
)

// String renders the State for logs and debug overlay text.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case DraggingNodes:
		return "dragging_nodes"
	case BoxSelecting:
		return "box_selecting"
	case Connecting:
		return "connecting"
	case Cutting:
		return "cutting"
	default:
		return "unknown"
	}
}

const (
	portHitRadius         = 10.0
	portHitRadiusExpanded = 26.0
	connectionHitTolerance = 6.0
)

// PanelPinner is the narrow view of the Panel Manager the drag gesture
// needs: pin/unpin one node's panel. Taken as an interface rather than an
// import of package panel so a headless caller (a test, or an engine-only
// batch use of the Machine) is never forced to construct one.
type PanelPinner interface {
	Pin(id ids.NodeID, pinned bool)
}

// Machine drives one Navigator's active graph level through pointer and
// keyboard gestures.
type Machine struct {
	nav   *view.Navigator
	state State

	selectedNodes       map[ids.NodeID]bool
	selectedConnections map[int]bool

	dragAnchor  view.Point
	dragOffsets map[ids.NodeID]view.Point
	panels      PanelPinner

	boxStart, boxEnd view.Point

	connectFrom    ids.PortRef
	connectHasFrom bool
	hoverPort      ids.PortRef
	hoverPortValid bool

	cutPoints []view.Point

	freehandConnect bool
	debugOverlay    bool
}

// NewMachine returns an idle Machine operating over nav's active graph
// level at construction time. The Machine always reads the graph level
// through nav, so it follows Navigator.Enter/Exit automatically.
func NewMachine(nav *view.Navigator) *Machine {
	return &Machine{
		nav:                 nav,
		selectedNodes:       make(map[ids.NodeID]bool),
		selectedConnections: make(map[int]bool),
	}
}

// SetPanelPinner wires the Panel Manager EndDrag pins dragged nodes'
// panels into. Optional: a Machine with none set simply skips pinning.
func (m *Machine) SetPanelPinner(p PanelPinner) {
	m.panels = p
}

func (m *Machine) store() *graph.Store { return m.nav.ActiveGraph() }

// State returns the gesture currently in progress.
func (m *Machine) State() State { return m.state }

// SelectedNodes returns the currently selected node ids, in no particular
// order.
func (m *Machine) SelectedNodes() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(m.selectedNodes))
	for id := range m.selectedNodes {
		out = append(out, id)
	}
	return out
}

// SelectedConnections returns the currently selected connection indices.
func (m *Machine) SelectedConnections() []int {
	out := make([]int, 0, len(m.selectedConnections))
	for idx := range m.selectedConnections {
		out = append(out, idx)
	}
	return out
}

// SelectNode selects id. If multi is false, any other selection is
// cleared first; if multi is true, id's membership in the selection is
// toggled.
func (m *Machine) SelectNode(id ids.NodeID, multi bool) {
	if !multi {
		m.ClearSelection()
		m.selectedNodes[id] = true
		return
	}
	if m.selectedNodes[id] {
		delete(m.selectedNodes, id)
	} else {
		m.selectedNodes[id] = true
	}
}

// SelectConnection selects the connection at idx, following the same
// multi-select toggle rule as SelectNode. Selecting a connection always
// clears node selection, matching the original editor's behavior that the
// two selection kinds are mutually exclusive.
func (m *Machine) SelectConnection(idx int, multi bool) {
	m.selectedNodes = make(map[ids.NodeID]bool)
	if !multi {
		m.selectedConnections = make(map[int]bool)
		m.selectedConnections[idx] = true
		return
	}
	if m.selectedConnections[idx] {
		delete(m.selectedConnections, idx)
	} else {
		m.selectedConnections[idx] = true
	}
}

// ClearSelection empties both selection sets.
func (m *Machine) ClearSelection() {
	m.selectedNodes = make(map[ids.NodeID]bool)
	m.selectedConnections = make(map[int]bool)
}

// HitTestNode returns a node whose rect contains world, if any. Nodes are
// checked in the Graph Store's Nodes() order (ascending NodeID), so where
// nodes overlap the one with the lowest NodeID wins; draw order is not
// taken into account.
func (m *Machine) HitTestNode(world view.Point) (ids.NodeID, bool) {
	for _, n := range m.store().Nodes() {
		x0, y0, x1, y1 := layout.NodeRect(n)
		if world.X >= x0 && world.X <= x1 && world.Y >= y0 && world.Y <= y1 {
			return n.ID, true
		}
	}
	return ids.Zero, false
}

// HitTestPort returns the nearest port within hit radius of world. The
// radius is expanded while Connecting, so completing a connection doesn't
// require pixel-perfect aim at the target port.
func (m *Machine) HitTestPort(world view.Point) (ids.PortRef, bool) {
	radius := portHitRadius
	if m.state == Connecting {
		radius = portHitRadiusExpanded
	}

	var best ids.PortRef
	found := false
	bestDist := radius * radius
	for _, n := range m.store().Nodes() {
		test := func(dir ids.Direction, count int) {
			for i := 0; i < count; i++ {
				idx := ids.PortIndex(i)
				pos := layout.PortWorldPos(n, dir, idx)
				dx, dy := pos.X-world.X, pos.Y-world.Y
				d2 := dx*dx + dy*dy
				if d2 <= bestDist {
					bestDist = d2
					best = ids.PortRef{Node: n.ID, Index: idx, Direction: dir}
					found = true
				}
			}
		}
		test(ids.Input, len(n.Inputs))
		test(ids.Output, len(n.Outputs))
	}
	return best, found
}

// HitTestConnection returns the index of the connection whose curve
// passes within connectionHitTolerance of world, sampling each candidate
// curve the same way cut-line intersection does.
func (m *Machine) HitTestConnection(world view.Point) (int, bool) {
	zoom := m.nav.ActiveCamera().Zoom
	for idx, c := range m.store().Connections() {
		from, to, ok := m.connectionEndpoints(c)
		if !ok {
			continue
		}
		samples := layout.BezierSamples(from, to, zoom, 20)
		for i := 0; i+1 < len(samples); i++ {
			a := view.Point{X: samples[i].X, Y: samples[i].Y}
			b := view.Point{X: samples[i+1].X, Y: samples[i+1].Y}
			if pointNearSegment(world, a, b, connectionHitTolerance) {
				return idx, true
			}
		}
	}
	return 0, false
}

func (m *Machine) connectionEndpoints(c graph.Connection) (from, to types.Vec3, ok bool) {
	fromNode := m.store().Get(c.FromNode)
	toNode := m.store().Get(c.ToNode)
	if fromNode == nil || toNode == nil {
		return from, to, false
	}
	from = layout.PortWorldPos(fromNode, ids.Output, c.FromOutput)
	to = layout.PortWorldPos(toNode, ids.Input, c.ToInput)
	return from, to, true
}
