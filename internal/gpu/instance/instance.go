// Package instance is the GPU Instance Builder (spec.md §4.9): it turns
// the current Graph Store + View state into flat per-node, per-port and
// per-connection instance arrays the Renderer uploads as-is into GPU
// instance buffers. It never issues a draw call itself; NeedsFullRebuild
// is the only signal the Renderer needs to know whether to re-upload.
package instance

import (
	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/interaction"
	"github.com/nodeloom/core/internal/layout"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

// PortBorderState is the tri-state visual treatment a port's border takes
// while a connection gesture is in progress (supplements spec.md §4.9
// with the original editor's hover-vs-connecting port coloring, which the
// distilled spec did not carry over).
type PortBorderState int

const (
	// PortBorderNormal is a port's resting appearance.
	PortBorderNormal PortBorderState = iota
	// PortBorderHover is a port under the cursor with no gesture active.
	PortBorderHover
	// PortBorderConnectable is a port under the cursor during a Connecting
	// gesture that would form a valid connection.
	PortBorderConnectable
	// PortBorderIncompatible is a port under the cursor during a
	// Connecting gesture that would NOT form a valid connection (same
	// direction, or same node).
	PortBorderIncompatible
)

// NodeInstance is one GPU instance record for a node's body quad. The
// fragment shader draws it as three concentric rounded rectangles — border,
// bevel, background — each of the two inner layers filled with a vertical
// gradient (spec.md §4.9), so each carries a top and bottom color rather
// than one flat fill.
type NodeInstance struct {
	Node         ids.NodeID
	X, Y         float64
	W, H         float64
	CornerRadius float64
	BorderColor  types.RGBA
	BevelTop     types.RGBA
	BevelBottom  types.RGBA
	BgTop        types.RGBA
	BgBottom     types.RGBA
	Selected     bool
}

// PortInstance is one GPU instance record for a port marker, drawn as three
// concentric disks (border, bevel, background) the same way a node is drawn
// as three concentric rectangles.
type PortInstance struct {
	Ref         ids.PortRef
	X, Y        float64
	Radius      float64
	Type        types.DataType
	Direction   ids.Direction
	BorderState PortBorderState
	BorderColor types.RGBA
	BevelColor  types.RGBA
	BgColor     types.RGBA
}

// ConnectionInstance is one GPU instance record for a connection curve,
// carried as its sampled polyline points rather than raw endpoints so the
// vertex shader does not need to re-evaluate the bezier per frame.
type ConnectionInstance struct {
	Index    int
	Points   []types.Vec3
	Color    types.RGBA
	Selected bool
	Hover    bool
}

// Frame is the complete instance snapshot the Renderer consumes for one
// draw. It is rebuilt wholesale when NeedsFullRebuild is set, or reused
// unchanged otherwise.
type Frame struct {
	Nodes       []NodeInstance
	Ports       []PortInstance
	Connections []ConnectionInstance
}

// Builder tracks whether the current Frame is stale and rebuilds it from
// a graph.Store, view.Navigator and interaction.Machine on demand.
type Builder struct {
	needsFullRebuild bool
	frame            Frame
}

// New returns a Builder that will rebuild on its first Frame call.
func New() *Builder {
	return &Builder{needsFullRebuild: true}
}

// Invalidate marks the current Frame stale. The Editor facade calls this
// from every event of the root Graph Store. Changes to a Camera's pan/zoom
// do not call it, and neither do events of a subgraph's Store.
func (b *Builder) Invalidate() {
	b.needsFullRebuild = true
}

// NeedsFullRebuild reports whether the next Frame call will recompute
// every instance array from scratch rather than returning the cached one.
func (b *Builder) NeedsFullRebuild() bool {
	return b.needsFullRebuild
}

// Build returns the current Frame, rebuilding it first if stale.
func (b *Builder) Build(nav *view.Navigator, m *interaction.Machine) Frame {
	if !b.needsFullRebuild {
		return b.frame
	}

	store := nav.ActiveGraph()
	cam := nav.ActiveCamera()
	selectedNodes := toSet(m.SelectedNodes())
	selectedConns := toIntSet(m.SelectedConnections())
	hoverRef, hoverValid, connecting := m.HoverPort()

	nodes := store.Nodes()
	nodeInstances := make([]NodeInstance, 0, len(nodes))
	portInstances := make([]PortInstance, 0, len(nodes)*4)

	for _, n := range nodes {
		x0, y0, x1, y1 := layout.NodeRect(n)
		selected := selectedNodes[n.ID]
		bevelTop, bevelBottom, bgTop, bgBottom := nodeGradient(n.Color)
		nodeInstances = append(nodeInstances, NodeInstance{
			Node:         n.ID,
			X:            x0,
			Y:            y0,
			W:            x1 - x0,
			H:            y1 - y0,
			CornerRadius: nodeCornerRadius,
			BorderColor:  nodeBorderColor(selected),
			BevelTop:     bevelTop,
			BevelBottom:  bevelBottom,
			BgTop:        bgTop,
			BgBottom:     bgBottom,
			Selected:     selected,
		})

		appendPorts(&portInstances, n, ids.Input, hoverRef, hoverValid, connecting)
		appendPorts(&portInstances, n, ids.Output, hoverRef, hoverValid, connecting)
	}

	conns := store.Connections()
	connInstances := make([]ConnectionInstance, 0, len(conns))
	for idx, c := range conns {
		fromNode := store.Get(c.FromNode)
		toNode := store.Get(c.ToNode)
		if fromNode == nil || toNode == nil {
			continue
		}
		from := layout.PortWorldPos(fromNode, ids.Output, c.FromOutput)
		to := layout.PortWorldPos(toNode, ids.Input, c.ToInput)
		selected := selectedConns[idx]
		connInstances = append(connInstances, ConnectionInstance{
			Index:    idx,
			Points:   layout.BezierSamples(from, to, cam.Zoom, 20),
			Color:    connectionColor(selected, false),
			Selected: selected,
			// Cursor-proximity hover has no dedicated gesture yet; the field
			// exists so the renderer's shader input is already shaped for it.
			Hover: false,
		})
	}

	b.frame = Frame{Nodes: nodeInstances, Ports: portInstances, Connections: connInstances}
	b.needsFullRebuild = false
	return b.frame
}

func appendPorts(out *[]PortInstance, n *graph.Node, dir ids.Direction, hover ids.PortRef, hoverValid, connecting bool) {
	count := len(n.Inputs)
	getType := func(i int) types.DataType { return n.Inputs[i].Type }
	if dir == ids.Output {
		count = len(n.Outputs)
		getType = func(i int) types.DataType { return n.Outputs[i].Type }
	}
	for i := 0; i < count; i++ {
		idx := ids.PortIndex(i)
		pos := layout.PortWorldPos(n, dir, idx)
		ref := ids.PortRef{Node: n.ID, Index: idx, Direction: dir}
		state := PortBorderNormal
		if ref == hover {
			switch {
			case connecting && hoverValid:
				state = PortBorderConnectable
			case connecting && !hoverValid:
				state = PortBorderIncompatible
			default:
				state = PortBorderHover
			}
		}
		*out = append(*out, PortInstance{
			Ref:         ref,
			X:           pos.X,
			Y:           pos.Y,
			Radius:      portRadius,
			Type:        getType(i),
			Direction:   dir,
			BorderState: state,
			BorderColor: portBorderColor(state),
			BevelColor:  portBevelColor,
			BgColor:     dataTypeColor(getType(i)),
		})
	}
}

// nodeCornerRadius and portRadius are base-pixel sizes; the GPU callback
// scales both by the active zoom in the vertex shader (spec.md §4.10), so
// the instance builder never has to know the current zoom to size them.
const (
	nodeCornerRadius = 6.0
	portRadius       = 5.0
)

// defaultNodeColor is the background tint a node without a metadata Color
// (the zero RGBA) renders with, so an unstyled node type is still legible
// rather than drawing as pure black.
var defaultNodeColor = types.RGBA{R: 0.24, G: 0.24, B: 0.27, A: 1}

// portBevelColor is shared by every port regardless of data type; only the
// background disk varies by type.
var portBevelColor = types.RGBA{R: 0.32, G: 0.32, B: 0.35, A: 1}

// nodeBorderColor is selection-dependent (spec.md §4.9): a selected node's
// border switches to the accent color used across the editor's selection
// highlighting.
func nodeBorderColor(selected bool) types.RGBA {
	if selected {
		return types.RGBA{R: 0.95, G: 0.65, B: 0.2, A: 1}
	}
	return types.RGBA{R: 0.08, G: 0.08, B: 0.09, A: 1}
}

// nodeGradient derives a node's bevel and background layer colors from its
// base tint. base is typically the node type's configured metadata color;
// the zero value falls back to defaultNodeColor.
func nodeGradient(base types.RGBA) (bevelTop, bevelBottom, bgTop, bgBottom types.RGBA) {
	if base == (types.RGBA{}) {
		base = defaultNodeColor
	}
	return shade(base, 0.16), shade(base, -0.10), shade(base, 0.03), shade(base, -0.08)
}

// portBorderColor is state-dependent (spec.md §4.9): normal, hover,
// connecting-compatible, or connecting-incompatible.
func portBorderColor(state PortBorderState) types.RGBA {
	switch state {
	case PortBorderHover:
		return types.RGBA{R: 1, G: 1, B: 1, A: 1}
	case PortBorderConnectable:
		return types.RGBA{R: 0.4, G: 0.9, B: 0.4, A: 1}
	case PortBorderIncompatible:
		return types.RGBA{R: 0.9, G: 0.3, B: 0.3, A: 1}
	default:
		return types.RGBA{R: 0.15, G: 0.15, B: 0.15, A: 1}
	}
}

// connectionColor derives a connection's color from selection and hover
// state (spec.md §4.9); selection takes precedence over hover.
func connectionColor(selected, hover bool) types.RGBA {
	switch {
	case selected:
		return types.RGBA{R: 0.95, G: 0.65, B: 0.2, A: 1}
	case hover:
		return types.RGBA{R: 0.85, G: 0.85, B: 0.9, A: 1}
	default:
		return types.RGBA{R: 0.55, G: 0.55, B: 0.6, A: 1}
	}
}

// dataTypeColor returns a port's background disk color derived from its
// data type (spec.md §4.9), grouped so related types (the domain types
// Scene/Material/Light/Image) share a family hue.
func dataTypeColor(t types.DataType) types.RGBA {
	switch t {
	case types.Float, types.Integer:
		return types.RGBA{R: 0.53, G: 0.73, B: 0.94, A: 1}
	case types.Boolean:
		return types.RGBA{R: 0.85, G: 0.45, B: 0.45, A: 1}
	case types.Vector3:
		return types.RGBA{R: 0.94, G: 0.78, B: 0.35, A: 1}
	case types.Color:
		return types.RGBA{R: 0.85, G: 0.55, B: 0.85, A: 1}
	case types.String:
		return types.RGBA{R: 0.6, G: 0.85, B: 0.6, A: 1}
	case types.Scene, types.Material, types.Light, types.Image:
		return types.RGBA{R: 0.7, G: 0.7, B: 0.75, A: 1}
	case types.Opaque:
		return types.RGBA{R: 0.4, G: 0.4, B: 0.4, A: 1}
	default: // Any
		return types.RGBA{R: 0.8, G: 0.8, B: 0.8, A: 1}
	}
}

// shade lightens (positive amt) or darkens (negative amt) c by amt per
// channel, clamped to the valid 0..1 range.
func shade(c types.RGBA, amt float64) types.RGBA {
	return types.RGBA{R: clamp01(c.R + amt), G: clamp01(c.G + amt), B: clamp01(c.B + amt), A: c.A}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func toSet(nodeIDs []ids.NodeID) map[ids.NodeID]bool {
	m := make(map[ids.NodeID]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		m[id] = true
	}
	return m
}

func toIntSet(vals []int) map[int]bool {
	m := make(map[int]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
