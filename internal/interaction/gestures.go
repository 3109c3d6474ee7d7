package interaction

import (
	"math"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/layout"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

// BeginDrag starts DraggingNodes: every selected node's offset from anchor
// is recorded so UpdateDrag can move the whole selection rigidly.
func (m *Machine) BeginDrag(anchor view.Point) {
	m.state = DraggingNodes
	m.dragAnchor = anchor
	m.dragOffsets = make(map[ids.NodeID]view.Point)
	for id := range m.selectedNodes {
		if n := m.store().Get(id); n != nil {
			m.dragOffsets[id] = view.Point{X: n.Position.X - anchor.X, Y: n.Position.Y - anchor.Y}
		}
	}
}

// UpdateDrag moves every dragged node so it keeps its recorded offset from
// current. A node removed mid-drag (by another actor) is silently skipped.
func (m *Machine) UpdateDrag(current view.Point) {
	for id, offset := range m.dragOffsets {
		if n := m.store().Get(id); n != nil {
			n.Position.X = current.X + offset.X
			n.Position.Y = current.Y + offset.Y
		}
	}
}

// EndDrag ends DraggingNodes. Every dragged node's panel, if it has one
// open, is pinned: the Panel Manager's doc puts it as "dragging a panel
// away from its owning node's default position implicitly pins it" — an
// unpinned stacked panel would otherwise silently reflow as other panels
// open and close around it.
func (m *Machine) EndDrag() {
	if m.panels != nil {
		for id := range m.dragOffsets {
			m.panels.Pin(id, true)
		}
	}
	m.dragOffsets = nil
	m.state = Idle
}

// BeginPan starts Panning. The Machine does not itself track the pan
// anchor — panning mutates the active Camera directly through
// Navigator.ActiveCamera().PanBy, called by the caller's event loop on
// every pointer move.
func (m *Machine) BeginPan() { m.state = Panning }

// EndPan ends Panning.
func (m *Machine) EndPan() { m.state = Idle }

// BeginBoxSelect starts BoxSelecting at start.
func (m *Machine) BeginBoxSelect(start view.Point) {
	m.state = BoxSelecting
	m.boxStart = start
	m.boxEnd = start
}

// UpdateBoxSelect grows the selection box to current.
func (m *Machine) UpdateBoxSelect(current view.Point) {
	m.boxEnd = current
}

// BoxSelectionPreview returns the nodes currently intersecting the
// in-progress selection box, for live highlighting while dragging.
func (m *Machine) BoxSelectionPreview() []ids.NodeID {
	x0, y0, x1, y1 := boxBounds(m.boxStart, m.boxEnd)
	var out []ids.NodeID
	for _, n := range m.store().Nodes() {
		nx0, ny0, nx1, ny1 := rectOf(n)
		if rectsIntersect(nx0, ny0, nx1, ny1, x0, y0, x1, y1) {
			out = append(out, n.ID)
		}
	}
	return out
}

// EndBoxSelect finalizes BoxSelecting: every node rect and every
// connection curve intersecting the box is added to the selection (or
// replaces it, if multi is false), and the Machine returns to Idle.
func (m *Machine) EndBoxSelect(multi bool) {
	x0, y0, x1, y1 := boxBounds(m.boxStart, m.boxEnd)
	zoom := m.nav.ActiveCamera().Zoom

	var nodes []ids.NodeID
	for _, n := range m.store().Nodes() {
		nx0, ny0, nx1, ny1 := rectOf(n)
		if rectsIntersect(nx0, ny0, nx1, ny1, x0, y0, x1, y1) {
			nodes = append(nodes, n.ID)
		}
	}

	var conns []int
	for idx, c := range m.store().Connections() {
		from, to, ok := m.connectionEndpoints(c)
		if !ok {
			continue
		}
		if curveIntersectsBox(from, to, zoom, x0, y0, x1, y1) {
			conns = append(conns, idx)
		}
	}

	if !multi {
		m.ClearSelection()
	}
	for _, id := range nodes {
		m.selectedNodes[id] = true
	}
	for _, idx := range conns {
		m.selectedConnections[idx] = true
	}

	m.state = Idle
}

// BeginConnect starts Connecting from an output or input port. Spec.md
// §4.6 allows starting a connection from either endpoint; CompleteConnect
// resolves the direction pairing regardless of which side the gesture
// started from.
func (m *Machine) BeginConnect(from ids.PortRef) {
	m.state = Connecting
	m.connectFrom = from
	m.connectHasFrom = true
}

// UpdateConnectCursor re-runs port hit-testing at world and records
// whether the hovered port would form a valid connection with the
// in-progress one, for the tri-state hover/connecting border color the
// GPU Instance Builder renders.
func (m *Machine) UpdateConnectCursor(world view.Point) {
	port, ok := m.HitTestPort(world)
	m.hoverPort = port
	m.hoverPortValid = ok && m.connectHasFrom && portsConnectable(m.connectFrom, port)
}

// HoverPort returns the port currently under the cursor during Connecting,
// and whether it would accept the in-progress connection.
func (m *Machine) HoverPort() (ids.PortRef, bool, bool) {
	return m.hoverPort, m.hoverPortValid, m.state == Connecting
}

// CompleteConnect finishes Connecting by trying to add a connection
// between the gesture's origin port and to. It accepts origin and to in
// either output/input order. replace is forwarded to
// graph.Store.AddOptions.Replace. The Machine returns to Idle whether or
// not the connection succeeds; the error is returned so the caller can
// report it (interaction errors are otherwise silent per spec.md §7).
func (m *Machine) CompleteConnect(to ids.PortRef, replace bool) (int, error) {
	defer func() {
		m.connectHasFrom = false
		m.hoverPortValid = false
		m.state = Idle
	}()
	if !m.connectHasFrom {
		return 0, errNotConnecting
	}
	c, ok := connectionFromPorts(m.connectFrom, to)
	if !ok {
		return 0, errIncompatibleDirections
	}
	return m.store().AddConnection(c, graph.AddOptions{Replace: replace})
}

// CancelConnect abandons Connecting without adding anything.
func (m *Machine) CancelConnect() {
	m.connectHasFrom = false
	m.hoverPortValid = false
	m.state = Idle
}

// BeginCut starts Cutting at start.
func (m *Machine) BeginCut(start view.Point) {
	m.state = Cutting
	m.cutPoints = []view.Point{start}
}

// UpdateCut appends point to the in-progress cut polyline.
func (m *Machine) UpdateCut(point view.Point) {
	m.cutPoints = append(m.cutPoints, point)
}

// EndCut removes every connection whose curve crosses the cut polyline at
// least once, returning their (pre-removal) indices in descending order,
// the order in which it removes them so the list does not shift under it.
// Sampling each curve along 20 segments mirrors the original editor's box/line
// intersection check, generalized from a single segment to a full
// polyline.
func (m *Machine) EndCut() []int {
	zoom := m.nav.ActiveCamera().Zoom
	var hit []int
	for idx, c := range m.store().Connections() {
		from, to, ok := m.connectionEndpoints(c)
		if !ok {
			continue
		}
		samples := layoutBezierSamples(from, to, zoom)
		if polylineCrossesPolyline(m.cutPoints, samples) {
			hit = append(hit, idx)
		}
	}
	for i, j := 0, len(hit)-1; i < j; i, j = i+1, j-1 {
		hit[i], hit[j] = hit[j], hit[i]
	}
	for _, idx := range hit {
		m.store().RemoveConnection(idx)
	}
	m.cutPoints = nil
	m.state = Idle
	return hit
}

// DeleteSelection removes every selected node (cascading its connections)
// and every selected connection not already removed by a node deletion,
// then clears the selection.
func (m *Machine) DeleteSelection() {
	// Resolve selected indices to connections before node removal shifts
	// the connection list, then re-find each one that is still present.
	conns := m.store().Connections()
	var selected []graph.Connection
	for idx := range m.selectedConnections {
		if idx >= 0 && idx < len(conns) {
			selected = append(selected, conns[idx])
		}
	}
	for id := range m.selectedNodes {
		m.store().RemoveNode(id)
	}
	for _, c := range selected {
		for idx, cur := range m.store().Connections() {
			if cur == c {
				m.store().RemoveConnection(idx)
				break
			}
		}
	}
	m.ClearSelection()
}

// CancelCurrent aborts whatever gesture is in progress and returns to
// Idle. Idle itself is unaffected.
func (m *Machine) CancelCurrent() {
	switch m.state {
	case Connecting:
		m.CancelConnect()
	case Cutting:
		m.cutPoints = nil
		m.state = Idle
	case DraggingNodes:
		m.dragOffsets = nil
		m.state = Idle
	case BoxSelecting:
		m.state = Idle
	default:
		m.state = Idle
	}
}

// ToggleFreehandConnect flips between freehand connection authoring
// (the connection follows the pointer continuously and completes on
// release over a valid port) and click-to-click authoring (a click
// starts the gesture, a second click completes it) — a distinction the
// original editor's interaction model did not expose as a toggle but
// which its drag-based connection flow implicitly assumed; this adds the
// click-to-click alternative as an explicit mode. It returns the new
// value.
func (m *Machine) ToggleFreehandConnect() bool {
	m.freehandConnect = !m.freehandConnect
	return m.freehandConnect
}

// FreehandConnect reports the current connection authoring mode.
func (m *Machine) FreehandConnect() bool { return m.freehandConnect }

// ToggleConnectionCut toggles Cutting mode directly: if idle, begins an
// empty cut gesture; if already cutting, cancels it. Returns whether
// cutting mode is now active.
func (m *Machine) ToggleConnectionCut() bool {
	if m.state == Cutting {
		m.cutPoints = nil
		m.state = Idle
		return false
	}
	m.state = Cutting
	m.cutPoints = nil
	return true
}

// ToggleDebugOverlay flips the debug overlay flag (supplements spec.md
// §4.9/§4.10 with the original editor's wireframe/AABB debug pass) and
// returns its new value.
func (m *Machine) ToggleDebugOverlay() bool {
	m.debugOverlay = !m.debugOverlay
	return m.debugOverlay
}

// DebugOverlay reports whether the debug overlay is currently enabled.
func (m *Machine) DebugOverlay() bool { return m.debugOverlay }

// FrameAll forwards to the active Navigator, centralizing every keyboard
// action the Interaction State Machine dispatches in one place.
func (m *Machine) FrameAll(screenWidth, screenHeight, margin float64) {
	m.nav.FrameAll(screenWidth, screenHeight, margin)
}

func portsConnectable(a, b ids.PortRef) bool {
	_, ok := connectionFromPorts(a, b)
	return ok
}

// connectionFromPorts orders a and b into a Connection running output ->
// input, rejecting same-node and same-direction pairs (spec.md §4.6:
// self-connection and two ports of the same direction are never valid).
func connectionFromPorts(a, b ids.PortRef) (graph.Connection, bool) {
	if a.Node == b.Node || a.Direction == b.Direction {
		return graph.Connection{}, false
	}
	out, in := a, b
	if out.Direction != ids.Output {
		out, in = b, a
	}
	return graph.Connection{
		FromNode:   out.Node,
		FromOutput: out.Index,
		ToNode:     in.Node,
		ToInput:    in.Index,
	}, true
}

func rectOf(n *graph.Node) (x0, y0, x1, y1 float64) {
	return n.Position.X, n.Position.Y, n.Position.X + n.SizeHint.X, n.Position.Y + n.SizeHint.Y
}

func boxBounds(a, b view.Point) (x0, y0, x1, y1 float64) {
	return math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Max(a.X, b.X), math.Max(a.Y, b.Y)
}

func rectsIntersect(ax0, ay0, ax1, ay1, bx0, by0, bx1, by1 float64) bool {
	return ax0 <= bx1 && ax1 >= bx0 && ay0 <= by1 && ay1 >= by0
}

func curveIntersectsBox(from, to types.Vec3, zoom, x0, y0, x1, y1 float64) bool {
	samples := layoutBezierSamples(from, to, zoom)
	for _, p := range samples {
		if p.X >= x0 && p.X <= x1 && p.Y >= y0 && p.Y <= y1 {
			return true
		}
	}
	return false
}

func layoutBezierSamples(from, to types.Vec3, zoom float64) []view.Point {
	vs := layout.BezierSamples(from, to, zoom, 20)
	out := make([]view.Point, len(vs))
	for i, v := range vs {
		out[i] = view.Point{X: v.X, Y: v.Y}
	}
	return out
}

func polylineCrossesPolyline(a, b []view.Point) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 view.Point) bool {
	d1 := cross(p4, p3, p1)
	d2 := cross(p4, p3, p2)
	d3 := cross(p2, p1, p3)
	d4 := cross(p2, p1, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross(a, b, c view.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func pointNearSegment(p, a, b view.Point, tolerance float64) bool {
	abx, aby := b.X-a.X, b.Y-a.Y
	length2 := abx*abx + aby*aby
	if length2 == 0 {
		dx, dy := p.X-a.X, p.Y-a.Y
		return math.Hypot(dx, dy) <= tolerance
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / length2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closestX := a.X + t*abx
	closestY := a.Y + t*aby
	return math.Hypot(p.X-closestX, p.Y-closestY) <= tolerance
}

var (
	errNotConnecting          = &gestureError{"interaction: not in a connecting gesture"}
	errIncompatibleDirections = &gestureError{"interaction: ports are not a valid output/input pair"}
)

type gestureError struct{ msg string }

func (e *gestureError) Error() string { return e.msg }
