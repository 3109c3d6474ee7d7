// Package view is the View/Navigation component (spec.md §4.7): per-graph-
// level camera state (pan and zoom), the screen/world coordinate
// transforms the Interaction State Machine and GPU Instance Builder both
// depend on, and the subgraph navigation stack. The pan/zoom formulas are
// carried over verbatim from the original editor's viewport model; only
// the surrounding composition (a stack of Cameras, one pushed per entered
// subgraph) is new.
package view

import (
	"math"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

const (
	// MinZoom and MaxZoom bound Camera.Zoom, matching the original
	// viewport's clamp(0.1, 5.0).
	MinZoom = 0.1
	MaxZoom = 5.0
)

// Point is a 2D screen or world coordinate.
type Point struct {
	X, Y float64
}

// Camera holds one graph level's pan/zoom state.
type Camera struct {
	Pan  Point
	Zoom float64
}

// NewCamera returns a Camera at the identity transform: no pan, zoom 1.
func NewCamera() Camera {
	return Camera{Pan: Point{0, 0}, Zoom: 1}
}

// WorldToScreen maps a world-space point to screen space under this
// Camera: world_pos * zoom + pan_offset.
func (c Camera) WorldToScreen(world Point) Point {
	return Point{
		X: world.X*c.Zoom + c.Pan.X,
		Y: world.Y*c.Zoom + c.Pan.Y,
	}
}

// ScreenToWorld maps a screen-space point back to world space:
// (screen_pos - pan_offset) / zoom.
func (c Camera) ScreenToWorld(screen Point) Point {
	return Point{
		X: (screen.X - c.Pan.X) / c.Zoom,
		Y: (screen.Y - c.Pan.Y) / c.Zoom,
	}
}

// PanBy translates the camera by delta in screen space.
func (c *Camera) PanBy(delta Point) {
	c.Pan.X += delta.X
	c.Pan.Y += delta.Y
}

// ZoomAtPoint scales Zoom by zoomDelta, clamped to [MinZoom, MaxZoom], and
// adjusts Pan so that screenPoint's world-space location stays fixed under
// the new zoom — the standard "zoom toward the cursor" formula.
func (c *Camera) ZoomAtPoint(screenPoint Point, zoomDelta float64) {
	oldZoom := c.Zoom
	newZoom := c.Zoom * zoomDelta
	if newZoom < MinZoom {
		newZoom = MinZoom
	}
	if newZoom > MaxZoom {
		newZoom = MaxZoom
	}
	c.Zoom = newZoom

	factor := c.Zoom / oldZoom
	c.Pan.X = screenPoint.X + (c.Pan.X-screenPoint.X)*factor
	c.Pan.Y = screenPoint.Y + (c.Pan.Y-screenPoint.Y)*factor
}

// GPUPanOffset returns Pan adjusted for the menu bar's screen-space height,
// the same correction the renderer's shared uniform buffer applies so
// world-space content is not drawn underneath the menu bar.
func (c Camera) GPUPanOffset(menuBarHeight float64) Point {
	return Point{X: c.Pan.X, Y: c.Pan.Y - menuBarHeight}
}

// frame is one entry in the navigation stack: the Camera for that level
// plus the subgraph node that was entered to reach it (Zero at the root).
type frame struct {
	camera Camera
	node   ids.NodeID
	store  *graph.Store
}

// Navigator owns the subgraph navigation stack and the active Camera for
// whichever level is on top of it.
type Navigator struct {
	stack []frame
}

// NewNavigator returns a Navigator positioned at root with a fresh Camera.
func NewNavigator(root *graph.Store) *Navigator {
	return &Navigator{stack: []frame{{camera: NewCamera(), node: ids.Zero, store: root}}}
}

// ActiveGraph returns the Store for the currently viewed level.
func (nv *Navigator) ActiveGraph() *graph.Store {
	return nv.stack[len(nv.stack)-1].store
}

// ActiveCamera returns a pointer to the current level's Camera, so callers
// can mutate pan/zoom in place.
func (nv *Navigator) ActiveCamera() *Camera {
	return &nv.stack[len(nv.stack)-1].camera
}

// Depth reports how many levels deep the navigation stack currently is;
// 0 means the root graph is active.
func (nv *Navigator) Depth() int {
	return len(nv.stack) - 1
}

// AtRoot reports whether the Navigator is viewing the root graph.
func (nv *Navigator) AtRoot() bool {
	return len(nv.stack) == 1
}

// Enter pushes a new navigation level for nodeID's subgraph, with a fresh
// Camera. It is a no-op if nodeID does not name a subgraph node in the
// currently active graph.
func (nv *Navigator) Enter(nodeID ids.NodeID) bool {
	node := nv.ActiveGraph().Get(nodeID)
	if node == nil || node.Subgraph == nil {
		return false
	}
	nv.stack = append(nv.stack, frame{camera: NewCamera(), node: nodeID, store: node.Subgraph})
	return true
}

// Exit pops the current navigation level, returning the subgraph node id
// that was active, or (ids.Zero, false) if already at root.
func (nv *Navigator) Exit() (ids.NodeID, bool) {
	if nv.AtRoot() {
		return ids.Zero, false
	}
	top := nv.stack[len(nv.stack)-1]
	nv.stack = nv.stack[:len(nv.stack)-1]
	return top.node, true
}

// GoToRoot pops every navigation level, returning to the root graph.
func (nv *Navigator) GoToRoot() {
	nv.stack = nv.stack[:1]
}

// FrameAll adjusts the active Camera so every node in the active graph is
// visible within a viewport of the given screen size, with a margin
// fraction applied on every side (0.1 means a 10% border). A graph with no
// nodes leaves the Camera unchanged.
func (nv *Navigator) FrameAll(screenWidth, screenHeight, margin float64) {
	nodes := nv.ActiveGraph().Nodes()
	if len(nodes) == 0 {
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		w, h := n.SizeHint.X, n.SizeHint.Y
		x0, y0 := n.Position.X, n.Position.Y
		x1, y1 := x0+w, y0+h
		minX, minY = math.Min(minX, x0), math.Min(minY, y0)
		maxX, maxY = math.Max(maxX, x1), math.Max(maxY, y1)
	}

	bboxW, bboxH := maxX-minX, maxY-minY
	if bboxW <= 0 {
		bboxW = 1
	}
	if bboxH <= 0 {
		bboxH = 1
	}

	availW := screenWidth * (1 - 2*margin)
	availH := screenHeight * (1 - 2*margin)

	zoom := math.Min(availW/bboxW, availH/bboxH)
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}

	centerX, centerY := (minX+maxX)/2, (minY+maxY)/2

	cam := nv.ActiveCamera()
	cam.Zoom = zoom
	cam.Pan = Point{
		X: screenWidth/2 - centerX*zoom,
		Y: screenHeight/2 - centerY*zoom,
	}
}

// NodeCenterWorld returns the world-space center point of a node (its
// Position plus half its SizeHint).
func NodeCenterWorld(n *graph.Node) types.Vec3 {
	return types.Vec3{
		X: n.Position.X + n.SizeHint.X/2,
		Y: n.Position.Y + n.SizeHint.Y/2,
	}
}
