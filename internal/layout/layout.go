// Package layout centralizes the node/port geometry formulas shared by the
// Interaction State Machine (hit-testing) and the GPU Instance Builder
// (instance placement), so the two never drift apart on where a port
// actually sits relative to its node.
package layout

import (
	"math"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

const (
	// PortMarginTop is the vertical offset from a node's top edge to its
	// first port.
	PortMarginTop = 32.0
	// PortSpacing is the vertical distance between consecutive ports on the
	// same edge.
	PortSpacing = 24.0
	// MinBezierOffset is the minimum control-point offset for a connection
	// curve, scaled by the active Camera's zoom.
	MinBezierOffset = 40.0
)

// NodeRect returns a node's axis-aligned bounding box in world space.
func NodeRect(n *graph.Node) (x0, y0, x1, y1 float64) {
	return n.Position.X, n.Position.Y, n.Position.X + n.SizeHint.X, n.Position.Y + n.SizeHint.Y
}

// PortWorldPos returns a port's anchor point in world space: input ports
// sit on a node's left edge, output ports on its right edge, evenly spaced
// top to bottom in port-index order.
func PortWorldPos(n *graph.Node, dir ids.Direction, idx ids.PortIndex) types.Vec3 {
	x := n.Position.X
	if dir == ids.Output {
		x = n.Position.X + n.SizeHint.X
	}
	y := n.Position.Y + PortMarginTop + float64(idx)*PortSpacing
	return types.Vec3{X: x, Y: y}
}

// BezierControlOffset is the vertical displacement applied to a
// connection curve's two control points: the larger of 40% of the
// vertical distance between endpoints and a minimum offset scaled by
// zoom, so curves between vertically close ports don't collapse into a
// near-straight line at low zoom.
func BezierControlOffset(fromY, toY, zoom float64) float64 {
	byDistance := math.Abs(toY-fromY) * 0.4
	byMinimum := MinBezierOffset * zoom
	if byDistance > byMinimum {
		return byDistance
	}
	return byMinimum
}

// BezierPoint evaluates the cubic connection curve from `from` to `to` at
// parameter t in [0, 1], using control points displaced vertically by
// offset (from's control point moves down, to's moves up — this is what
// gives a connection its characteristic S-curve regardless of relative
// node position).
func BezierPoint(from, to types.Vec3, t, offset float64) types.Vec3 {
	c1 := types.Vec3{X: from.X, Y: from.Y + offset}
	c2 := types.Vec3{X: to.X, Y: to.Y - offset}
	mt := 1 - t
	x := mt*mt*mt*from.X + 3*mt*mt*t*c1.X + 3*mt*t*t*c2.X + t*t*t*to.X
	y := mt*mt*mt*from.Y + 3*mt*mt*t*c1.Y + 3*mt*t*t*c2.Y + t*t*t*to.Y
	return types.Vec3{X: x, Y: y}
}

// BezierSamples returns n+1 evenly spaced points along the connection
// curve from `from` to `to`, at the given zoom level. n=20 matches the
// sampling density used for selection-box and cut-line intersection.
func BezierSamples(from, to types.Vec3, zoom float64, n int) []types.Vec3 {
	offset := BezierControlOffset(from.Y, to.Y, zoom)
	pts := make([]types.Vec3, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		pts[i] = BezierPoint(from, to, t, offset)
	}
	return pts
}
