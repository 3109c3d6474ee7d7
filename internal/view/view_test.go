package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

func TestWorldScreenRoundTrip(t *testing.T) {
	cam := Camera{Pan: Point{X: 40, Y: -10}, Zoom: 2.5}
	world := Point{X: 12.5, Y: -3}
	screen := cam.WorldToScreen(world)
	back := cam.ScreenToWorld(screen)
	assert.InDelta(t, world.X, back.X, 1e-9)
	assert.InDelta(t, world.Y, back.Y, 1e-9)
}

func TestZoomAtPointKeepsPivotFixed(t *testing.T) {
	cam := NewCamera()
	cam.PanBy(Point{X: 100, Y: 50})
	pivot := Point{X: 200, Y: 150}
	worldUnderPivotBefore := cam.ScreenToWorld(pivot)

	cam.ZoomAtPoint(pivot, 2.0)

	worldUnderPivotAfter := cam.ScreenToWorld(pivot)
	assert.InDelta(t, worldUnderPivotBefore.X, worldUnderPivotAfter.X, 1e-9)
	assert.InDelta(t, worldUnderPivotBefore.Y, worldUnderPivotAfter.Y, 1e-9)
}

func TestZoomClampsToBounds(t *testing.T) {
	cam := NewCamera()
	cam.ZoomAtPoint(Point{}, 0.001)
	assert.Equal(t, MinZoom, cam.Zoom)

	cam2 := NewCamera()
	cam2.ZoomAtPoint(Point{}, 1000)
	assert.Equal(t, MaxZoom, cam2.Zoom)
}

func TestNavigatorEnterExit(t *testing.T) {
	root := graph.New()
	sub := graph.New()
	parent := &graph.Node{
		Inputs:   []types.PortDefinition{{Name: "in", Direction: ids.Input, Type: types.Float}},
		Subgraph: sub,
	}
	id := root.AddNode(parent)

	nav := NewNavigator(root)
	assert.True(t, nav.AtRoot())

	ok := nav.Enter(id)
	require.True(t, ok)
	assert.False(t, nav.AtRoot())
	assert.Same(t, sub, nav.ActiveGraph())

	exited, ok := nav.Exit()
	require.True(t, ok)
	assert.Equal(t, id, exited)
	assert.True(t, nav.AtRoot())
}

func TestNavigatorEnterRejectsNonSubgraphNode(t *testing.T) {
	root := graph.New()
	id := root.AddNode(&graph.Node{})
	nav := NewNavigator(root)
	assert.False(t, nav.Enter(id))
}

func TestFrameAllFitsEveryNode(t *testing.T) {
	root := graph.New()
	root.AddNode(&graph.Node{Position: types.Vec3{X: 0, Y: 0}, SizeHint: types.Vec3{X: 100, Y: 50}})
	root.AddNode(&graph.Node{Position: types.Vec3{X: 500, Y: 300}, SizeHint: types.Vec3{X: 100, Y: 50}})

	nav := NewNavigator(root)
	nav.FrameAll(800, 600, 0.1)

	cam := nav.ActiveCamera()
	assert.GreaterOrEqual(t, cam.Zoom, MinZoom)
	assert.LessOrEqual(t, cam.Zoom, MaxZoom)
	for _, corner := range []Point{{X: 0, Y: 0}, {X: 600, Y: 350}} {
		s := cam.WorldToScreen(corner)
		assert.True(t, s.X >= 0 && s.X <= 800 && s.Y >= 0 && s.Y <= 600, "corner %v maps to %v", corner, s)
	}
}
