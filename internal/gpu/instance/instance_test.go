package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/interaction"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

func TestBuildProducesOneInstancePerNodeAndConnection(t *testing.T) {
	s := graph.New()
	a := s.AddNode(&graph.Node{
		SizeHint: types.Vec3{X: 100, Y: 60},
		Outputs:  []types.PortDefinition{{Name: "out", Direction: ids.Output, Type: types.Float}},
	})
	b := s.AddNode(&graph.Node{
		Position: types.Vec3{X: 300, Y: 0},
		SizeHint: types.Vec3{X: 100, Y: 60},
		Inputs:   []types.PortDefinition{{Name: "in", Direction: ids.Input, Type: types.Float}},
	})
	_, err := s.AddConnection(graph.Connection{FromNode: a, ToNode: b, ToInput: 0}, graph.AddOptions{})
	require.NoError(t, err)

	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	b1 := New()

	frame := b1.Build(nav, m)
	assert.Len(t, frame.Nodes, 2)
	assert.Len(t, frame.Ports, 2) // one output on a, one input on b
	require.Len(t, frame.Connections, 1)
	assert.NotEmpty(t, frame.Connections[0].Points)
}

func TestBuildCachesUntilInvalidated(t *testing.T) {
	s := graph.New()
	s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	b := New()

	first := b.Build(nav, m)
	assert.False(t, b.NeedsFullRebuild())

	s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	// Build without Invalidate still returns the stale cached frame.
	stale := b.Build(nav, m)
	assert.Equal(t, len(first.Nodes), len(stale.Nodes))

	b.Invalidate()
	assert.True(t, b.NeedsFullRebuild())
	fresh := b.Build(nav, m)
	assert.Len(t, fresh.Nodes, 2)
}

func TestSelectedNodesAreMarkedInFrame(t *testing.T) {
	s := graph.New()
	a := s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	m.SelectNode(a, false)

	frame := New().Build(nav, m)
	require.Len(t, frame.Nodes, 1)
	assert.True(t, frame.Nodes[0].Selected)
}

func TestSelectedNodeGetsAccentBorderColor(t *testing.T) {
	s := graph.New()
	a := s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	b := s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	m.SelectNode(a, false)

	frame := New().Build(nav, m)
	byID := map[ids.NodeID]NodeInstance{}
	for _, n := range frame.Nodes {
		byID[n.Node] = n
	}

	assert.NotEqual(t, byID[a].BorderColor, byID[b].BorderColor)
	assert.Equal(t, nodeCornerRadius, byID[a].CornerRadius)
	assert.NotEqual(t, types.RGBA{}, byID[a].BgTop)
}

func TestPortInstanceCarriesRadiusAndDataTypeColor(t *testing.T) {
	s := graph.New()
	s.AddNode(&graph.Node{
		SizeHint: types.Vec3{X: 10, Y: 10},
		Outputs:  []types.PortDefinition{{Name: "out", Direction: ids.Output, Type: types.Vector3}},
	})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)

	frame := New().Build(nav, m)
	require.Len(t, frame.Ports, 1)
	port := frame.Ports[0]
	assert.Equal(t, portRadius, port.Radius)
	assert.Equal(t, ids.Output, port.Direction)
	assert.Equal(t, dataTypeColor(types.Vector3), port.BgColor)
}
