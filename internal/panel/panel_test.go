package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

func TestOpenNoneReturnsNil(t *testing.T) {
	m := New(600, 240)
	n := &graph.Node{ID: 1, PanelType: types.PanelNone}
	assert.Nil(t, m.Open(n))
}

func TestOpenStacksParameterPanels(t *testing.T) {
	m := New(600, 240)
	a := &graph.Node{ID: 1, PanelType: types.PanelParameter}
	b := &graph.Node{ID: 2, PanelType: types.PanelParameter}

	sa := m.Open(a)
	sb := m.Open(b)
	require.NotNil(t, sa)
	require.NotNil(t, sb)
	assert.Equal(t, 600.0, sa.Rect.X)
	assert.Equal(t, 600.0, sb.Rect.X)
	assert.Less(t, sa.Rect.Y, sb.Rect.Y)
}

func TestOpenIsIdempotent(t *testing.T) {
	m := New(600, 240)
	n := &graph.Node{ID: 1, PanelType: types.PanelParameter}
	first := m.Open(n)
	second := m.Open(n)
	assert.Same(t, first, second)
}

func TestCloseRespectsPinned(t *testing.T) {
	m := New(600, 240)
	n := &graph.Node{ID: 1, PanelType: types.PanelParameter}
	m.Open(n)
	m.Pin(ids.NodeID(1), true)
	m.Close(ids.NodeID(1))
	assert.True(t, m.Get(ids.NodeID(1)).Visible)
}

func TestDiscardRemovesRegardlessOfPin(t *testing.T) {
	m := New(600, 240)
	n := &graph.Node{ID: 1, PanelType: types.PanelParameter}
	m.Open(n)
	m.Pin(ids.NodeID(1), true)
	m.Discard(ids.NodeID(1))
	assert.Nil(t, m.Get(ids.NodeID(1)))
}

func TestVisibleOmitsClosedPanels(t *testing.T) {
	m := New(600, 240)
	a := &graph.Node{ID: 1, PanelType: types.PanelParameter}
	b := &graph.Node{ID: 2, PanelType: types.PanelParameter}
	m.Open(a)
	m.Open(b)
	m.Close(ids.NodeID(2))

	visible := m.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, ids.NodeID(1), visible[0].Node)
}
