package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

func node(dt types.DataType) *Node {
	return &Node{
		Inputs:  []types.PortDefinition{{Name: "in", Direction: ids.Input, Type: dt}},
		Outputs: []types.PortDefinition{{Name: "out", Direction: ids.Output, Type: dt}},
	}
}

func TestAddNodeAssignsIdentityAndDirtyState(t *testing.T) {
	s := New()
	id := s.AddNode(node(types.Float))
	require.NotEqual(t, ids.Zero, id)

	got := s.Get(id)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, Dirty, got.State())
}

func TestAddNodeNeverReusesIDs(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	s.RemoveNode(a)
	b := s.AddNode(node(types.Float))
	assert.NotEqual(t, a, b)
}

func TestAddConnectionFanOut(t *testing.T) {
	s := New()
	src := s.AddNode(node(types.Float))
	left := s.AddNode(node(types.Float))
	right := s.AddNode(node(types.Float))
	sink := s.AddNode(node(types.Float))

	_, err := s.AddConnection(Connection{FromNode: src, ToNode: left, ToInput: 0}, AddOptions{})
	require.NoError(t, err)
	_, err = s.AddConnection(Connection{FromNode: src, ToNode: right, ToInput: 0}, AddOptions{})
	require.NoError(t, err)
	_, err = s.AddConnection(Connection{FromNode: left, ToNode: sink, ToInput: 0}, AddOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []ids.NodeID{left, right}, s.Downstream(src))
	assert.ElementsMatch(t, []ids.NodeID{src}, s.Upstream(left))
}

func TestAddConnectionRejectsCycle(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	b := s.AddNode(node(types.Float))

	_, err := s.AddConnection(Connection{FromNode: a, ToNode: b, ToInput: 0}, AddOptions{})
	require.NoError(t, err)

	_, err = s.AddConnection(Connection{FromNode: b, ToNode: a, ToInput: 0}, AddOptions{})
	assert.ErrorIs(t, err, ErrWouldCycle)
}

func TestAddConnectionRejectsSelfLoop(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	_, err := s.AddConnection(Connection{FromNode: a, ToNode: a, ToInput: 0}, AddOptions{})
	assert.ErrorIs(t, err, ErrWouldCycle)
}

func TestAddConnectionRejectsTypeMismatch(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	b := s.AddNode(node(types.String))
	_, err := s.AddConnection(Connection{FromNode: a, ToNode: b, ToInput: 0}, AddOptions{})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestAddConnectionOccupiedInputRequiresReplace(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	b := s.AddNode(node(types.Float))
	c := s.AddNode(node(types.Float))

	_, err := s.AddConnection(Connection{FromNode: a, ToNode: c, ToInput: 0}, AddOptions{})
	require.NoError(t, err)

	_, err = s.AddConnection(Connection{FromNode: b, ToNode: c, ToInput: 0}, AddOptions{})
	assert.ErrorIs(t, err, ErrInputOccupied)

	idx, err := s.AddConnection(Connection{FromNode: b, ToNode: c, ToInput: 0}, AddOptions{Replace: true})
	require.NoError(t, err)

	conns := s.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, b, conns[idx].FromNode)
}

func TestRemoveNodeCascadesConnections(t *testing.T) {
	s := New()
	a := s.AddNode(node(types.Float))
	b := s.AddNode(node(types.Float))
	_, err := s.AddConnection(Connection{FromNode: a, ToNode: b, ToInput: 0}, AddOptions{})
	require.NoError(t, err)

	s.RemoveNode(a)
	assert.Nil(t, s.Get(a))
	assert.Empty(t, s.Connections())
}

func TestEventsFireSynchronouslyBeforeReturn(t *testing.T) {
	s := New()
	var kinds []EventKind
	s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	id := s.AddNode(node(types.Float))
	require.Equal(t, []EventKind{NodeAdded}, kinds)

	s.SetParameter(id, "x", types.Float64(1))
	assert.Equal(t, []EventKind{NodeAdded, ParameterChanged}, kinds)
}

func TestSubscriberMayCallBackIntoReadOnlyQueries(t *testing.T) {
	s := New()
	var sawCount int
	s.Subscribe(func(ev Event) {
		if ev.Kind == NodeAdded {
			sawCount = s.NodeCount()
		}
	})
	s.AddNode(node(types.Float))
	assert.Equal(t, 1, sawCount)
}

func TestSetStateDoesNotEmit(t *testing.T) {
	s := New()
	id := s.AddNode(node(types.Float))
	var events int
	s.Subscribe(func(Event) { events++ })

	s.SetState(id, Clean)
	assert.Equal(t, 0, events)
	assert.Equal(t, Clean, s.Get(id).State())
}
