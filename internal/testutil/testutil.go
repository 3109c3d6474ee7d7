// Package testutil provides small graph-construction helpers and a
// deterministic fake Processor/Factory pair shared across this module's
// package tests, mirroring the way the teacher's own testutil built fake
// runner/step harnesses rather than mocking framework internals directly.
package testutil

import (
	"context"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/registry"
	"github.com/nodeloom/core/internal/types"
)

// Port returns a simple named PortDefinition of the given type and
// direction, AllowMultiple false.
func Port(name string, dir ids.Direction, dt types.DataType) types.PortDefinition {
	return types.PortDefinition{Name: name, Direction: dir, Type: dt}
}

// NewNode builds a *graph.Node ready for Store.AddNode, with a single
// input and a single output of the given type.
func NewNode(typeID string, dt types.DataType) *graph.Node {
	return &graph.Node{
		TypeID:     typeID,
		Name:       typeID,
		Parameters: map[string]types.NodeData{},
		Inputs:     []types.PortDefinition{Port("in", ids.Input, dt)},
		Outputs:    []types.PortDefinition{Port("out", ids.Output, dt)},
		Visible:    true,
	}
}

// AddNode is a convenience wrapper: builds a node via NewNode and inserts
// it into store, returning the assigned id.
func AddNode(store *graph.Store, typeID string, dt types.DataType) ids.NodeID {
	return store.AddNode(NewNode(typeID, dt))
}

// Connect wires the sole output of `from` to the sole input of `to`.
func Connect(store *graph.Store, from, to ids.NodeID) (int, error) {
	return store.AddConnection(graph.Connection{
		FromNode: from, FromOutput: 0,
		ToNode: to, ToInput: 0,
	}, graph.AddOptions{})
}

// EchoProcessor is a fake node implementation that copies its sole input
// (or a fixed Value if it has none) to its sole output. It records every
// call it receives so tests can assert execution order and inputs seen.
// Embedding registry.BaseHandle makes it a full registry.PluginNodeHandle
// (id/position/parameters/UI) on top of the Process behavior below, so
// tests exercising the Registry/Factory path get a real handle, not a
// bare struct pointer.
type EchoProcessor struct {
	registry.BaseHandle
	Value  types.NodeData
	Calls  []map[ids.PortIndex]types.NodeData
	FailOn func(inputs map[ids.PortIndex]types.NodeData) error
	Panics bool
}

// Process implements engine.Processor.
func (p *EchoProcessor) Process(_ context.Context, inputs map[ids.PortIndex]types.NodeData, _ map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error) {
	p.Calls = append(p.Calls, inputs)
	if p.Panics {
		panic("testutil: EchoProcessor configured to panic")
	}
	if p.FailOn != nil {
		if err := p.FailOn(inputs); err != nil {
			return nil, err
		}
	}
	out := p.Value
	if v, ok := inputs[0]; ok {
		out = v
	}
	return map[ids.PortIndex]types.NodeData{0: out}, nil
}

// EchoFactory is a registry.Factory that produces nodes backed by a fresh
// *EchoProcessor. Tests can retrieve the processor a specific node got via
// LastImpl after CreateNode, since the Registry clones nothing about Impl.
type EchoFactory struct {
	TypeID    string
	InputType types.DataType
	LastImpl  *EchoProcessor
}

// Metadata implements registry.Factory.
func (f *EchoFactory) Metadata() registry.NodeMetadata {
	return registry.NodeMetadata{
		TypeID:      f.TypeID,
		DisplayName: f.TypeID,
		Inputs:      []types.PortDefinition{Port("in", ids.Input, f.InputType)},
		Outputs:     []types.PortDefinition{Port("out", ids.Output, f.InputType)},
	}
}

// CreateNode implements registry.Factory.
func (f *EchoFactory) CreateNode(pos types.Vec3) (registry.PluginNodeHandle, error) {
	f.LastImpl = &EchoProcessor{}
	f.LastImpl.SetPosition(pos)
	return f.LastImpl, nil
}
