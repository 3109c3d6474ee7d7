package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeloom/core/internal/ids"
	"github.com/nodeloom/core/internal/types"
)

// fakeHandle is a minimal PluginNodeHandle for tests that don't care about
// process() semantics, only that CreateNode produced something.
type fakeHandle struct{ *BaseHandle }

func (fakeHandle) Process(context.Context, map[ids.PortIndex]types.NodeData, map[string]types.NodeData) (map[ids.PortIndex]types.NodeData, error) {
	return nil, nil
}

type fakeFactory struct {
	meta      NodeMetadata
	createErr error
	lastPos   types.Vec3
}

func (f *fakeFactory) Metadata() NodeMetadata { return f.meta }

func (f *fakeFactory) CreateNode(pos types.Vec3) (PluginNodeHandle, error) {
	f.lastPos = pos
	if f.createErr != nil {
		return nil, f.createErr
	}
	return fakeHandle{NewBaseHandle(pos, nil)}, nil
}

func TestRegisterRejectsCollision(t *testing.T) {
	r := New()
	f := &fakeFactory{meta: NodeMetadata{TypeID: "a"}}
	require.NoError(t, r.Register("a", f))
	err := r.Register("a", f)
	assert.ErrorIs(t, err, ErrTypeIdCollision)
}

func TestCreateNodeClonesDefaultParametersAndPorts(t *testing.T) {
	r := New()
	f := &fakeFactory{meta: NodeMetadata{
		TypeID:            "const",
		DisplayName:       "Constant",
		Inputs:            []types.PortDefinition{{Name: "in", Direction: ids.Input, Type: types.Float}},
		Outputs:           []types.PortDefinition{{Name: "out", Direction: ids.Output, Type: types.Float}},
		DefaultParameters: map[string]types.NodeData{"value": types.Float64(1)},
	}}
	require.NoError(t, r.Register("const", f))

	n, err := r.CreateNode("const", types.Vec3{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, "Constant", n.Name)
	assert.Equal(t, types.Float64(1), n.Parameters["value"])
	assert.Equal(t, types.Vec3{X: 1, Y: 2}, f.lastPos)
	require.Len(t, n.Inputs, 1)
	require.Len(t, n.Outputs, 1)

	// mutating the returned node's parameters must not affect the factory's
	// own default map.
	n.Parameters["value"] = types.Float64(99)
	assert.Equal(t, types.Float64(1), f.meta.DefaultParameters["value"])
}

func TestCreateNodeUnknownType(t *testing.T) {
	r := New()
	_, err := r.CreateNode("missing", types.Vec3{})
	assert.Error(t, err)
}

func TestUnregisterRemovesFactory(t *testing.T) {
	r := New()
	f := &fakeFactory{meta: NodeMetadata{TypeID: "a"}}
	require.NoError(t, r.Register("a", f))
	r.Unregister("a")
	_, ok := r.Lookup("a")
	assert.False(t, ok)
}
