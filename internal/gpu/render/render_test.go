package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gg/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/nodeloom/core/internal/graph"
	"github.com/nodeloom/core/internal/gpu/instance"
	"github.com/nodeloom/core/internal/interaction"
	"github.com/nodeloom/core/internal/types"
	"github.com/nodeloom/core/internal/view"
)

// fakeDevice implements gpucontext.Device for testing, mirroring the
// method set ggcanvas's own mockDevice exercises.
type fakeDevice struct{ polled bool }

func (f *fakeDevice) Poll(wait bool) { f.polled = true }
func (f *fakeDevice) Destroy()       {}

// fakeQueue implements gpucontext.Queue for testing; the interface carries
// no methods this package calls directly yet, so an empty struct suffices.
type fakeQueue struct{}

type fakeProvider struct {
	device gpucontext.Device
	queue  gpucontext.Queue
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{device: &fakeDevice{}, queue: &fakeQueue{}}
}

func (p *fakeProvider) Device() gpucontext.Device             { return p.device }
func (p *fakeProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat { return TargetFormat }

// fakeAdapterDevice is a gpucontext.Device that also satisfies
// gpucore.GPUAdapter, standing in for a real backend's bridge type (e.g.
// backend/gogpu.GoGPUAdapter) so Init's type assertion succeeds and
// ensureCapacity/drawPipeline exercise the real buffer/shader-module path
// instead of the CPU-only bookkeeping one. Only the methods render.go
// actually calls do anything; the rest satisfy the interface with zero
// values, same as a minimal backend stub would.
type fakeAdapterDevice struct {
	shaderModules  []gpucore.ShaderModuleID
	destroyedMods  []gpucore.ShaderModuleID
	buffers        []gpucore.BufferID
	destroyedBufs  []gpucore.BufferID
	writes         []bufferWrite
	nextBufferID   gpucore.BufferID
	nextModuleID   gpucore.ShaderModuleID
	createErr      error
}

type bufferWrite struct {
	id     gpucore.BufferID
	offset uint64
	data   []byte
}

func (f *fakeAdapterDevice) Poll(wait bool) {}
func (f *fakeAdapterDevice) Destroy()       {}

func (f *fakeAdapterDevice) SupportsCompute() bool             { return false }
func (f *fakeAdapterDevice) MaxWorkgroupSize() [3]uint32       { return [3]uint32{} }
func (f *fakeAdapterDevice) MaxBufferSize() uint64             { return 1 << 30 }

func (f *fakeAdapterDevice) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if f.createErr != nil {
		return gpucore.InvalidID, f.createErr
	}
	f.nextModuleID++
	f.shaderModules = append(f.shaderModules, f.nextModuleID)
	return f.nextModuleID, nil
}
func (f *fakeAdapterDevice) DestroyShaderModule(id gpucore.ShaderModuleID) {
	f.destroyedMods = append(f.destroyedMods, id)
}

func (f *fakeAdapterDevice) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if f.createErr != nil {
		return gpucore.InvalidID, f.createErr
	}
	f.nextBufferID++
	f.buffers = append(f.buffers, f.nextBufferID)
	return f.nextBufferID, nil
}
func (f *fakeAdapterDevice) DestroyBuffer(id gpucore.BufferID) {
	f.destroyedBufs = append(f.destroyedBufs, id)
}
func (f *fakeAdapterDevice) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	f.writes = append(f.writes, bufferWrite{id: id, offset: offset, data: data})
}
func (f *fakeAdapterDevice) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	return nil, nil
}

func (f *fakeAdapterDevice) CreateTexture(width, height int, format gpucore.TextureFormat) (gpucore.TextureID, error) {
	return gpucore.InvalidID, nil
}
func (f *fakeAdapterDevice) DestroyTexture(id gpucore.TextureID) {}
func (f *fakeAdapterDevice) WriteTexture(id gpucore.TextureID, data []byte) {}
func (f *fakeAdapterDevice) ReadTexture(id gpucore.TextureID) ([]byte, error) { return nil, nil }

func (f *fakeAdapterDevice) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	return gpucore.InvalidID, nil
}
func (f *fakeAdapterDevice) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {}
func (f *fakeAdapterDevice) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	return gpucore.InvalidID, nil
}
func (f *fakeAdapterDevice) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {}
func (f *fakeAdapterDevice) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	return gpucore.InvalidID, nil
}
func (f *fakeAdapterDevice) DestroyComputePipeline(id gpucore.ComputePipelineID) {}
func (f *fakeAdapterDevice) CreateBindGroup(layout gpucore.BindGroupLayoutID, entries []gpucore.BindGroupEntry) (gpucore.BindGroupID, error) {
	return gpucore.InvalidID, nil
}
func (f *fakeAdapterDevice) DestroyBindGroup(id gpucore.BindGroupID) {}

func (f *fakeAdapterDevice) BeginComputePass() gpucore.ComputePassEncoder { return fakeComputePassEncoder{} }
func (f *fakeAdapterDevice) Submit()   {}
func (f *fakeAdapterDevice) WaitIdle() {}

type fakeComputePassEncoder struct{}

func (fakeComputePassEncoder) SetPipeline(pipeline gpucore.ComputePipelineID)    {}
func (fakeComputePassEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {}
func (fakeComputePassEncoder) Dispatch(x, y, z uint32)                          {}
func (fakeComputePassEncoder) End()                                             {}

func newFakeAdapterProvider() (*fakeProvider, *fakeAdapterDevice) {
	device := &fakeAdapterDevice{}
	return &fakeProvider{device: device, queue: &fakeQueue{}}, device
}

func TestNewRejectsNilProvider(t *testing.T) {
	r, err := New(nil)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestInitAcquiresDeviceAndQueue(t *testing.T) {
	p := newFakeProvider()
	r, err := New(p)
	require.NoError(t, err)

	require.NoError(t, r.Init())
	assert.True(t, r.initialized)
	assert.Same(t, p.device, r.device)
	assert.Same(t, p.queue, r.queue)

	// Init is idempotent; a second call must not re-validate the shader
	// or touch the lost-device flag.
	require.NoError(t, r.Init())
}

func TestPaintInitializesLazilyAndSucceedsWithoutAPipeline(t *testing.T) {
	r, err := New(newFakeProvider())
	require.NoError(t, err)

	s := graph.New()
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	frame := instance.New().Build(nav, m)

	err = r.Paint(frame, view.Camera{Zoom: 1}, 800, 600, 0, time.Second, false)
	require.NoError(t, err)
	assert.True(t, r.initialized)
}

func TestResetClearsDeviceLost(t *testing.T) {
	r, err := New(newFakeProvider())
	require.NoError(t, err)
	require.NoError(t, r.Init())

	r.deviceLost = true
	r.Reset()
	assert.False(t, r.deviceLost)
	assert.False(t, r.initialized)
}

func TestConnectionVertexCountSumsPoints(t *testing.T) {
	conns := []instance.ConnectionInstance{
		{Points: make([]types.Vec3, 20)},
		{Points: make([]types.Vec3, 5)},
	}
	assert.Equal(t, 25, connectionVertexCount(conns))
}

func TestPaintWithAdapterUploadsInstanceBuffers(t *testing.T) {
	provider, device := newFakeAdapterProvider()
	r, err := New(provider)
	require.NoError(t, err)
	require.NoError(t, r.Init())

	s := graph.New()
	s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	frame := instance.New().Build(nav, m)
	require.Len(t, frame.Nodes, 1)

	require.NoError(t, r.Paint(frame, view.Camera{Zoom: 1}, 800, 600, 0, time.Second, false))

	require.NotEmpty(t, device.shaderModules)
	require.NotEmpty(t, device.writes)
	nodeWrite := device.writes[0]
	assert.Equal(t, r.nodes.buffer, nodeWrite.id)
	assert.Equal(t, r.nodes.recordSize, len(nodeWrite.data))
	assert.NotEqual(t, gpucore.InvalidID, r.nodes.shaderModule)
	assert.NotEqual(t, gpucore.InvalidID, r.nodes.buffer)
}

func TestPaintWithAdapterSkipsEmptyPipelines(t *testing.T) {
	provider, device := newFakeAdapterProvider()
	r, err := New(provider)
	require.NoError(t, err)
	require.NoError(t, r.Init())

	s := graph.New()
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	frame := instance.New().Build(nav, m)

	require.NoError(t, r.Paint(frame, view.Camera{Zoom: 1}, 800, 600, 0, time.Second, false))

	assert.Equal(t, gpucore.InvalidID, r.nodes.buffer)
	assert.Empty(t, device.writes)
}

func TestResetReleasesAdapterResources(t *testing.T) {
	provider, device := newFakeAdapterProvider()
	r, err := New(provider)
	require.NoError(t, err)
	require.NoError(t, r.Init())

	s := graph.New()
	s.AddNode(&graph.Node{SizeHint: types.Vec3{X: 10, Y: 10}})
	nav := view.NewNavigator(s)
	m := interaction.NewMachine(nav)
	frame := instance.New().Build(nav, m)
	require.NoError(t, r.Paint(frame, view.Camera{Zoom: 1}, 800, 600, 0, time.Second, false))

	r.Reset()

	assert.NotEmpty(t, device.destroyedBufs)
	assert.NotEmpty(t, device.destroyedMods)
	assert.Nil(t, r.adapter)
}

func TestIdentityProducesIdentityMatrix(t *testing.T) {
	var m [16]float32
	identity(&m)
	for i := 0; i < 16; i++ {
		if i == 0 || i == 5 || i == 10 || i == 15 {
			assert.Equal(t, float32(1), m[i])
		} else {
			assert.Equal(t, float32(0), m[i])
		}
	}
}
