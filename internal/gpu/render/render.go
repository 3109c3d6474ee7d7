// Package render is the GPU Renderer & Callback (spec.md §4.10): it owns
// one instanced-draw pipeline per primitive kind (node bodies, port
// markers, connection curves), a shared per-frame uniform buffer, and the
// paint callback the host UI framework invokes once per frame. It
// receives its GPU device from the host through a gpucontext.DeviceProvider
// rather than creating one — the same "gg RECEIVES the device, it does
// NOT create one" boundary the gogpu-gg canvas integration draws, so this
// renderer can share GPU resources with the rest of the host application.
package render

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gg/gpucore"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	_ "github.com/gogpu/wgpu" // register the Pure Go WebGPU backend

	"github.com/nodeloom/core/internal/gpu/instance"
	"github.com/nodeloom/core/internal/view"
)

// TargetFormat is the render target pixel format every pipeline is built
// against; RGBA8Unorm matches what the rest of the gogpu stack defaults
// to for an offscreen or window surface target.
const TargetFormat = gputypes.TextureFormatRGBA8Unorm

//go:embed shaders/quad.wgsl
var quadShaderWGSL string

// Errors returned by Renderer, following the fail-soft convention the
// gogpu backends use: a caller can keep the app running in a degraded
// mode rather than crash out.
var (
	ErrNoDevice         = errors.New("render: nil DeviceProvider")
	ErrDeviceLost       = errors.New("render: GPU device lost")
	ErrInstanceOverflow = errors.New("render: instance buffer allocation failed")
)

// Uniforms is the shared per-frame uniform buffer layout every pipeline
// binds at group 0, binding 0. Its field order and types mirror
// shaders/quad.wgsl's Uniforms struct exactly.
type Uniforms struct {
	ViewMatrix    [16]float32
	PanOffset     [2]float32
	Zoom          float32
	Time          float32
	ScreenSize    [2]float32
	MenuBarHeight float32
	_pad          float32
}

// pipeline is the lazily-created GPU state for one primitive kind: a
// compiled shader module and a GPU-resident instance buffer, both created
// on first use and resized/rewritten as frame counts change. capacity
// tracks instance-buffer sizing in record counts, not bytes — recordSize
// (bytes per instance, fixed per pipeline kind) converts between the two.
type pipeline struct {
	kind         string
	shaderSource string
	recordSize   int
	shaderModule gpucore.ShaderModuleID
	buffer       gpucore.BufferID
	capacity     int
}

// Renderer draws one Frame's worth of instances per callback invocation.
type Renderer struct {
	provider gpucontext.DeviceProvider
	device   gpucontext.Device
	queue    gpucontext.Queue

	// adapter is the buffer/shader-module allocation surface a concrete
	// backend's device implements (github.com/gogpu/gg/gpucore.GPUAdapter,
	// bridged from gpucontext.Device the same way backend/gogpu.GoGPUAdapter
	// bridges gpu.Backend in the gogpu-gg integration). It is asserted out
	// of r.device rather than required, so a test double that only
	// implements gpucontext.Device (Poll/Destroy) still runs Paint in the
	// CPU-only bookkeeping mode this package always supported.
	adapter gpucore.GPUAdapter

	initialized bool
	deviceLost  bool

	nodes       pipeline
	ports       pipeline
	connections pipeline
	debugLines  pipeline

	uniforms Uniforms
}

// New returns a Renderer bound to provider. Init must be called before
// the first Paint.
func New(provider gpucontext.DeviceProvider) (*Renderer, error) {
	if provider == nil {
		return nil, ErrNoDevice
	}
	return &Renderer{
		provider:    provider,
		nodes:       pipeline{kind: "node", shaderSource: quadShaderWGSL, recordSize: recordSize(nodeRecord{})},
		ports:       pipeline{kind: "port", shaderSource: quadShaderWGSL, recordSize: recordSize(portRecord{})},
		connections: pipeline{kind: "connection", shaderSource: quadShaderWGSL, recordSize: recordSize(connectionVertexRecord{})},
		debugLines:  pipeline{kind: "debug", shaderSource: quadShaderWGSL, recordSize: recordSize(debugLineRecord{})},
	}, nil
}

// Init acquires the shared device and queue from the provider, and
// validates the shared quad shader by compiling it through naga (the
// same WGSL-to-SPIR-V path the Pure Go wgpu backend uses) so a malformed
// shader is caught here rather than on the first draw call. Pipeline
// objects themselves are created lazily on first Paint, once the
// instance counts (and therefore buffer sizes) are known.
func (r *Renderer) Init() error {
	if r.initialized {
		return nil
	}
	if _, err := naga.Compile(quadShaderWGSL); err != nil {
		return fmt.Errorf("render: shader validation failed: %w", err)
	}
	r.device = r.provider.Device()
	r.queue = r.provider.Queue()
	if a, ok := r.device.(gpucore.GPUAdapter); ok {
		r.adapter = a
	}
	r.initialized = true
	r.deviceLost = false
	return nil
}

// Paint draws one Frame. cam and screen dimensions build the shared
// Uniforms; elapsed feeds the Time field for any time-based shader
// effects (e.g. an animated "dirty" pulse on a Computing node, left to
// the shader). showDebugOverlay draws the wireframe/AABB pass over every
// node rect (supplements spec.md §4.10 with the original editor's debug
// overlay, which the distilled spec dropped).
//
// On a lost device, Paint draws nothing and returns ErrDeviceLost on
// every call until Reset is called; Init does not clear the lost state.
func (r *Renderer) Paint(frame instance.Frame, cam view.Camera, screenW, screenH float64, menuBarHeight float64, elapsed time.Duration, showDebugOverlay bool) error {
	if !r.initialized {
		if err := r.Init(); err != nil {
			return err
		}
	}
	if r.deviceLost {
		return ErrDeviceLost
	}

	r.uniforms = Uniforms{
		PanOffset:     [2]float32{float32(cam.Pan.X), float32(cam.Pan.Y)},
		Zoom:          float32(cam.Zoom),
		Time:          float32(elapsed.Seconds()),
		ScreenSize:    [2]float32{float32(screenW), float32(screenH)},
		MenuBarHeight: float32(menuBarHeight),
	}
	identity(&r.uniforms.ViewMatrix)

	if err := r.ensureCapacity(&r.nodes, len(frame.Nodes)); err != nil {
		return err
	}
	if err := r.ensureCapacity(&r.ports, len(frame.Ports)); err != nil {
		return err
	}
	if err := r.ensureCapacity(&r.connections, connectionVertexCount(frame.Connections)); err != nil {
		return err
	}

	if err := r.drawPipeline(&r.nodes, encodeNodes(frame.Nodes), len(frame.Nodes)); err != nil {
		return r.fallback(err)
	}
	if err := r.drawPipeline(&r.connections, encodeConnections(frame.Connections), connectionVertexCount(frame.Connections)); err != nil {
		return r.fallback(err)
	}
	if err := r.drawPipeline(&r.ports, encodePorts(frame.Ports), len(frame.Ports)); err != nil {
		return r.fallback(err)
	}
	if showDebugOverlay {
		if err := r.drawPipeline(&r.debugLines, encodeDebugLines(frame.Nodes), len(frame.Nodes)); err != nil {
			return r.fallback(err)
		}
	}
	return nil
}

// fallback marks the device lost on an unrecoverable GPU error so
// subsequent Paint calls short-circuit instead of repeating a failing
// draw every frame; a caller may still choose to Init again later (e.g.
// after a swapchain/surface reconfiguration) by resetting deviceLost.
func (r *Renderer) fallback(cause error) error {
	r.deviceLost = true
	return fmt.Errorf("%w: %v", ErrDeviceLost, cause)
}

// Reset clears the lost-device flag and releases every pipeline's GPU
// resources, so the next Paint retries GPU work from a clean slate. Call
// this after the host has recreated its surface/swapchain.
func (r *Renderer) Reset() {
	r.deviceLost = false
	r.initialized = false
	if r.adapter != nil {
		for _, p := range []*pipeline{&r.nodes, &r.ports, &r.connections, &r.debugLines} {
			r.releasePipeline(p)
		}
	}
	r.adapter = nil
}

func (r *Renderer) releasePipeline(p *pipeline) {
	if p.buffer != gpucore.InvalidID {
		r.adapter.DestroyBuffer(p.buffer)
		p.buffer = gpucore.InvalidID
	}
	if p.shaderModule != gpucore.InvalidID {
		r.adapter.DestroyShaderModule(p.shaderModule)
		p.shaderModule = gpucore.InvalidID
	}
	p.capacity = 0
}

// ensureCapacity grows p's GPU-resident instance buffer to hold count
// records, if r.adapter is available; a test double or headless device
// that only implements gpucontext.Device leaves r.adapter nil, and this
// degrades to the CPU-only capacity bookkeeping this package always did.
func (r *Renderer) ensureCapacity(p *pipeline, count int) error {
	if r.adapter == nil {
		if count > p.capacity {
			p.capacity = count
		}
		return nil
	}
	if p.shaderModule == gpucore.InvalidID {
		words, err := compileSPIRVWords(p.shaderSource)
		if err != nil {
			return fmt.Errorf("render: compile %s shader: %w", p.kind, err)
		}
		mod, err := r.adapter.CreateShaderModule(words, p.kind)
		if err != nil {
			return fmt.Errorf("render: create %s shader module: %w", p.kind, err)
		}
		p.shaderModule = mod
	}
	if count <= p.capacity && p.buffer != gpucore.InvalidID {
		return nil
	}
	if p.buffer != gpucore.InvalidID {
		r.adapter.DestroyBuffer(p.buffer)
	}
	size := count * p.recordSize
	if size == 0 {
		// A zero-size buffer request (an empty frame) leaves the buffer
		// unallocated; ensureCapacity is called again once instances exist.
		p.buffer = gpucore.InvalidID
		p.capacity = 0
		return nil
	}
	buf, err := r.adapter.CreateBuffer(size, gpucore.BufferUsageVertex|gpucore.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("%w: %s pipeline (%d bytes): %v", ErrInstanceOverflow, p.kind, size, err)
	}
	p.buffer = buf
	p.capacity = count
	return nil
}

// drawPipeline resizes p's buffer to fit count instances and uploads data,
// the up-to-date instance array the host's own render pass reads from
// when it issues the actual draw call (spec.md §4.10: this package
// exposes "a handle to the instance buffers"; the host painter invokes
// the draw inside its own frame). With no adapter behind the device, this
// is CPU-only bookkeeping exactly as the un-backed pipeline always was.
func (r *Renderer) drawPipeline(p *pipeline, data []byte, count int) error {
	if err := r.ensureCapacity(p, count); err != nil {
		return err
	}
	if r.adapter == nil || p.buffer == gpucore.InvalidID {
		return nil
	}
	r.adapter.WriteBuffer(p.buffer, 0, data)
	return nil
}

func connectionVertexCount(conns []instance.ConnectionInstance) int {
	n := 0
	for _, c := range conns {
		n += len(c.Points)
	}
	return n
}

// recordSize returns the fixed byte size of a GPU record type (every type
// in buffers.go is float32 fields and arrays of them, so binary.Size never
// returns -1 here), so pipeline buffer sizing never drifts out of sync
// with the record layouts.
func recordSize(zero any) int {
	return binary.Size(zero)
}

// compileSPIRVWords compiles WGSL to SPIR-V via naga and repacks the
// little-endian byte stream into the uint32 words
// gpucore.GPUAdapter.CreateShaderModule expects.
func compileSPIRVWords(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func identity(m *[16]float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}
