//go:build gpu

package gpubackend

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// PipelineManager creates and caches compute pipelines keyed by
// (shader path, binding count) — spec.md §4.5: "a shader module...
// descriptor-set layout bindings, pipeline layout, pipeline,
// descriptor pool, descriptor set writes." Grounded directly on
// gpu/dense.go's Compile/CreateBindGroup pair, generalized from one
// fixed four-binding dense layer to an arbitrary storage-buffer
// binding count so it can serve any of the forward-pass shaders in
// shaders/*.wgsl.
type PipelineManager struct {
	d *Device

	mu    sync.Mutex
	cache map[pipelineKey]*ComputePipeline
}

type pipelineKey struct {
	path     string
	bindings int
}

// ComputePipeline bundles everything one dispatch needs: the compiled
// pipeline, its explicit bind group layout (avoiding "auto" layout,
// same rationale as gpu/dense.go's comment), and the layout used to
// build it — registered with Device for bulk teardown.
type ComputePipeline struct {
	pipeline  *wgpu.ComputePipeline
	bgLayout  *wgpu.BindGroupLayout
	workgroup uint32
}

func newPipelineManager(d *Device) *PipelineManager {
	return &PipelineManager{d: d, cache: make(map[pipelineKey]*ComputePipeline)}
}

// storageBinding builds a read-only or read-write storage-buffer
// layout entry at the given index, matching gpu/dense.go's binding
// table shape.
func storageBinding(index uint32, readOnly bool) wgpu.BindGroupLayoutEntry {
	t := wgpu.BufferBindingTypeStorage
	if readOnly {
		t = wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BindGroupLayoutEntry{
		Binding:    index,
		Visibility: wgpu.ShaderStageCompute,
		Buffer:     wgpu.BufferBindingLayout{Type: t},
	}
}

// Get compiles (or returns the cached) compute pipeline for the WGSL
// source at shaderPath, with nBindings storage bindings where the
// last one is the sole read_write output and every earlier one is
// read-only input — the binding shape every shaders/*.wgsl forward
// kernel in this backend follows (src/weights/biases in, dst out).
func (p *PipelineManager) Get(shaderPath string, nBindings int, workgroupSize uint32) (*ComputePipeline, error) {
	key := pipelineKey{path: shaderPath, bindings: nBindings}

	p.mu.Lock()
	if cp, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return cp, nil
	}
	p.mu.Unlock()

	module, err := p.d.shaderModule(shaderPath)
	if err != nil {
		return nil, err
	}

	entries := make([]wgpu.BindGroupLayoutEntry, nBindings)
	for i := 0; i < nBindings; i++ {
		entries[i] = storageBinding(uint32(i), i < nBindings-1)
	}

	bgl, err := p.d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   shaderPath + "_BGL",
		Entries: entries,
	})
	if err != nil {
		return nil, wrapGPUError("gpubackend.PipelineManager.Get", err)
	}
	p.d.registerBindGroupLayout(bgl)

	layout, err := p.d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            shaderPath + "_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, wrapGPUError("gpubackend.PipelineManager.Get", err)
	}
	p.d.registerPipelineLayout(layout)

	pipeline, err := p.d.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  shaderPath + "_Pipe",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, wrapGPUError("gpubackend.PipelineManager.Get", err)
	}

	cp := &ComputePipeline{pipeline: pipeline, bgLayout: bgl, workgroup: workgroupSize}

	p.mu.Lock()
	p.cache[key] = cp
	p.mu.Unlock()

	return cp, nil
}

// Binding is one bind-group entry: the (possibly shared) page buffer
// backing a BufferManager handle, plus the sub-allocated range within
// it. Dispatch binds exactly this slice of the page, not the whole
// buffer, since the sub-allocator may pack more than one handle into
// the same page.
type Binding struct {
	Buffer *wgpu.Buffer
	Offset uint64
	Size   uint64
}

// Dispatch records one compute pass binding bindings in order, then
// dispatches enough workgroups of size cp.workgroup to cover
// elements, into enc.
func (cp *ComputePipeline) Dispatch(d *Device, enc *wgpu.CommandEncoder, bindings []Binding, elements uint32) error {
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b.Buffer, Offset: b.Offset, Size: b.Size}
	}

	bindGroup, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "gpubackend-dispatch",
		Layout:  cp.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return wrapGPUError("gpubackend.ComputePipeline.Dispatch", err)
	}
	defer bindGroup.Release()

	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(cp.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)

	wg := cp.workgroup
	if wg == 0 {
		wg = 64
	}
	groups := (elements + wg - 1) / wg
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
	return nil
}

// ForwardLayer runs one nnevo-shaped dense layer (weights·input +
// bias, then activation) entirely on the GPU: it allocates/writes
// input, weight, and bias buffers, dispatches the layer's forward
// shader, and reads the output back. This is the offload path
// spec.md §4.5 describes ("used to offload forward propagation");
// it takes plain float32 slices rather than *matrix.Matrix, keeping
// gpubackend free of any import on matrix/nnevo's storage types per
// spec.md §9's "GPU and CPU paths never share data structures."
//
// Grounded on gpu/dense.go's DenseLayer.Compile/Dispatch and the WGSL
// shape nn/gpu.go's generateForwardShader emits, adapted to load from
// shaders/dense_forward_<activation>.wgsl (see SPEC_FULL.md §7) instead of
// generating the source inline.
func (d *Device) ForwardLayer(weights, biases, input []float32, outputSize, inputSize int, activation string) ([]float32, error) {
	shaderPath := fmt.Sprintf("shaders/dense_forward_%s.wgsl", activation)
	// The compiled WGSL kernels declare a fixed @workgroup_size(64);
	// dispatch math must match that literal regardless of
	// d.WorkgroupX's device-recommended size (which NewDevice only
	// records and logs), or
	// DispatchWorkgroups would cover too few rows.
	cp, err := d.Pipelines.Get(shaderPath, 4, 64)
	if err != nil {
		return nil, err
	}

	inHandle, err := d.Buffers.CreateFloatBuffer(input)
	if err != nil {
		return nil, err
	}
	defer d.Buffers.Destroy(inHandle)

	wHandle, err := d.Buffers.CreateFloatBuffer(weights)
	if err != nil {
		return nil, err
	}
	defer d.Buffers.Destroy(wHandle)

	bHandle, err := d.Buffers.CreateFloatBuffer(biases)
	if err != nil {
		return nil, err
	}
	defer d.Buffers.Destroy(bHandle)

	outHandle, err := d.Buffers.CreateFloatBuffer(make([]float32, outputSize))
	if err != nil {
		return nil, err
	}
	defer d.Buffers.Destroy(outHandle)

	var result []float32
	err = d.Immediate("ForwardLayer", func(enc *wgpu.CommandEncoder) error {
		bindings := []Binding{
			d.Buffers.binding(inHandle),
			d.Buffers.binding(wHandle),
			d.Buffers.binding(bHandle),
			d.Buffers.binding(outHandle),
		}
		return cp.Dispatch(d, enc, bindings, uint32(outputSize))
	})
	if err != nil {
		return nil, err
	}

	result, err = d.Buffers.ReadFloatBuffer(outHandle, outputSize)
	if err != nil {
		return nil, err
	}
	return result, nil
}
