//go:build gpu

package gpubackend

import (
	"fmt"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

// BufferManager owns every *wgpu.Buffer the backend creates, keyed by
// an opaque handle, with creation bound to a freshly allocated
// DeviceMemory range — spec.md §4.5's "creation binds the handle to
// a freshly allocated DeviceMemory; destruction releases both the
// handle and the range."
//
// Grounded on gpu/buffer.go's NewFloatBuffer/ReadBuffer staging round
// trip.
type BufferManager struct {
	d *Device

	mu      sync.Mutex
	buffers map[int]*wgpu.Buffer
	ranges  map[int]DeviceMemory
	nextID  int
}

func newBufferManager(d *Device) *BufferManager {
	return &BufferManager{d: d, buffers: make(map[int]*wgpu.Buffer), ranges: make(map[int]DeviceMemory)}
}

// allocatePage creates a raw storage-capable buffer of size bytes and
// registers it as one sub-allocator page; called back from
// Device.allocatePage.
func (b *BufferManager) allocatePage(size uint64) (int, uint32, error) {
	buf, err := b.d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "gpubackend-page",
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, 0, wrapGPUError("gpubackend.BufferManager.allocatePage", err)
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.buffers[id] = buf
	b.mu.Unlock()

	return id, 0, nil
}

func (b *BufferManager) freePage(pageID int) {
	b.mu.Lock()
	buf := b.buffers[pageID]
	delete(b.buffers, pageID)
	b.mu.Unlock()
	if buf != nil {
		buf.Destroy()
	}
}

func (b *BufferManager) pageBuffer(pageID int) *wgpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffers[pageID]
}

// binding resolves handle to the Binding (page buffer, offset, size)
// a compute dispatch should bind — the page buffer may be shared with
// other handles sub-allocated from the same chunk, so offset matters.
func (b *BufferManager) binding(handle int) Binding {
	b.mu.Lock()
	dm := b.ranges[handle]
	b.mu.Unlock()
	return Binding{Buffer: b.pageBufferForChunk(dm.ChunkIdx), Offset: dm.Offset, Size: dm.Size}
}

// pageBufferForChunk translates a DeviceMemory's ChunkIdx (an index
// into the allocator's chunk table) to the *wgpu.Buffer backing that
// chunk's page, via Allocator.PageID. ChunkIdx is not itself a page
// handle — it only coincides with one by accident when a single page
// has been created — so every lookup from a DeviceMemory must go
// through this rather than indexing b.buffers directly.
func (b *BufferManager) pageBufferForChunk(chunkIdx int) *wgpu.Buffer {
	pageID, ok := b.d.Memory.PageID(chunkIdx)
	if !ok {
		return nil
	}
	return b.pageBuffer(pageID)
}

// CreateFloatBuffer uploads data into a freshly sub-allocated range
// and returns a handle. The handle's DeviceMemory is tracked so
// Destroy can release both the wgpu resource's backing range.
func (b *BufferManager) CreateFloatBuffer(data []float32) (int, error) {
	sizeBytes := uint64(len(data) * 4)
	dm, err := b.d.Memory.Allocate(0, Requirements{Size: sizeBytes, Alignment: 4, TypeBits: 0xFFFFFFFF})
	if err != nil {
		return 0, wrapGPUError("gpubackend.BufferManager.CreateFloatBuffer", err)
	}

	page := b.pageBufferForChunk(dm.ChunkIdx)
	if page == nil {
		return 0, wrapGPUError("gpubackend.BufferManager.CreateFloatBuffer", fmt.Errorf("chunk %d has no backing page", dm.ChunkIdx))
	}
	b.d.Queue.WriteBuffer(page, dm.Offset, wgpu.ToBytes(data))

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.ranges[id] = dm
	b.mu.Unlock()

	return id, nil
}

// ReadFloatBuffer copies n float32s starting at handle's range back
// to the host through a staging buffer, exactly gpu/buffer.go's
// ReadBuffer map/poll/unmap sequence.
func (b *BufferManager) ReadFloatBuffer(handle int, n int) ([]float32, error) {
	b.mu.Lock()
	dm, ok := b.ranges[handle]
	b.mu.Unlock()
	if !ok {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", fmt.Errorf("unknown handle %d", handle))
	}
	page := b.pageBufferForChunk(dm.ChunkIdx)
	if page == nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", fmt.Errorf("chunk %d has no backing page", dm.ChunkIdx))
	}

	sizeBytes := uint64(n * 4)
	staging, err := b.d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "gpubackend-staging",
		Size:  sizeBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", err)
	}
	defer staging.Destroy()

	enc, err := b.d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", err)
	}
	enc.CopyBufferToBuffer(page, dm.Offset, staging, 0, sizeBytes)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", err)
	}
	b.d.Queue.Submit(cmd)

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", err)
	}

	timeout := time.After(5 * time.Second)
waitLoop:
	for {
		b.d.Device.Poll(false, nil)
		select {
		case <-done:
			break waitLoop
		case <-timeout:
			return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", fmt.Errorf("timed out waiting for map"))
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", mapErr)
	}

	mapped := staging.GetMappedRange(0, uint(sizeBytes))
	if mapped == nil {
		return nil, wrapGPUError("gpubackend.BufferManager.ReadFloatBuffer", fmt.Errorf("GetMappedRange returned nil"))
	}
	out := make([]float32, n)
	copy(out, wgpu.FromBytes[float32](mapped))
	staging.Unmap()
	return out, nil
}

// Destroy releases handle's sub-allocated range. The backing page
// buffer itself is reclaimed later by Allocator.ReleaseUnusedPages,
// not here — consistent with spec.md §4.5's handle-vs-page split.
func (b *BufferManager) Destroy(handle int) {
	b.mu.Lock()
	dm, ok := b.ranges[handle]
	delete(b.ranges, handle)
	b.mu.Unlock()
	if ok {
		b.d.Memory.Release(dm)
	}
}

func (b *BufferManager) releaseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, buf := range b.buffers {
		buf.Destroy()
	}
	b.buffers = make(map[int]*wgpu.Buffer)
	b.ranges = make(map[int]DeviceMemory)
}
