//go:build gpu

package gpubackend

import (
	"fmt"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
)

// ImageManager owns the backend's textures. evonet's forward-pass
// offload never needs a texture — every tensor is a flat storage
// buffer — but spec.md §4.5 names an image manager as part of the
// device surface alongside the buffer manager, so it is carried here
// as a structural peer with the same creation/destruction discipline,
// unused by the current compute path. Grounded on the same
// handle-plus-DeviceMemory shape as BufferManager.
type ImageManager struct {
	d *Device

	mu     sync.Mutex
	images map[int]*wgpu.Texture
	nextID int
}

func newImageManager(d *Device) *ImageManager {
	return &ImageManager{d: d, images: make(map[int]*wgpu.Texture)}
}

// ImageSpec describes a 2D texture to create.
type ImageSpec struct {
	Width, Height uint32
	Format        wgpu.TextureFormat
	Usage         wgpu.TextureUsage
}

// Create allocates a texture matching spec and registers it under a
// new handle.
func (m *ImageManager) Create(spec ImageSpec) (int, error) {
	tex, err := m.d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "gpubackend-image",
		Size:  wgpu.Extent3D{Width: spec.Width, Height: spec.Height, DepthOrArrayLayers: 1},
		Format: spec.Format,
		Usage:  spec.Usage,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
	})
	if err != nil {
		return 0, wrapGPUError("gpubackend.ImageManager.Create", err)
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.images[id] = tex
	m.mu.Unlock()
	return id, nil
}

// Destroy releases the texture behind handle.
func (m *ImageManager) Destroy(handle int) error {
	m.mu.Lock()
	tex, ok := m.images[handle]
	delete(m.images, handle)
	m.mu.Unlock()
	if !ok {
		return wrapGPUError("gpubackend.ImageManager.Destroy", fmt.Errorf("unknown handle %d", handle))
	}
	tex.Destroy()
	return nil
}

func (m *ImageManager) releaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tex := range m.images {
		tex.Destroy()
	}
	m.images = make(map[int]*wgpu.Texture)
}
