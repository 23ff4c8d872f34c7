// Package gpubackend implements the optional GPU compute backend
// surface from spec.md §4.5: a device memory sub-allocator with
// range coalescing, buffer/image managers, command-buffer lifecycle,
// and compute-pipeline plumbing, used to offload Network.FeedForward.
// The backend is a collaborator, not a drop-in replacement for the
// CPU path — spec.md §9 requires the two paths to never share data
// structures, which is why this package never imports matrix or
// nnevo's storage types, only their shapes (dimensions, activation
// kind).
//
// This file holds the device-memory sub-allocator. It is pure
// bookkeeping over abstract pages and has no WebGPU dependency, so it
// builds and tests without the "gpu" tag — only context.go,
// buffer.go, image.go, command.go, and pipeline.go need a real
// device, and are gated behind it.
package gpubackend

import "sort"

// RangeMode selects how a MemoryChunk's free-range list is currently
// sorted, per spec.md §3 ("a mode flag"). Grounded directly on
// original_source/NeuralNetwork/VkDeviceMemoryManager.h's
// MemoryChunk::RangeMode.
type RangeMode int

const (
	SortedByOffset RangeMode = iota
	SortedBySize
)

// Range is one free byte range within a chunk, [Offset, Offset+Size).
type Range struct {
	Offset, Size uint64
}

// MemoryChunk tracks one device allocation plus its free-range list.
// Invariants (spec.md §3): ranges do not overlap; after coalescing,
// adjacent ranges are merged; a chunk whose single free range covers
// its full extent is unused and eligible for release.
type MemoryChunk struct {
	PageID         int // backend-assigned handle for the real allocation
	Size           uint64
	MemoryTypeIdx  uint32
	PropertyFlags  uint32
	AvailableRanges []Range
	mode           RangeMode
}

// DeviceMemory is a handle into one chunk's byte range, returned by
// Allocator.Allocate.
type DeviceMemory struct {
	ChunkIdx     int
	Offset, Size uint64
}

// Requirements mirrors VkMemoryRequirements: the allocation's size,
// alignment, and which memory types can satisfy it (as a bitmask,
// exactly like Vulkan's memoryTypeBits).
type Requirements struct {
	Size         uint64
	Alignment    uint64
	TypeBits     uint32
}

// PageAllocator creates a new backing page of at least size bytes
// with the given property flags, returning a backend-specific handle
// (PageID) and the resolved memory type index. The sub-allocator
// calls back into this whenever no existing chunk can satisfy a
// request — it is how context.go's real WebGPU/Vulkan device plugs
// into the otherwise backend-agnostic algorithm below.
type PageAllocator interface {
	AllocatePage(size uint64, properties uint32, typeBits uint32) (pageID int, memoryTypeIdx uint32, err error)
	FreePage(pageID int)
}

const defaultPageSize = 16 << 20 // 16 MiB, mirrors arena's default chunk size

// Allocator is the device memory sub-allocator described in spec.md
// §4.5, grounded on
// original_source/NeuralNetwork/VkDeviceMemoryManager.{h,cpp}. It is
// independent of and parallel to arena.Arena — the two MUST NOT
// share code, because their contracts differ: this one supports
// Release, the CPU arena does not (spec.md §9, "GPU backend
// selection").
type Allocator struct {
	pages    PageAllocator
	pageSize uint64
	chunks   []*MemoryChunk
}

// NewAllocator constructs a sub-allocator backed by pages.
func NewAllocator(pages PageAllocator) *Allocator {
	return &Allocator{pages: pages, pageSize: defaultPageSize}
}

// SetPageSize overrides the default page (chunk) growth size.
func (a *Allocator) SetPageSize(size uint64) {
	if size == 0 {
		size = defaultPageSize
	}
	a.pageSize = size
}

func setMode(c *MemoryChunk, mode RangeMode) {
	if c.mode == mode {
		return
	}
	switch mode {
	case SortedByOffset:
		sort.Slice(c.AvailableRanges, func(i, j int) bool {
			return c.AvailableRanges[i].Offset < c.AvailableRanges[j].Offset
		})
	case SortedBySize:
		sort.Slice(c.AvailableRanges, func(i, j int) bool {
			return c.AvailableRanges[i].Size < c.AvailableRanges[j].Size
		})
	}
	c.mode = mode
}

// compact merges adjacent free ranges after sorting by offset, and
// drops zero-length ranges — the Go shape of
// compactAvailableRanges() in VkDeviceMemoryManager.cpp.
func compact(c *MemoryChunk) {
	// Release appends out of order, so the mode flag cannot be trusted
	// here: always re-sort.
	sort.Slice(c.AvailableRanges, func(i, j int) bool {
		return c.AvailableRanges[i].Offset < c.AvailableRanges[j].Offset
	})
	c.mode = SortedByOffset

	out := c.AvailableRanges[:0]
	for i := 0; i < len(c.AvailableRanges); i++ {
		r := c.AvailableRanges[i]
		if r.Size == 0 {
			continue
		}
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Offset+last.Size >= r.Offset {
				last.Size = (r.Offset + r.Size) - last.Offset
				continue
			}
		}
		out = append(out, r)
	}
	c.AvailableRanges = out
}

// alignedCarve attempts to carve a sub-range of req.Size, aligned to
// req.Alignment, out of range. It returns the left residue, the
// carved range, the right residue, and whether the range was large
// enough — the Go shape of splitRange()/align() in
// VkDeviceMemoryManager.cpp.
func alignedCarve(req Requirements, r Range) (left, carved, right Range, ok bool) {
	offset := r.Offset
	size := r.Size

	if req.Alignment > 0 {
		rem := offset % req.Alignment
		if rem != 0 {
			pad := req.Alignment - rem
			if size < pad {
				return Range{}, Range{}, Range{}, false
			}
			offset += pad
			size -= pad
		}
	}

	if size < req.Size {
		return Range{}, Range{}, Range{}, false
	}

	left = Range{Offset: r.Offset, Size: offset - r.Offset}
	carved = Range{Offset: offset, Size: req.Size}
	right = Range{Offset: carved.Offset + carved.Size, Size: r.Size - (left.Size + carved.Size)}
	return left, carved, right, true
}

// Allocate finds a chunk whose memory type and property flags match
// and which has a free range that can host req after alignment,
// carves it out, and returns the resulting DeviceMemory handle. If no
// existing chunk fits, a new one is requested from the PageAllocator
// (sized max(pageSize, req.Size)) and the allocation retried against
// it — exactly spec.md §4.5 step 2-3's algorithm.
func (a *Allocator) Allocate(properties uint32, req Requirements) (DeviceMemory, error) {
	for ci, c := range a.chunks {
		if c.PropertyFlags != properties {
			continue
		}
		if c.Size < req.Size {
			continue
		}
		if req.TypeBits != 0 && (req.TypeBits&(1<<c.MemoryTypeIdx)) == 0 {
			continue
		}

		setMode(c, SortedBySize)
		for i, r := range c.AvailableRanges {
			left, carved, right, ok := alignedCarve(req, r)
			if !ok {
				continue
			}
			c.AvailableRanges = append(c.AvailableRanges[:i:i], c.AvailableRanges[i+1:]...)
			if left.Size > 0 {
				c.AvailableRanges = append(c.AvailableRanges, left)
			}
			if right.Size > 0 {
				c.AvailableRanges = append(c.AvailableRanges, right)
			}
			compact(c)

			return DeviceMemory{ChunkIdx: ci, Offset: carved.Offset, Size: req.Size}, nil
		}
	}

	size := a.pageSize
	if req.Size > size {
		size = req.Size
	}

	pageID, memType, err := a.pages.AllocatePage(size, properties, req.TypeBits)
	if err != nil {
		return DeviceMemory{}, err
	}

	chunk := &MemoryChunk{
		PageID:        pageID,
		Size:          size,
		MemoryTypeIdx: memType,
		PropertyFlags: properties,
		mode:          SortedByOffset,
	}
	a.chunks = append(a.chunks, chunk)
	chunkIdx := len(a.chunks) - 1

	full := Range{Offset: 0, Size: size}
	left, carved, right, ok := alignedCarve(req, full)
	if !ok {
		// A freshly sized page must fit its own triggering request.
		a.chunks = a.chunks[:len(a.chunks)-1]
		a.pages.FreePage(pageID)
		return DeviceMemory{}, errAllocTooLarge
	}
	if left.Size > 0 {
		chunk.AvailableRanges = append(chunk.AvailableRanges, left)
	}
	if right.Size > 0 {
		chunk.AvailableRanges = append(chunk.AvailableRanges, right)
	}

	return DeviceMemory{ChunkIdx: chunkIdx, Offset: carved.Offset, Size: req.Size}, nil
}

// PageID resolves dm's ChunkIdx (an index into Allocator.chunks) to
// the backend page handle that chunk is actually backed by. Callers
// that need the real storage resource behind a DeviceMemory handle
// (BufferManager) must go through this rather than treating ChunkIdx
// itself as a page key — the two are different numbering spaces:
// ChunkIdx is assigned by Allocate's append to a.chunks, while page
// handles are assigned by the PageAllocator (BufferManager.allocatePage's
// own nextID counter, shared with buffer handle IDs).
func (a *Allocator) PageID(chunkIdx int) (int, bool) {
	if chunkIdx < 0 || chunkIdx >= len(a.chunks) {
		return 0, false
	}
	return a.chunks[chunkIdx].PageID, true
}

// Release returns dm's range to its chunk's free list and coalesces
// adjacent ranges.
func (a *Allocator) Release(dm DeviceMemory) {
	if dm.ChunkIdx < 0 || dm.ChunkIdx >= len(a.chunks) {
		return
	}
	c := a.chunks[dm.ChunkIdx]
	c.AvailableRanges = append(c.AvailableRanges, Range{Offset: dm.Offset, Size: dm.Size})
	compact(c)
}

// ReleaseUnusedPages frees any chunk whose single free range covers
// its whole extent.
func (a *Allocator) ReleaseUnusedPages() {
	kept := a.chunks[:0]
	for _, c := range a.chunks {
		if len(c.AvailableRanges) == 1 && c.AvailableRanges[0].Offset == 0 && c.AvailableRanges[0].Size == c.Size {
			a.pages.FreePage(c.PageID)
			continue
		}
		kept = append(kept, c)
	}
	a.chunks = kept
}

// ReleaseAll frees every chunk unconditionally.
func (a *Allocator) ReleaseAll() {
	for _, c := range a.chunks {
		a.pages.FreePage(c.PageID)
	}
	a.chunks = nil
}
