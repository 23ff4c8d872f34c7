package gpubackend

import "testing"

type fakePages struct {
	freed []int
}

func (f *fakePages) AllocatePage(size uint64, properties uint32, typeBits uint32) (int, uint32, error) {
	return len(f.freed) + 1000, 0, nil
}

func (f *fakePages) FreePage(pageID int) {
	f.freed = append(f.freed, pageID)
}

func TestAllocatorCarvesFromFreshChunk(t *testing.T) {
	pages := &fakePages{}
	a := NewAllocator(pages)
	a.SetPageSize(4096)

	dm, err := a.Allocate(0, Requirements{Size: 256, Alignment: 16})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if dm.Size != 256 {
		t.Errorf("dm.Size = %d, want 256", dm.Size)
	}
	if dm.Offset%16 != 0 {
		t.Errorf("dm.Offset = %d, not 16-aligned", dm.Offset)
	}
	if len(a.chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(a.chunks))
	}
}

func TestAllocatorReleaseCoalescesAdjacentRanges(t *testing.T) {
	pages := &fakePages{}
	a := NewAllocator(pages)
	a.SetPageSize(1024)

	dm1, err := a.Allocate(0, Requirements{Size: 100})
	if err != nil {
		t.Fatalf("Allocate dm1: %v", err)
	}
	dm2, err := a.Allocate(0, Requirements{Size: 100})
	if err != nil {
		t.Fatalf("Allocate dm2: %v", err)
	}

	a.Release(dm1)
	a.Release(dm2)

	c := a.chunks[0]
	if len(c.AvailableRanges) != 1 {
		t.Fatalf("expected free ranges to coalesce into 1, got %d: %+v", len(c.AvailableRanges), c.AvailableRanges)
	}
	if c.AvailableRanges[0].Size != c.Size {
		t.Errorf("coalesced range size = %d, want full chunk size %d", c.AvailableRanges[0].Size, c.Size)
	}
}

func TestAllocatorReleaseUnusedPagesFreesFullyFreeChunk(t *testing.T) {
	pages := &fakePages{}
	a := NewAllocator(pages)
	a.SetPageSize(512)

	dm, err := a.Allocate(0, Requirements{Size: 64})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Release(dm)

	a.ReleaseUnusedPages()

	if len(a.chunks) != 0 {
		t.Errorf("expected the unused chunk to be released, got %d chunks remaining", len(a.chunks))
	}
	if len(pages.freed) != 1 {
		t.Errorf("expected exactly 1 FreePage call, got %d", len(pages.freed))
	}
}

func TestAllocatorGrowsNewChunkWhenNoneFit(t *testing.T) {
	pages := &fakePages{}
	a := NewAllocator(pages)
	a.SetPageSize(128)

	if _, err := a.Allocate(0, Requirements{Size: 100}); err != nil {
		t.Fatalf("Allocate 1: %v", err)
	}
	if _, err := a.Allocate(0, Requirements{Size: 100}); err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}

	if len(a.chunks) != 2 {
		t.Errorf("expected rollover into a second chunk, got %d chunks", len(a.chunks))
	}
}

func TestAlignedCarveRejectsOversizedRequest(t *testing.T) {
	_, _, _, ok := alignedCarve(Requirements{Size: 200, Alignment: 8}, Range{Offset: 0, Size: 100})
	if ok {
		t.Errorf("alignedCarve should reject a request larger than the range")
	}
}
