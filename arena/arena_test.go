package arena

import "testing"

// TestAllocateZeroReturnsNil covers Testable Property 10: allocating
// zero bytes returns nil and does not create a chunk.
func TestAllocateZeroReturnsNil(t *testing.T) {
	a := New()
	b, err := a.Allocate(0)
	if err != nil {
		t.Fatalf("Allocate(0) returned error: %v", err)
	}
	if b != nil {
		t.Errorf("Allocate(0) = %v, want nil", b)
	}
	if len(a.open) != 0 || len(a.full) != 0 {
		t.Errorf("Allocate(0) created a chunk: open=%d full=%d", len(a.open), len(a.full))
	}
}

// TestChunkRollover covers scenario S1: a chunk of 1024 bytes rolls
// over into a second chunk once a request no longer fits, and the
// first chunk migrates to full only once its available bytes hit 0.
func TestChunkRollover(t *testing.T) {
	a := New()
	a.Configure(1024)

	if _, err := a.Allocate(1000); err != nil {
		t.Fatalf("Allocate(1000): %v", err)
	}
	if len(a.open) != 1 || len(a.full) != 0 {
		t.Fatalf("after 1000: open=%d full=%d, want open=1 full=0", len(a.open), len(a.full))
	}

	if _, err := a.Allocate(20); err != nil {
		t.Fatalf("Allocate(20): %v", err)
	}
	if len(a.open) != 1 || len(a.full) != 0 {
		t.Fatalf("after 1000+20: open=%d full=%d, want open=1 full=0", len(a.open), len(a.full))
	}
	if a.open[0].available() != 4 {
		t.Fatalf("first chunk available = %d, want 4", a.open[0].available())
	}

	if _, err := a.Allocate(10); err != nil {
		t.Fatalf("Allocate(10): %v", err)
	}
	if len(a.open) != 2 || len(a.full) != 0 {
		t.Fatalf("after third allocate: open=%d full=%d, want open=2 full=0", len(a.open), len(a.full))
	}
	if a.open[0].available() != 4 {
		t.Fatalf("first chunk available = %d, want 4 (stays open, only migrates at exactly 0)", a.open[0].available())
	}
}

// TestAllocateOversizeGrowsBeyondDefault covers spec.md §4.1 step 3:
// a single request larger than the configured chunk size is allowed
// to create an oversized chunk.
func TestAllocateOversizeGrowsBeyondDefault(t *testing.T) {
	a := New()
	a.Configure(64)

	b, err := a.Allocate(1000)
	if err != nil {
		t.Fatalf("Allocate(1000): %v", err)
	}
	if len(b) != 1000 {
		t.Fatalf("len(b) = %d, want 1000", len(b))
	}
	if len(a.open) != 0 || len(a.full) != 1 || a.full[0].total != 1000 {
		t.Fatalf("expected one exhausted oversized chunk of 1000 bytes in full")
	}
}

// TestAccountingInvariant covers Testable Property 11: allocated -
// wasted equals the sum of bytes returned by successful Allocate
// calls (alignment slack is zero because allocations are
// byte-granular).
func TestAccountingInvariant(t *testing.T) {
	a := New()
	a.Configure(128)

	sizes := []int{10, 20, 30, 100}
	var total int64
	for _, s := range sizes {
		if _, err := a.Allocate(s); err != nil {
			t.Fatalf("Allocate(%d): %v", s, err)
		}
		total += int64(s)
	}

	if got := a.AllocatedSize(); got != total {
		t.Errorf("AllocatedSize() = %d, want %d", got, total)
	}
}

func TestReleaseAllClearsChunks(t *testing.T) {
	a := New()
	if _, err := a.Allocate(100); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.ReleaseAll()
	if len(a.open) != 0 || len(a.full) != 0 {
		t.Errorf("ReleaseAll did not clear chunks")
	}
	if a.AllocatedSize() != 0 {
		t.Errorf("ReleaseAll did not reset allocated size")
	}
}

func TestReleaseIsNoop(t *testing.T) {
	a := New()
	b, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	before := a.AllocatedSize()
	a.Release(b, 16)
	if a.AllocatedSize() != before {
		t.Errorf("Release changed allocated size: before=%d after=%d", before, a.AllocatedSize())
	}
}

func TestGlobalIsSingleton(t *testing.T) {
	if Global() != Global() {
		t.Errorf("Global() returned different instances")
	}
}

func BenchmarkAllocateSmall(b *testing.B) {
	a := New()
	for i := 0; i < b.N; i++ {
		if _, err := a.Allocate(64); err != nil {
			b.Fatalf("Allocate: %v", err)
		}
	}
}
