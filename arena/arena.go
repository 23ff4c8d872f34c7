// Package arena implements the bump/arena allocator that backs every
// matrix.Matrix in the population's forward-propagation hot path.
//
// Chunks grow monotonically and are never individually freed: Release
// is a documented no-op, and the only way to reclaim memory is
// ReleaseAll, which invalidates every outstanding pointer handed out
// by the arena. This trades per-block bookkeeping for O(1) allocation
// and O(chunks) bulk reset, which matches how a generation's temporary
// layer outputs are born and die together.
package arena

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/errno835/evonet/everr"
)

const defaultChunkSize = 16 << 20 // 16 MiB

var logger = log.New(os.Stderr, "arena: ", log.LstdFlags)

// chunk is one contiguous backing buffer. begin/end/storageEnd mirror
// the offsets described in spec.md §3: begin <= end <= storageEnd,
// available = storageEnd - end.
type chunk struct {
	buf   []byte
	end   int // bytes already carved out
	total int // len(buf)
}

func (c *chunk) available() int { return c.total - c.end }

// allocateChunk requests a new backing buffer from the runtime,
// converting an out-of-memory panic into an error so the caller can
// report it (spec.md §7) instead of crashing the process.
func allocateChunk(size int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errOOM(r)
		}
	}()
	buf = make([]byte, size)
	return buf, nil
}

func errOOM(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return &panicError{r}
}

type panicError struct{ v any }

func (p *panicError) Error() string { return fmt.Sprintf("runtime allocation panic: %v", p.v) }

// Arena is a process-wide bump allocator for Matrix storage. The zero
// value is ready to use; Configure before the first Allocate to change
// the default chunk growth size.
type Arena struct {
	mu        sync.Mutex
	chunkSize int
	open      []*chunk
	full      []*chunk

	allocated int64
	wasted    int64
}

// global is the process-wide singleton described in spec.md §3 and
// §9 ("Global singleton (arena)"). It is created lazily on first use.
var (
	globalOnce sync.Once
	global     *Arena
)

// Global returns the process-wide MatrixArena, initializing it lazily.
func Global() *Arena {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New constructs an independent arena with the default chunk size.
// Most callers should use Global(); New exists for tests that need an
// arena isolated from the process-wide singleton.
func New() *Arena {
	return &Arena{chunkSize: defaultChunkSize}
}

// Configure sets the default chunk growth size for future chunk
// allocations. It does not affect chunks already created.
func (a *Arena) Configure(chunkSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	a.chunkSize = chunkSize
}

// Allocate returns size contiguous, uninitialized bytes. It returns
// nil for size==0 without creating a chunk (Testable Property 10).
//
// The arena is NOT safe for concurrent Allocate calls from multiple
// goroutines — spec.md §5 requires worker scratch matrices to be
// allocated before a Population's worker pool starts precisely
// because of this. The internal mutex only protects against the
// controller and a stray concurrent caller corrupting bookkeeping; it
// is not a scalability mechanism.
func (a *Arena) Allocate(size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if size < 0 {
		return nil, everr.InvalidInputf("arena.Allocate", "negative size %d", size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, c := range a.open {
		if c.available() >= size {
			b := c.buf[c.end : c.end+size : c.end+size]
			c.end += size
			a.allocated += int64(size)
			if c.available() == 0 {
				a.open = append(a.open[:i], a.open[i+1:]...)
				a.full = append(a.full, c)
			}
			return b, nil
		}
	}

	newSize := a.chunkSize
	if size > newSize {
		newSize = size
	}

	buf, allocErr := allocateChunk(newSize)
	if allocErr != nil {
		err := everr.OutOfMemoryf("arena.Allocate", int64(size), a.allocated, a.wasted, allocErr)
		logger.Printf("%v", err)
		return nil, err
	}

	c := &chunk{buf: buf, total: newSize}
	c.end = size
	a.allocated += int64(size)
	if c.available() == 0 {
		a.full = append(a.full, c)
	} else {
		a.open = append(a.open, c)
	}

	return c.buf[:size:size], nil
}

// Release is a documented no-op: the arena frees only in bulk. It
// exists so callers can express "I'm done with this block" without
// the compiler-visible cost of an actual free — see spec.md §9,
// "Dangling pointers after release_all".
func (a *Arena) Release(_ []byte, _ int) {}

// ReleaseAll frees every chunk and invalidates every outstanding
// pointer previously handed out. Callers MUST ensure no live Matrix
// references remain — the arena performs no use-after-free detection.
func (a *Arena) ReleaseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = nil
	a.full = nil
	a.allocated = 0
	a.wasted = 0
}

// AllocatedSize returns the total bytes returned by successful
// Allocate calls across every chunk.
func (a *Arena) AllocatedSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// WastedSize returns the total bytes reserved in chunks but never
// carved out by an Allocate call — the remaining space of every open
// chunk at the moment of query (full chunks have none).
func (a *Arena) WastedSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var w int64
	for _, c := range a.open {
		w += int64(c.available())
	}
	return w
}

// Stats is a snapshot of the arena's diagnostic counters, used by the
// CLI driver to print a per-generation memory report.
type Stats struct {
	Allocated  int64
	Wasted     int64
	OpenChunks int
	FullChunks int
}

// Stats returns a consistent snapshot of the arena's counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var wasted int64
	for _, c := range a.open {
		wasted += int64(c.available())
	}
	return Stats{
		Allocated:  a.allocated,
		Wasted:     wasted,
		OpenChunks: len(a.open),
		FullChunks: len(a.full),
	}
}
