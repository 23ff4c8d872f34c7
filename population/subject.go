package population

import (
	"math"
	"sync/atomic"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/nnevo"
)

// Subject is one candidate network plus its current score, per
// spec.md §3. score is stored as the bit pattern of a float64 so
// workers can accumulate loss contributions with a lock-free
// compare-and-swap loop (spec.md §5: "lock-free float add via
// compare-and-swap, or a per-subject mutex; the contract is 'no torn
// writes, no lost updates'" — this implementation chooses the CAS
// form to keep scheduling oblivious, per §4.4 step 4).
type Subject struct {
	Network   *nnevo.Network
	scoreBits uint64
}

// NewSubject constructs a Subject with a freshly randomized Network
// of the given topology.
func NewSubject(a *arena.Arena, nInputs int, specs []nnevo.LayerSpec, lf nnevo.Loss) *Subject {
	return &Subject{Network: nnevo.New(a, nInputs, specs, lf)}
}

// Score returns the subject's current accumulated (or, after
// FeedForward divides by the sample count, averaged) loss.
func (s *Subject) Score() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.scoreBits))
}

// resetScore zeroes the accumulator at the start of an evaluation
// pass.
func (s *Subject) resetScore() {
	atomic.StoreUint64(&s.scoreBits, 0)
}

// addScore atomically adds delta to the accumulator via a
// compare-and-swap retry loop — safe even when two workers run tasks
// for the same Subject concurrently (spec.md §4.4 step 4).
func (s *Subject) addScore(delta float64) {
	for {
		old := atomic.LoadUint64(&s.scoreBits)
		newV := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&s.scoreBits, old, newV) {
			return
		}
	}
}

// setScore overwrites the accumulator directly — used by
// FeedForward's final "divide by sample count" step, which runs after
// every worker has joined and so needs no CAS retry.
func (s *Subject) setScore(v float64) {
	atomic.StoreUint64(&s.scoreBits, math.Float64bits(v))
}
