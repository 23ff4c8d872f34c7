// Package nnevo implements the fixed-topology feed-forward network
// evaluator: layer stacks, forward propagation, loss computation, and
// in-place random mutation. Backpropagation is not implemented — the
// evolutionary loop in package population is mutation-only.
package nnevo

import (
	"math/rand"
	"sync"
)

// globalRand is the process-wide random generator used by Randomize,
// Mutate, and population's sample-index drawing (spec.md §5: "The
// random generator used by mutation and sampling is process-wide and
// single-threaded; mutation runs on the controller thread, not on
// workers."). It is guarded by a mutex purely so a stray concurrent
// caller cannot corrupt its internal state — not as a scalability
// mechanism; callers must still honor the single-threaded contract.
var randMu sync.Mutex
var globalRand = rand.New(rand.NewSource(1))

// SeedRand reseeds the process-wide generator. Tests use this to make
// mutation and sampling reproducible (Testable Property 8's
// "re-seeding" escape hatch for zero-draw collisions).
func SeedRand(seed int64) {
	randMu.Lock()
	defer randMu.Unlock()
	globalRand.Seed(seed)
}

// Float32 draws a uniform float32 in [0,1) from the process-wide
// generator.
func Float32() float32 {
	randMu.Lock()
	defer randMu.Unlock()
	return globalRand.Float32()
}

// Intn draws a uniform int in [0,n) from the process-wide generator.
func Intn(n int) int {
	randMu.Lock()
	defer randMu.Unlock()
	return globalRand.Intn(n)
}

// uniformMinusOneOne draws a uniform float32 in [-1,1].
func uniformMinusOneOne() float32 {
	return -1 + Float32()*2
}
