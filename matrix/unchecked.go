//go:build unchecked

package matrix

// shapeChecksEnabled is false in the unchecked build: Add, Subtract,
// Hadamard, Copy, MapPair, and Dot skip their precondition checks and
// are undefined on shape mismatch, per spec.md §9.
const shapeChecksEnabled = false
