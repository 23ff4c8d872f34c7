//go:build !unchecked

package matrix

// shapeChecksEnabled gates the shape-mismatch checks described in
// spec.md §4.2 and §9 ("Compile-time shape checks"). This is the
// default build: every shape precondition is validated and reported
// via everr.ShapeMismatch. Build with -tags unchecked to trust
// callers and skip the checks on the hot loops.
const shapeChecksEnabled = true
