package matrix

import "unsafe"

// unsafeFloat32Slice reinterprets the arena-owned byte block b as a
// []float32 of length n, without copying. The arena hands out
// byte-granular blocks carved from chunk buffers made with
// make([]byte, ...), which the runtime aligns at least to a machine
// word; every Matrix allocation is a multiple of 4 bytes, so each
// block starts at a 4-byte-aligned offset, which satisfies float32's
// alignment requirement. Grounded on the teacher's own raw reinterpretation of
// float slices for GPU buffer uploads (nn/attention_gpu.go uses
// unsafe.Slice((*byte)(unsafe.Pointer(&input[0])), ...) the same way,
// just in the opposite direction).
func unsafeFloat32Slice(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}
