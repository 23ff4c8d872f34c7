// Package matrix implements the dense row-major matrix kernel used by
// the network evaluator. Storage is served by arena.Arena: a Matrix
// never frees its own backing bytes (see arena's documentation of
// bulk-only release), it only ever asks the arena for a fresh block
// on New/Resize and abandons the old one.
package matrix

import (
	"math/rand"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/everr"
)

const elemSize = 4 // sizeof(float32)

// Matrix is a contiguous, row-major dense array of float32. The zero
// value is a 0x0 matrix.
type Matrix struct {
	rows, cols int
	data       []float32
}

// New allocates a zero-filled rows x cols matrix from the given
// arena. Passing nil uses the process-wide arena.Global().
func New(a *arena.Arena, rows, cols int) *Matrix {
	if a == nil {
		a = arena.Global()
	}
	m := &Matrix{}
	m.alloc(a, rows, cols)
	return m
}

func (m *Matrix) alloc(a *arena.Arena, rows, cols int) {
	n := rows * cols
	raw, err := a.Allocate(n * elemSize)
	if err != nil {
		// arena.Allocate already reports the OUT_OF_MEMORY diagnostic;
		// a Matrix has no error-returning constructor path in the
		// spec, so surface it the same way an unrecoverable
		// allocation failure surfaces in the source: fail fast.
		panic(err)
	}
	m.rows, m.cols = rows, cols
	m.data = bytesToFloat32(raw, n)
	for i := range m.data {
		m.data[i] = 0
	}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Resize changes the matrix's shape. If the new shape differs from
// the current one, a fresh block is requested from a (the old one is
// abandoned, per the arena's bulk-only free contract) and zero-filled.
// If the shape is unchanged, only the contents are zeroed.
func (m *Matrix) Resize(a *arena.Arena, rows, cols int) {
	if a == nil {
		a = arena.Global()
	}
	if rows == m.rows && cols == m.cols {
		for i := range m.data {
			m.data[i] = 0
		}
		return
	}
	m.alloc(a, rows, cols)
}

// Get returns the element at (r,c).
func (m *Matrix) Get(r, c int) float32 {
	return m.data[r*m.cols+c]
}

// Set stores v at (r,c).
func (m *Matrix) Set(r, c int, v float32) {
	m.data[r*m.cols+c] = v
}

// AsSlice returns the underlying row-major backing slice. Callers
// must not retain it past the matrix's next Resize.
func (m *Matrix) AsSlice() []float32 { return m.data }

func sameShape(a, b *Matrix) bool {
	return a.rows == b.rows && a.cols == b.cols
}

func checkShape(op string, a, b *Matrix) {
	if shapeChecksEnabled && !sameShape(a, b) {
		panic(everr.ShapeMismatchf(op, a.rows, a.cols, b.rows, b.cols))
	}
}

// Add computes c = a + b element-wise. a, b, c must share shape.
func Add(a, b, c *Matrix) {
	checkShape("matrix.Add", a, b)
	checkShape("matrix.Add", a, c)
	for i := range c.data {
		c.data[i] = a.data[i] + b.data[i]
	}
}

// Subtract computes c = a - b element-wise. a, b, c must share shape.
func Subtract(a, b, c *Matrix) {
	checkShape("matrix.Subtract", a, b)
	checkShape("matrix.Subtract", a, c)
	for i := range c.data {
		c.data[i] = a.data[i] - b.data[i]
	}
}

// Hadamard computes c = a ⊙ b element-wise. a, b, c must share shape.
func Hadamard(a, b, c *Matrix) {
	checkShape("matrix.Hadamard", a, b)
	checkShape("matrix.Hadamard", a, c)
	for i := range c.data {
		c.data[i] = a.data[i] * b.data[i]
	}
}

// Copy copies src into dst element-wise. Shapes must match.
func Copy(src, dst *Matrix) {
	checkShape("matrix.Copy", src, dst)
	copy(dst.data, src.data)
}

// Dot computes the classical matrix product c = a·b using a
// deterministic, left-to-right accumulation in the inner dimension.
// Requires a.cols == b.rows, c.rows == a.rows, c.cols == b.cols.
func Dot(a, b, c *Matrix) {
	if shapeChecksEnabled {
		if a.cols != b.rows {
			panic(everr.ShapeMismatchf("matrix.Dot", a.cols, -1, b.rows, -1))
		}
		if c.rows != a.rows || c.cols != b.cols {
			panic(everr.ShapeMismatchf("matrix.Dot", a.rows, b.cols, c.rows, c.cols))
		}
	}

	for ir := 0; ir < c.rows; ir++ {
		for ic := 0; ic < c.cols; ic++ {
			var v float32
			for i := 0; i < a.cols; i++ {
				v += a.Get(ir, i) * b.Get(i, ic)
			}
			c.Set(ir, ic, v)
		}
	}
}

// Sum reduces a to a scalar via row-major traversal, starting from
// init. Deterministic given the same traversal order.
func Sum(a *Matrix, init float32) float32 {
	s := init
	for _, v := range a.data {
		s += v
	}
	return s
}

// Min returns the first-seen minimum element in row-major order,
// along with its coordinates.
func Min(a *Matrix) (value float32, r, c int) {
	value = a.data[0]
	for ir := 0; ir < a.rows; ir++ {
		for ic := 0; ic < a.cols; ic++ {
			v := a.Get(ir, ic)
			if v < value {
				value, r, c = v, ir, ic
			}
		}
	}
	return
}

// Max returns the first-seen maximum element in row-major order,
// along with its coordinates.
func Max(a *Matrix) (value float32, r, c int) {
	value = a.data[0]
	for ir := 0; ir < a.rows; ir++ {
		for ic := 0; ic < a.cols; ic++ {
			v := a.Get(ir, ic)
			if v > value {
				value, r, c = v, ir, ic
			}
		}
	}
	return
}

// Map applies f to every element of a in place: a[i,j] <- f(a[i,j]).
func Map(a *Matrix, f func(float32) float32) {
	for i, v := range a.data {
		a.data[i] = f(v)
	}
}

// IMap applies f to every element of a in place, passing the element's
// coordinates: a[i,j] <- f(i,j,a[i,j]).
func IMap(a *Matrix, f func(r, c int, v float32) float32) {
	for ir := 0; ir < a.rows; ir++ {
		for ic := 0; ic < a.cols; ic++ {
			a.Set(ir, ic, f(ir, ic, a.Get(ir, ic)))
		}
	}
}

// MapPair walks a and b in lock-step, calling f on every paired
// element without writing back — used to fold two matrices together
// (e.g. accumulating a loss). a and b must share shape.
func MapPair(a, b *Matrix, f func(va, vb float32)) {
	checkShape("matrix.MapPair", a, b)
	for i := range a.data {
		f(a.data[i], b.data[i])
	}
}

// Identity returns an n x n identity matrix, used by the dot-product
// invariant tests (Testable Properties 3-4).
func Identity(a *arena.Arena, n int) *Matrix {
	m := New(a, n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// RandomizeUniform fills a with IID uniform samples in [lo, hi) drawn
// from rng.
func RandomizeUniform(a *Matrix, lo, hi float32, rng *rand.Rand) {
	span := hi - lo
	Map(a, func(float32) float32 {
		return lo + rng.Float32()*span
	})
}

func bytesToFloat32(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	// The arena guarantees a contiguous byte block at least n*4 bytes
	// long; reinterpret it as a float32 slice without copying.
	return unsafeFloat32Slice(b, n)
}
