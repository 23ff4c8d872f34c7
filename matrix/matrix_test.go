package matrix

import (
	"math/rand"
	"testing"

	"github.com/errno835/evonet/arena"
)

func fill(m *Matrix, vals ...float32) {
	for i, v := range vals {
		r, c := i/m.Cols(), i%m.Cols()
		m.Set(r, c, v)
	}
}

func TestAddIdentityLaw(t *testing.T) {
	a := arena.New()
	x := New(a, 2, 2)
	fill(x, 1, 2, 3, 4)
	zero := New(a, 2, 2)
	out := New(a, 2, 2)

	Add(x, zero, out)

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if out.Get(r, c) != x.Get(r, c) {
				t.Errorf("Add(a,zeros,c) at (%d,%d): got %v want %v", r, c, out.Get(r, c), x.Get(r, c))
			}
		}
	}
}

func TestSubtractSelfIsZero(t *testing.T) {
	a := arena.New()
	x := New(a, 2, 3)
	fill(x, 1, 2, 3, 4, 5, 6)
	out := New(a, 2, 3)

	Subtract(x, x, out)

	for _, v := range out.AsSlice() {
		if v != 0 {
			t.Errorf("Subtract(a,a,c): expected all zeros, got %v", v)
		}
	}
}

func TestDotWithIdentity(t *testing.T) {
	a := arena.New()
	n := Identity(a, 3)
	x := New(a, 3, 2)
	fill(x, 1, 2, 3, 4, 5, 6)
	out := New(a, 3, 2)

	Dot(n, x, out)
	for i, v := range out.AsSlice() {
		if v != x.AsSlice()[i] {
			t.Errorf("Dot(I,a,c) mismatch at %d: got %v want %v", i, v, x.AsSlice()[i])
		}
	}

	out2 := New(a, 3, 2)
	m := Identity(a, 2)
	Dot(x, m, out2)
	for i, v := range out2.AsSlice() {
		if v != x.AsSlice()[i] {
			t.Errorf("Dot(a,I,c) mismatch at %d: got %v want %v", i, v, x.AsSlice()[i])
		}
	}
}

// TestDot2x3By3x2 is Testable Property scenario S2.
func TestDot2x3By3x2(t *testing.T) {
	a := arena.New()
	lhs := New(a, 2, 3)
	fill(lhs, 1, 2, 3, 4, 5, 6)
	rhs := New(a, 3, 2)
	fill(rhs, 7, 8, 9, 10, 11, 12)
	out := New(a, 2, 2)

	Dot(lhs, rhs, out)

	want := []float32{58, 64, 139, 154}
	for i, v := range want {
		if out.AsSlice()[i] != v {
			t.Errorf("Dot result[%d] = %v, want %v", i, out.AsSlice()[i], v)
		}
	}
}

func TestSumRowMajor(t *testing.T) {
	a := arena.New()
	x := New(a, 2, 2)
	fill(x, 1, 2, 3, 4)
	if got := Sum(x, 0); got != 10 {
		t.Errorf("Sum = %v, want 10", got)
	}
}

func TestMinMaxFirstSeenOnTie(t *testing.T) {
	a := arena.New()
	x := New(a, 2, 2)
	fill(x, 5, 1, 1, 5)

	minV, minR, minC := Min(x)
	if minV != 1 || minR != 0 || minC != 1 {
		t.Errorf("Min = (%v,%d,%d), want (1,0,1)", minV, minR, minC)
	}

	maxV, maxR, maxC := Max(x)
	if maxV != 5 || maxR != 0 || maxC != 0 {
		t.Errorf("Max = (%v,%d,%d), want (5,0,0)", maxV, maxR, maxC)
	}
}

func TestMapAndIMap(t *testing.T) {
	a := arena.New()
	x := New(a, 1, 3)
	fill(x, 1, 2, 3)

	Map(x, func(v float32) float32 { return v * 2 })
	want := []float32{2, 4, 6}
	for i, v := range want {
		if x.AsSlice()[i] != v {
			t.Errorf("Map[%d] = %v, want %v", i, x.AsSlice()[i], v)
		}
	}

	IMap(x, func(r, c int, v float32) float32 { return v + float32(c) })
	want2 := []float32{2, 5, 8}
	for i, v := range want2 {
		if x.AsSlice()[i] != v {
			t.Errorf("IMap[%d] = %v, want %v", i, x.AsSlice()[i], v)
		}
	}
}

func TestResizeSameShapeOnlyZeros(t *testing.T) {
	a := arena.New()
	x := New(a, 2, 2)
	fill(x, 1, 2, 3, 4)
	before := x.AsSlice()

	x.Resize(a, 2, 2)
	for _, v := range x.AsSlice() {
		if v != 0 {
			t.Errorf("Resize same shape should zero-fill, got %v", v)
		}
	}
	if len(before) != len(x.AsSlice()) {
		t.Errorf("Resize same shape changed length")
	}
}

func BenchmarkDot(b *testing.B) {
	a := arena.New()
	lhs := New(a, 64, 64)
	rhs := New(a, 64, 64)
	out := New(a, 64, 64)
	rng := rand.New(rand.NewSource(1))
	RandomizeUniform(lhs, -1, 1, rng)
	RandomizeUniform(rhs, -1, 1, rng)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Dot(lhs, rhs, out)
	}
}
