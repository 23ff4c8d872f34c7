package nnevo

import (
	"math"
	"testing"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/matrix"
)

// TestSigmoidKnownPoints is Testable Property scenario S3.
func TestSigmoidKnownPoints(t *testing.T) {
	a := arena.New()
	m := matrix.New(a, 1, 3)
	m.Set(0, 0, 0)
	m.Set(0, 1, -1e9)
	m.Set(0, 2, 1e9)

	sigmoid(m)

	if math.Abs(float64(m.Get(0, 0))-0.5) > 1e-6 {
		t.Errorf("sigmoid(0) = %v, want 0.5", m.Get(0, 0))
	}
	if m.Get(0, 1) > 1e-6 {
		t.Errorf("sigmoid(-1e9) = %v, want ~0", m.Get(0, 1))
	}
	if math.Abs(float64(m.Get(0, 2))-1) > 1e-6 {
		t.Errorf("sigmoid(1e9) = %v, want ~1", m.Get(0, 2))
	}
}

// TestSigmoidRangeIsOpenUnitInterval covers Testable Property 5.
func TestSigmoidRangeIsOpenUnitInterval(t *testing.T) {
	a := arena.New()
	m := matrix.New(a, 1, 5)
	for i, v := range []float32{-100, -1, 0, 1, 100} {
		m.Set(0, i, v)
	}
	sigmoid(m)
	for _, v := range m.AsSlice() {
		if v <= 0 || v >= 1 {
			t.Errorf("sigmoid output %v not in (0,1)", v)
		}
	}
}

// TestSoftmaxUniformInput is Testable Property scenario S4.
func TestSoftmaxUniformInput(t *testing.T) {
	a := arena.New()
	m := matrix.New(a, 1, 3)
	m.Set(0, 0, 1)
	m.Set(0, 1, 1)
	m.Set(0, 2, 1)

	softmax(m)

	for _, v := range m.AsSlice() {
		if math.Abs(float64(v)-1.0/3.0) > 1e-6 {
			t.Errorf("softmax([1,1,1]) element = %v, want 1/3", v)
		}
	}
}

// TestSoftmaxSumsToOne covers Testable Property 6.
func TestSoftmaxSumsToOne(t *testing.T) {
	a := arena.New()
	m := matrix.New(a, 1, 4)
	for i, v := range []float32{0.2, -0.3, 5, 1} {
		m.Set(0, i, v)
	}
	softmax(m)
	sum := matrix.Sum(m, 0)
	if math.Abs(float64(sum)-1) > 1e-5 {
		t.Errorf("softmax sum = %v, want 1", sum)
	}
	for _, v := range m.AsSlice() {
		if v < 0 {
			t.Errorf("softmax produced negative element %v", v)
		}
	}
}

// TestZeroWeightNetwork is Testable Property scenario S5.
func TestZeroWeightNetwork(t *testing.T) {
	a := arena.New()
	net := New(a, 2, []LayerSpec{
		{Units: 2, Activation: Sigmoid},
		{Units: 2, Activation: Softmax},
	}, MeanSquareError)

	for _, l := range net.Layers {
		matrix.Map(l.Weights, func(float32) float32 { return 0 })
		matrix.Map(l.Biases, func(float32) float32 { return 0 })
	}

	input := matrix.New(a, 2, 1)
	input.Set(0, 0, 0.7)
	input.Set(1, 0, -3.2)

	out := net.FeedForward(input)

	for _, v := range out.AsSlice() {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("zero-weight network output = %v, want 0.5", v)
		}
	}
}

// TestFeedForwardDeterministic covers Testable Property 9.
func TestFeedForwardDeterministic(t *testing.T) {
	a := arena.New()
	net := New(a, 3, []LayerSpec{{Units: 4, Activation: Sigmoid}, {Units: 2, Activation: Softmax}}, MeanSquareError)

	input := matrix.New(a, 3, 1)
	input.Set(0, 0, 0.1)
	input.Set(1, 0, 0.2)
	input.Set(2, 0, 0.3)

	out1 := net.FeedForward(input)
	want := append([]float32{}, out1.AsSlice()...)

	out2 := net.FeedForward(input)
	for i, v := range out2.AsSlice() {
		if v != want[i] {
			t.Errorf("FeedForward not deterministic at %d: %v != %v", i, v, want[i])
		}
	}
}

// TestMutateZeroRateLeavesUnchanged covers Testable Property 7.
func TestMutateZeroRateLeavesUnchanged(t *testing.T) {
	SeedRand(42)
	a := arena.New()
	net := New(a, 4, []LayerSpec{{Units: 3, Activation: Sigmoid}}, MeanSquareError)
	before := net.Clone(a)

	net.Mutate(0)

	for li, l := range net.Layers {
		bl := before.Layers[li]
		for i, v := range l.Weights.AsSlice() {
			if v != bl.Weights.AsSlice()[i] {
				t.Errorf("Mutate(0) changed weight %d in layer %d", i, li)
			}
		}
		for i, v := range l.Biases.AsSlice() {
			if v != bl.Biases.AsSlice()[i] {
				t.Errorf("Mutate(0) changed bias %d in layer %d", i, li)
			}
		}
	}
}

// TestMutateFullRateReplacesEverything covers Testable Property 8.
func TestMutateFullRateReplacesEverything(t *testing.T) {
	SeedRand(7)
	a := arena.New()
	net := New(a, 4, []LayerSpec{{Units: 3, Activation: Sigmoid}}, MeanSquareError)
	before := net.Clone(a)

	net.Mutate(1)

	changed := 0
	for li, l := range net.Layers {
		bl := before.Layers[li]
		for i, v := range l.Weights.AsSlice() {
			if v != bl.Weights.AsSlice()[i] {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Errorf("Mutate(1) left every weight unchanged")
	}
}

func TestLossKinds(t *testing.T) {
	a := arena.New()
	out := matrix.New(a, 2, 1)
	out.Set(0, 0, 1)
	out.Set(1, 0, 0)
	target := matrix.New(a, 2, 1)
	target.Set(0, 0, 0)
	target.Set(1, 0, 1)

	mse := meanSquareError(out, target)
	if math.Abs(float64(mse)-1.0) > 1e-6 {
		t.Errorf("MSE = %v, want 1.0", mse)
	}
}
