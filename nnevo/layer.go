package nnevo

import (
	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/matrix"
)

// LayerSpec describes one layer's width and activation, used by
// Network's constructor to build the layer stack — the Go analogue
// of the original source's std::initializer_list<LayerInfo>.
type LayerSpec struct {
	Units      int
	Activation Activation
}

// Layer holds one feed-forward layer's parameters and scratch
// output, per spec.md §3: weights (out×in), biases (out×1), output
// (out×1), and an activation kind.
type Layer struct {
	Weights    *matrix.Matrix
	Biases     *matrix.Matrix
	Output     *matrix.Matrix
	Activation Activation
}

// newLayer allocates a layer's three matrices from a, zero-filled.
// randomize must be called separately to fill weights and biases
// (Network.New does this once, for every layer, after construction).
func newLayer(a *arena.Arena, nInputs, nOutputs int, af Activation) *Layer {
	return &Layer{
		Weights:    matrix.New(a, nOutputs, nInputs),
		Biases:     matrix.New(a, nOutputs, 1),
		Output:     matrix.New(a, nOutputs, 1),
		Activation: af,
	}
}

// randomize fills weights and biases with IID uniform samples in
// [-1,1], per spec.md §4.3's randomize() contract. Grounded on the
// original source's NeuralNetwork::randomize, which maps the same
// distribution over every layer's weights and biases.
func (l *Layer) randomize() {
	matrix.Map(l.Weights, func(float32) float32 { return uniformMinusOneOne() })
	matrix.Map(l.Biases, func(float32) float32 { return uniformMinusOneOne() })
}

// activate applies l.Activation to l.Output in place.
func (l *Layer) activate() {
	activate(l.Activation, l.Output)
}

// mutate walks every weight and bias scalar; with probability rate it
// is replaced by a fresh uniform [-1,1] draw, otherwise left
// unchanged. Exactly the original source's NeuralNetwork::mutate
// inner loop, generalized across both parameter matrices.
func (l *Layer) mutate(rate float32) {
	matrix.Map(l.Weights, func(v float32) float32 {
		if Float32() <= rate {
			return uniformMinusOneOne()
		}
		return v
	})
	matrix.Map(l.Biases, func(v float32) float32 {
		if Float32() <= rate {
			return uniformMinusOneOne()
		}
		return v
	})
}
