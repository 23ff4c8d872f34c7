package nnevo

import (
	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/matrix"
)

// Network is an ordered stack of Layers sharing a loss kind, per
// spec.md §3-§4.3. It owns its layers; layers[i].Weights.Cols() ==
// the input width feeding layer i, and layers[i+1]'s input width
// equals layers[i].Units.
type Network struct {
	arena  *arena.Arena
	Layers []*Layer
	Loss   Loss
}

// New constructs a Network with nInputs inputs, the given ordered
// layer specs, and loss kind lf, then randomizes every layer's
// weights and biases. a may be nil to use arena.Global().
//
// Grounded on the original source's NeuralNetwork constructor
// (NeuralNetwork.h), which walks the initializer_list threading the
// running input width forward and calls randomize() once at the end.
func New(a *arena.Arena, nInputs int, specs []LayerSpec, lf Loss) *Network {
	if a == nil {
		a = arena.Global()
	}
	n := &Network{arena: a, Loss: lf}
	in := nInputs
	for _, spec := range specs {
		n.Layers = append(n.Layers, newLayer(a, in, spec.Units, spec.Activation))
		in = spec.Units
	}
	n.Randomize()
	return n
}

// Randomize re-fills every layer's weights and biases with fresh IID
// uniform [-1,1] draws.
func (n *Network) Randomize() {
	for _, l := range n.Layers {
		l.randomize()
	}
}

// FeedForward runs input through every layer in order: linear
// transform, bias add, activation — exactly spec.md §4.3's
// algorithm. After it returns, the final layer's Output holds the
// network's prediction. input must be an R×1 matrix matching the
// first layer's input width.
func (n *Network) FeedForward(input *matrix.Matrix) *matrix.Matrix {
	payload := input
	for _, l := range n.Layers {
		matrix.Dot(l.Weights, payload, l.Output)
		matrix.Add(l.Biases, l.Output, l.Output)
		l.activate()
		payload = l.Output
	}
	return payload
}

// NewScratch allocates one matrix per layer, each shaped like that
// layer's own Output (out×1), from a. Population allocates one
// scratch set per worker goroutine before its pool starts and reuses
// it across every task the worker runs.
func (n *Network) NewScratch(a *arena.Arena) []*matrix.Matrix {
	if a == nil {
		a = n.arena
	}
	scratch := make([]*matrix.Matrix, len(n.Layers))
	for i, l := range n.Layers {
		scratch[i] = matrix.New(a, l.Biases.Rows(), l.Biases.Cols())
	}
	return scratch
}

// FeedForwardScratch runs input through every layer exactly like
// FeedForward, but writes each layer's intermediate output into the
// caller-supplied scratch slice instead of the layer's own Output
// field. This is what lets population.Population evaluate the same
// Subject concurrently from more than one worker: weights and biases
// are read-only during a forward pass, and scratch is private to the
// calling worker, so no two goroutines ever write the same memory.
//
// This generalizes the original source's feedforward(input, output)
// call — which passed a single caller-owned output matrix because
// its networks were effectively single-layer from the caller's
// viewpoint — to the scratch-per-layer shape a deep stack needs.
func (n *Network) FeedForwardScratch(input *matrix.Matrix, scratch []*matrix.Matrix) *matrix.Matrix {
	payload := input
	for i, l := range n.Layers {
		out := scratch[i]
		matrix.Dot(l.Weights, payload, out)
		matrix.Add(l.Biases, out, out)
		activate(l.Activation, out)
		payload = out
	}
	return payload
}

// ComputeLoss scores the network's current final-layer output
// against target, per the configured Loss kind. Call FeedForward
// first; ComputeLoss reads Layers[len-1].Output.
func (n *Network) ComputeLoss(target *matrix.Matrix) float32 {
	last := n.Layers[len(n.Layers)-1]
	return ComputeLoss(n.Loss, last.Output, target)
}

// Output returns the final layer's output matrix — the network's
// most recent prediction.
func (n *Network) Output() *matrix.Matrix {
	return n.Layers[len(n.Layers)-1].Output
}

// Mutate applies the per-parameter mutation draw (spec.md §4.3) to
// every layer's weights and biases, using rate as the replacement
// probability. rate should be clamped to [0,1] by the caller —
// Mutate does not clamp it.
func (n *Network) Mutate(rate float32) {
	for _, l := range n.Layers {
		l.mutate(rate)
	}
}

// BackPropagation is reserved and unimplemented: the source's
// backprop functions are empty stubs (spec.md §1 Non-goals), and this
// evaluator is mutation-only.
func (n *Network) BackPropagation(input, target *matrix.Matrix) {
}

// Clone returns a deep value-copy of n: every layer's weights and
// biases are copied into freshly arena-allocated matrices, sharing no
// storage with n. Supplemented from original_source's
// NeuralNetwork.cpp copy constructor usage pattern — useful for tests
// that need an unmutated baseline to diff a Mutate call against.
func (n *Network) Clone(a *arena.Arena) *Network {
	if a == nil {
		a = n.arena
	}
	clone := &Network{arena: a, Loss: n.Loss}
	for _, l := range n.Layers {
		nl := newLayer(a, l.Weights.Cols(), l.Weights.Rows(), l.Activation)
		matrix.Copy(l.Weights, nl.Weights)
		matrix.Copy(l.Biases, nl.Biases)
		matrix.Copy(l.Output, nl.Output)
		clone.Layers = append(clone.Layers, nl)
	}
	return clone
}
