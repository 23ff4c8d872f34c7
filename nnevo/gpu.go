package nnevo

import (
	"github.com/errno835/evonet/gpubackend"
	"github.com/errno835/evonet/matrix"
)

// activationName maps an Activation to the shader-file suffix
// gpubackend.Device.ForwardLayer resolves into shaders/dense_forward_<name>.wgsl,
// per SPEC_FULL.md §7.
func activationName(a Activation) string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case Softmax:
		return "softmax"
	default:
		return "sigmoid"
	}
}

// FeedForwardGPU mirrors FeedForwardScratch but offloads each layer's
// weights·input + bias + activation to the GPU compute backend via
// gpubackend.Device.ForwardLayer, per spec.md §4.5 ("used to offload
// forward propagation"). It only ever exchanges plain float32 slices
// with gpubackend — never a *matrix.Matrix — keeping the CPU and GPU
// paths from sharing data structures, per spec.md §9.
//
// Like FeedForwardScratch, results are written into the caller-owned
// scratch slice rather than each layer's own Output field, so two
// goroutines evaluating the same Subject concurrently (Population's
// worker pool) never race on shared network state; weights and biases
// are only read.
//
// Build without the "gpu" tag and this still compiles and runs: the
// stub Device.ForwardLayer returns gpubackend.ErrNoGPU immediately,
// so callers get a normal error instead of a missing symbol. This is
// what lets Population try the GPU path per task and fall back to
// FeedForwardScratch on ErrNoGPU without a second build of the caller.
func (n *Network) FeedForwardGPU(dev *gpubackend.Device, input *matrix.Matrix, scratch []*matrix.Matrix) (*matrix.Matrix, error) {
	payload := input.AsSlice()

	for i, l := range n.Layers {
		outputSize := l.Biases.Rows()
		inputSize := l.Weights.Cols()

		result, err := dev.ForwardLayer(l.Weights.AsSlice(), l.Biases.AsSlice(), payload, outputSize, inputSize, activationName(l.Activation))
		if err != nil {
			return nil, err
		}

		out := scratch[i]
		for r := 0; r < outputSize; r++ {
			out.Set(r, 0, result[r])
		}
		payload = result
	}

	return scratch[len(scratch)-1], nil
}
