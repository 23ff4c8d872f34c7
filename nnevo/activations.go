package nnevo

import (
	"math"

	"github.com/errno835/evonet/matrix"
)

// Activation selects the nonlinearity applied to a layer's output,
// per spec.md §4.3. Only SIGMOID and SOFTMAX are in scope — the
// teacher's much larger activation set (ReLU variants, tanh,
// softplus, ...) belongs to a different network family and has no
// home in this evaluator.
type Activation int

const (
	Sigmoid Activation = iota
	Softmax
)

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "SIGMOID"
	case Softmax:
		return "SOFTMAX"
	default:
		return "UNKNOWN_ACTIVATION"
	}
}

// activate applies a's nonlinearity to out in place, per spec.md
// §4.3. Grounded on the teacher's activateCPU switch form
// (nn/activations.go) and the original source's
// NeuralNetwork::Layer::activate dispatch, narrowed to the two kinds
// this spec names.
func activate(a Activation, out *matrix.Matrix) {
	switch a {
	case Sigmoid:
		sigmoid(out)
	case Softmax:
		softmax(out)
	default:
		panic("nnevo: unknown activation")
	}
}

// sigmoid computes y <- 1/(1+e^-x) element-wise. Results that float32
// rounds to exactly 0 or 1 are clamped to the nearest representable
// value inside (0,1).
func sigmoid(out *matrix.Matrix) {
	matrix.Map(out, func(v float32) float32 {
		y := 1.0 / (1.0 + expf(-v))
		if y <= 0 {
			return math.SmallestNonzeroFloat32
		}
		if y >= 1 {
			return math.Nextafter32(1, 0)
		}
		return y
	})
}

// softmax computes y <- e^x, then divides by sum(y). No
// max-subtraction stabilization is performed: this overflows for
// large inputs, a documented limitation carried verbatim from
// spec.md §9 ("Activation numerics").
func softmax(out *matrix.Matrix) {
	matrix.Map(out, expf)
	sum := matrix.Sum(out, 0)
	matrix.Map(out, func(v float32) float32 { return v / sum })
}
