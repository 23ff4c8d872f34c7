package nnevo

import "github.com/errno835/evonet/matrix"

// Loss selects the scoring function applied to a network's final
// output against a target, per spec.md §4.3.
type Loss int

const (
	MeanSquareError Loss = iota
	SoftmaxCrossEntropy
)

func (l Loss) String() string {
	switch l {
	case MeanSquareError:
		return "MEAN_SQUARE_ERROR"
	case SoftmaxCrossEntropy:
		return "SOFTMAX_CROSS_ENTROPY"
	default:
		return "UNKNOWN_LOSS"
	}
}

// ComputeLoss dispatches to the configured loss kind. output and
// target must share shape. Exported so population can score a
// FeedForwardScratch result directly, without reaching through a
// Network's own final-layer Output field.
func ComputeLoss(l Loss, output, target *matrix.Matrix) float32 {
	switch l {
	case MeanSquareError:
		return meanSquareError(output, target)
	case SoftmaxCrossEntropy:
		return softmaxCrossEntropy(output, target)
	default:
		panic("nnevo: unknown loss")
	}
}

// meanSquareError computes Σ(o_i - t_i)^2 / (rows·cols).
func meanSquareError(output, target *matrix.Matrix) float32 {
	var v float32
	matrix.MapPair(output, target, func(o, t float32) {
		d := o - t
		v += d * d
	})
	v /= float32(target.Rows() * target.Cols())
	return v
}

// softmaxCrossEntropy computes -Σ output_i · ln(target_i). This
// argument order is inverted from the usual -Σ target·ln(output); the
// spec preserves it verbatim as an observed-behavior open question
// (spec.md §9, "Cross-entropy argument order") rather than silently
// "fixing" it, since next_generation's mutation-rate derivation
// depends on the scoring semantics staying exactly as measured.
func softmaxCrossEntropy(output, target *matrix.Matrix) float32 {
	var v float32
	matrix.MapPair(output, target, func(o, t float32) {
		v += o * logf(t)
	})
	return -v
}
