package nnevo

import "math"

// expf is float32-precision e^x, matching the source's use of
// std::expf rather than the double-precision std::exp.
func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// logf is float32-precision natural log, matching the source's
// std::log call in compute_loss_softmax_cross_entropy.
func logf(x float32) float32 {
	return float32(math.Log(float64(x)))
}
