//go:build !gpu

// Non-gpu-tagged build: every entry point a caller (cmd/evolve, or a
// future nnevo GPU offload hook) would reach for fails with ErrNoGPU,
// exactly pods/gpu_stub.go's "default to a no-op GPU so everything
// builds/runs without tags." This file carries zero WebGPU import —
// the gpu build tag is what actually pulls in
// github.com/openfluke/webgpu, per spec.md §4.5/§9's "CPU path and
// GPU path are selected at build time."
package gpubackend

// Device is the non-GPU build's placeholder: it exists so callers can
// hold a *Device value and call methods on it regardless of build
// tag, but every method fails.
type Device struct{}

// GlobalDevice always fails in the non-gpu build.
func GlobalDevice() (*Device, error) {
	return nil, ErrNoGPU
}

// NewDevice always fails in the non-gpu build.
func NewDevice() (*Device, error) {
	return nil, ErrNoGPU
}

// Close is a no-op on the stub Device.
func (d *Device) Close() {}

// ForwardLayer always fails in the non-gpu build; callers (a future
// nnevo offload hook) must fall back to the CPU path.
func (d *Device) ForwardLayer(weights, biases, input []float32, outputSize, inputSize int, activation string) ([]float32, error) {
	return nil, ErrNoGPU
}
