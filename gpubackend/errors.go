package gpubackend

import (
	"errors"

	"github.com/errno835/evonet/everr"
)

var errAllocTooLarge = errors.New("gpubackend: requested allocation does not fit a freshly sized page")

// ErrNoGPU is returned by every entry point in the non-"gpu"-tagged
// build, mirroring the teacher's pods.ErrNoGPU: a single canonical
// sentinel for "this build was not compiled with GPU support."
var ErrNoGPU = errors.New("gpubackend: GPU backend unavailable (build with -tags gpu to enable)")

func wrapGPUError(op string, err error) error {
	if err == nil {
		return nil
	}
	return everr.GPUErrorf(op, err)
}
