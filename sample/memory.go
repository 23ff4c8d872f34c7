package sample

import "github.com/errno835/evonet/everr"

// MemorySource serves a fixed, pre-built set of Samples, cycling
// through them in order. It has no collaborator of its own — tests
// and the CLI's smallest examples use it in place of MNISTSource when
// no dataset file is available.
type MemorySource struct {
	samples    []Sample
	inputRows  int
	targetRows int
	next       int
}

// NewMemorySource wraps samples, which must be non-empty and share a
// uniform input/target shape.
func NewMemorySource(samples []Sample) (*MemorySource, error) {
	if len(samples) == 0 {
		return nil, everr.InvalidInputf("sample.NewMemorySource", "samples must be non-empty")
	}
	return &MemorySource{
		samples:    samples,
		inputRows:  samples[0].Input.Rows(),
		targetRows: samples[0].Target.Rows(),
	}, nil
}

func (s *MemorySource) InputRows() int  { return s.inputRows }
func (s *MemorySource) TargetRows() int { return s.targetRows }

// Next returns the next n samples, wrapping around the underlying set
// — deterministic and order-preserving, which is what makes it useful
// for reproducible tests.
func (s *MemorySource) Next(n int) ([]Sample, error) {
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		out[i] = s.samples[s.next]
		s.next = (s.next + 1) % len(s.samples)
	}
	return out, nil
}
