package sample

import (
	"testing"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/matrix"
)

func TestMemorySourceCyclesInOrder(t *testing.T) {
	a := arena.New()
	samples := make([]Sample, 3)
	for i := range samples {
		in := matrix.New(a, 2, 1)
		in.Set(0, 0, float32(i))
		samples[i] = Sample{Input: in, Target: matrix.New(a, 1, 1)}
	}

	src, err := NewMemorySource(samples)
	if err != nil {
		t.Fatalf("NewMemorySource: %v", err)
	}
	if src.InputRows() != 2 || src.TargetRows() != 1 {
		t.Errorf("shape = (%d,%d), want (2,1)", src.InputRows(), src.TargetRows())
	}

	batch, err := src.Next(5)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i, want := range []float32{0, 1, 2, 0, 1} {
		if batch[i].Input.Get(0, 0) != want {
			t.Errorf("batch[%d] input = %v, want %v", i, batch[i].Input.Get(0, 0), want)
		}
	}
}

func TestNewMemorySourceRejectsEmpty(t *testing.T) {
	if _, err := NewMemorySource(nil); err == nil {
		t.Error("expected error for empty sample set")
	}
}
