// Package sample defines the external sample-source collaborator:
// the boundary between the evolutionary core (arena, matrix, nnevo,
// population) and whatever produces labeled training data. spec.md
// §1 treats "the MNIST IDX file reader" as an external collaborator,
// out of the core's scope; this package gives that collaborator a
// concrete, swappable interface instead of hard-wiring MNIST into
// population.
package sample

import "github.com/errno835/evonet/matrix"

// Sample is one labeled example: an R×1 input and a K×1 target, per
// spec.md §3. Both matrices are read-only from the core's
// perspective.
type Sample struct {
	Input  *matrix.Matrix
	Target *matrix.Matrix
}

// Source produces batches of Samples. Next returns up to n samples;
// implementations may draw with or without replacement, and may
// return fewer than n only at true exhaustion (signaled by a nil
// error and a short slice, or io.EOF-style wrapping inside an
// everr.IOError — the concrete MNISTSource draws with replacement
// from its set and never exhausts).
type Source interface {
	Next(n int) ([]Sample, error)
	// InputRows and TargetRows report the fixed shape of every
	// sample this source produces, so callers (population.New) can
	// size a Network's input layer and loss target without peeking
	// into a batch first.
	InputRows() int
	TargetRows() int
}
