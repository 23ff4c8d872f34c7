// Package population implements the parallel population evaluator:
// a fixed-length, fixed-topology set of Subjects evaluated each
// generation by a work-stealing-style fan-out over a bounded worker
// pool, scored by loss, and advanced to the next generation by
// per-subject mutation. Selection and crossover are intentionally
// absent — spec.md §4.4 calls this a "mutation-only" evolutionary
// loop.
package population

import (
	"errors"
	"log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/gpubackend"
	"github.com/errno835/evonet/matrix"
	"github.com/errno835/evonet/nnevo"
	"github.com/errno835/evonet/sample"
)

var logger = log.New(os.Stderr, "population: ", log.LstdFlags)

// Default mutation-rate bounds, per spec.md §4.4.
const (
	DefaultMinRate = 0.1
	DefaultMaxRate = 0.5
)

// Population is a fixed-length ordered sequence of Subjects sharing
// identical topology, per spec.md §3.
type Population struct {
	Subjects []*Subject

	// MinRate and MaxRate bound NextGeneration's per-subject
	// mutation-rate derivation (spec.md §4.4 step 1). Defaults are
	// DefaultMinRate/DefaultMaxRate; the CLI driver overrides them
	// from --minRate/--maxRate.
	MinRate, MaxRate float64

	// Workers overrides the worker-pool size used by FeedForward.
	// Zero means runtime.NumCPU(), per spec.md §5.
	Workers int

	// GPU, if non-nil, routes FeedForward's per-task forward pass
	// through Network.FeedForwardGPU instead of FeedForwardScratch,
	// per spec.md §4.5/§6 ("the GPU backend is used to offload
	// forward propagation"). A task falls back to the CPU path on
	// gpubackend.ErrNoGPU (e.g. the binary was built without the
	// "gpu" tag) so a caller can set GPU speculatively without a
	// second build.
	GPU *gpubackend.Device

	arena *arena.Arena
}

// New constructs a Population of n independent Subjects, each with
// its own randomized Network of the given topology, per spec.md
// §4.4. a may be nil to use arena.Global().
func New(a *arena.Arena, n, nInputs int, specs []nnevo.LayerSpec, lf nnevo.Loss) *Population {
	if a == nil {
		a = arena.Global()
	}
	p := &Population{
		Subjects: make([]*Subject, n),
		MinRate:  DefaultMinRate,
		MaxRate:  DefaultMaxRate,
		arena:    a,
	}
	for i := range p.Subjects {
		p.Subjects[i] = NewSubject(a, nInputs, specs, lf)
	}
	return p
}

// task is one (subject, sample) pair to evaluate, per spec.md §4.4
// step 1 and the GLOSSARY's "Task" entry.
type task struct {
	subject *Subject
	s       sample.Sample
}

// numWorkers resolves the configured worker count, defaulting to
// runtime.NumCPU() per spec.md §5.
func (p *Population) numWorkers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}

// forward runs one task's forward pass, preferring p.GPU when set and
// falling back to the CPU scratch path if the GPU backend reports
// gpubackend.ErrNoGPU (built without the "gpu" tag, or no adapter
// available). Any other GPU error is logged and also falls back,
// since a single subject's GPU failure should not abort the whole
// generation's evaluation.
func (p *Population) forward(subj *Subject, input *matrix.Matrix, scratch []*matrix.Matrix) *matrix.Matrix {
	if p.GPU != nil {
		out, err := subj.Network.FeedForwardGPU(p.GPU, input, scratch)
		if err == nil {
			return out
		}
		if !errors.Is(err, gpubackend.ErrNoGPU) {
			logger.Printf("feed_forward: gpu path failed, falling back to cpu: %v", err)
		}
	}
	return subj.Network.FeedForwardScratch(input, scratch)
}

// FeedForward evaluates every subject against |samples| randomly
// chosen samples (with replacement) drawn from samples, per spec.md
// §4.4. Each subject's score accumulates the per-task loss and is
// divided by len(samples) at the end to become a mean loss.
//
// Grounded on original_source/NeuralNetwork/Population.cpp's
// TaskRunner (atomic fetch-and-increment over a flat task list,
// thread-per-worker, join-at-end) and on spec.md §4.4/§5's explicit
// contract that per-subject score updates must tolerate concurrent
// tasks landing on the same subject from different workers.
func (p *Population) FeedForward(samples []sample.Sample) {
	if len(samples) == 0 || len(p.Subjects) == 0 {
		return
	}

	tasks := make([]task, 0, len(samples)*len(p.Subjects))
	for _, subj := range p.Subjects {
		for k := 0; k < len(samples); k++ {
			idx := nnevo.Intn(len(samples))
			tasks = append(tasks, task{subject: subj, s: samples[idx]})
		}
	}

	for _, subj := range p.Subjects {
		subj.resetScore()
	}

	w := p.numWorkers()
	if w > len(tasks) {
		w = len(tasks)
	}
	if w < 1 {
		w = 1
	}

	// Worker scratch matrices are allocated here, on the controller
	// thread, before any worker starts — the arena is not safe for
	// concurrent Allocate calls, per spec.md §5.
	topology := p.Subjects[0].Network
	scratches := make([][]*matrix.Matrix, w)
	for i := range scratches {
		scratches[i] = topology.NewScratch(p.arena)
	}

	logger.Printf("feed_forward: workers=%d samples=%d subjects=%d tasks=%d", w, len(samples), len(p.Subjects), len(tasks))

	var nextTask int64 = -1
	var wg sync.WaitGroup
	wg.Add(w)

	for wi := 0; wi < w; wi++ {
		scratch := scratches[wi]
		go func() {
			defer wg.Done()
			for {
				idx := atomic.AddInt64(&nextTask, 1)
				if idx >= int64(len(tasks)) {
					return
				}
				t := tasks[idx]
				out := p.forward(t.subject, t.s.Input, scratch)
				loss := nnevo.ComputeLoss(t.subject.Network.Loss, out, t.s.Target)
				t.subject.addScore(float64(loss))
			}
		}()
	}

	wg.Wait()

	for _, subj := range p.Subjects {
		subj.setScore(subj.Score() / float64(len(samples)))
	}
}

// Statistics summarizes the population's per-subject scores.
type Statistics struct {
	Min, Max, Avg float64
}

// ComputeStatistics returns the population mean of subject scores
// along with the min and max, per spec.md §4.4.
func (p *Population) ComputeStatistics() Statistics {
	var s Statistics
	if len(p.Subjects) == 0 {
		return s
	}
	s.Min = p.Subjects[0].Score()
	s.Max = p.Subjects[0].Score()
	for _, subj := range p.Subjects {
		v := subj.Score()
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		s.Avg += v
	}
	s.Avg /= float64(len(p.Subjects))
	return s
}

// Best returns the subject with the lowest score (first-seen on tie,
// in population order), and Worst the highest. Supplemented from
// original_source/NeuralNetwork/Population.cpp's
// computePopulationStatistics, which tracks min/max across subjects
// the same way; Best/Worst surface the subjects themselves rather
// than just their scores, for the CLI's per-generation report.
func (p *Population) Best() *Subject {
	return p.extremum(func(v, best float64) bool { return v < best })
}

// Worst returns the subject with the highest score (first-seen on
// tie).
func (p *Population) Worst() *Subject {
	return p.extremum(func(v, best float64) bool { return v > best })
}

func (p *Population) extremum(better func(v, best float64) bool) *Subject {
	if len(p.Subjects) == 0 {
		return nil
	}
	best := p.Subjects[0]
	bestScore := best.Score()
	for _, subj := range p.Subjects[1:] {
		v := subj.Score()
		if better(v, bestScore) {
			best, bestScore = subj, v
		}
	}
	return best
}

// NextGeneration derives a per-subject mutation rate from its score
// and mutates its network in place, per spec.md §4.4 step 1-2:
//
//	rate = MinRate + (MaxRate-MinRate) * (1 - clamp(score, 0, 1))
//
// Scores outside [0,1] are clamped for the purpose of rate
// derivation; callers with unbounded losses (e.g. MSE on arbitrary
// targets) are responsible for normalizing beforehand, per spec.md
// §9's documented precondition.
func (p *Population) NextGeneration() {
	for _, subj := range p.Subjects {
		rate := p.mutationRate(subj.Score())
		subj.Network.Mutate(float32(rate))
	}
}

func (p *Population) mutationRate(score float64) float64 {
	c := clampUnit(score)
	return p.MinRate + (p.MaxRate-p.MinRate)*(1-c)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
