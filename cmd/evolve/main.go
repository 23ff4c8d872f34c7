// Command evolve is the thin CLI driver spec.md §6 describes: it
// loads a sample source, builds a Population of fixed-topology
// networks, and runs the feed-forward/statistics/next-generation loop
// for a configured number of generations, printing a per-generation
// report.
//
// Grounded on the teacher's flag-package CLI entry points
// (cabi/cmd/serve_model_bytes/main.go, model_conversion/serve_model_auto.go):
// standard library flag, no third-party CLI framework, flag.Parse
// once at the top of main, log.Fatal on unrecoverable setup errors.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/gpubackend"
	"github.com/errno835/evonet/matrix"
	"github.com/errno835/evonet/nnevo"
	"github.com/errno835/evonet/population"
	"github.com/errno835/evonet/sample"
)

func main() {
	nSamples := flag.Int("nSamples", 2, "number of samples per generation")
	nSubjects := flag.Int("nSubjects", 1, "population size")
	nHidden := flag.Int("nHidden", 784, "hidden layer width")
	generations := flag.Int("generations", 10, "number of generations to run")
	chunkSize := flag.Int("chunkSize", 16<<20, "arena default chunk size in bytes")
	minRate := flag.Float64("minRate", population.DefaultMinRate, "minimum mutation rate")
	maxRate := flag.Float64("maxRate", population.DefaultMaxRate, "maximum mutation rate")
	workers := flag.Int("workers", 0, "worker pool size (0 = runtime.NumCPU())")
	useGPU := flag.Bool("gpu", false, "offload forward propagation to the GPU backend (requires building with -tags gpu)")
	dataDir := flag.String("dataDir", "", "path prefix passed to the MNIST sample source (empty uses an in-memory placeholder set)")
	seed := flag.Int64("seed", 1, "seed for the process-wide random generator")
	classes := flag.Int("classes", 10, "number of output classes")
	flag.Parse()

	nnevo.SeedRand(*seed)

	a := arena.Global()
	a.Configure(*chunkSize)

	src, err := loadSource(a, *dataDir, *classes)
	if err != nil {
		log.Fatalf("evolve: loading sample source: %v", err)
	}

	specs := []nnevo.LayerSpec{
		{Units: *nHidden, Activation: nnevo.Sigmoid},
		{Units: src.TargetRows(), Activation: nnevo.Softmax},
	}

	pop := population.New(a, *nSubjects, src.InputRows(), specs, nnevo.SoftmaxCrossEntropy)
	pop.MinRate, pop.MaxRate = *minRate, *maxRate
	pop.Workers = *workers

	if *useGPU {
		dev, err := gpubackend.GlobalDevice()
		if err != nil {
			log.Printf("evolve: --gpu requested but unavailable (%v); continuing on CPU", err)
		} else {
			pop.GPU = dev
		}
	}

	for gen := 0; gen < *generations; gen++ {
		samples, err := src.Next(*nSamples)
		if err != nil {
			log.Fatalf("evolve: reading samples: %v", err)
		}

		pop.FeedForward(samples)
		stats := pop.ComputeStatistics()
		best := pop.Best()

		fmt.Printf("generation %d: avg=%.6f min=%.6f max=%.6f best_score=%.6f arena_allocated=%d arena_wasted=%d\n",
			gen, stats.Avg, stats.Min, stats.Max, best.Score(), a.AllocatedSize(), a.WastedSize())

		pop.NextGeneration()
	}

	os.Exit(0)
}

// loadSource resolves the sample-source collaborator: a real MNIST
// IDX-format dataset when dataDir is given, otherwise a small
// synthetic in-memory placeholder so the driver runs standalone for
// smoke-testing, per spec.md §6 treating the reader as an external
// collaborator.
func loadSource(a *arena.Arena, dataDir string, classes int) (sample.Source, error) {
	if dataDir != "" {
		return sample.LoadMNIST(a, dataDir, classes)
	}
	return sample.NewMemorySource(syntheticSamples(a, classes))
}

// syntheticSamples builds a tiny placeholder dataset (28x28 inputs,
// one-hot targets over classes) so `evolve` runs without a real MNIST
// download — it is not a substitute for sample.MNISTSource, only a
// standalone smoke-test fallback.
func syntheticSamples(a *arena.Arena, classes int) []sample.Sample {
	const rows, cols = 28, 28
	rng := rand.New(rand.NewSource(42))
	out := make([]sample.Sample, classes*4)
	for i := range out {
		input := matrix.New(a, rows*cols, 1)
		for p := 0; p < rows*cols; p++ {
			input.Set(p, 0, rng.Float32())
		}
		label := i % classes
		target := matrix.New(a, classes, 1)
		target.Set(label, 0, 1.0)
		out[i] = sample.Sample{Input: input, Target: target}
	}
	return out
}
