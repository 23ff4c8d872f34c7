package sample

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"

	"github.com/errno835/evonet/arena"
	"github.com/errno835/evonet/everr"
	"github.com/errno835/evonet/matrix"
)

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// MNISTSource reads a pair of IDX-format files (spec.md §1's "MNIST
// IDX file reader", §6's canonical sample source with R=28·28=784,
// K=10) and serves them as Samples drawn uniformly with replacement.
//
// Grounded directly on original_source/NeuralNetwork/main.cpp's
// readMNIST: same big-endian magic-number checks (0x803 for images,
// 0x801 for labels), same row-major pixel layout normalized to
// [0,1], same one-hot target construction keyed by the label byte.
type MNISTSource struct {
	mu      sync.Mutex
	arena   *arena.Arena
	images  []byte // imagescount * rows * cols, row-major per image
	labels  []byte
	rows    int
	cols    int
	classes int
}

// LoadMNIST opens "<pathPrefix>-images.idx3-ubyte" and
// "<pathPrefix>-labels.idx1-ubyte", validates their headers, and
// reads both fully into memory. a is the arena Samples are allocated
// from; nil uses arena.Global().
func LoadMNIST(a *arena.Arena, pathPrefix string, classes int) (*MNISTSource, error) {
	if a == nil {
		a = arena.Global()
	}

	imagesFile, err := os.Open(pathPrefix + "-images.idx3-ubyte")
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	defer imagesFile.Close()

	labelsFile, err := os.Open(pathPrefix + "-labels.idx1-ubyte")
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	defer labelsFile.Close()

	imagesR := bufio.NewReader(imagesFile)
	labelsR := bufio.NewReader(labelsFile)

	imagesMagicGot, err := readUint32BE(imagesR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	if imagesMagicGot != imagesMagic {
		return nil, everr.IOErrorf("sample.LoadMNIST", errInvalidMagic("images", imagesMagicGot, imagesMagic))
	}

	imagesCount, err := readUint32BE(imagesR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	rows, err := readUint32BE(imagesR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	cols, err := readUint32BE(imagesR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}

	labelsMagicGot, err := readUint32BE(labelsR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}
	if labelsMagicGot != labelsMagic {
		return nil, everr.IOErrorf("sample.LoadMNIST", errInvalidMagic("labels", labelsMagicGot, labelsMagic))
	}

	labelsCount, err := readUint32BE(labelsR)
	if err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}

	if imagesCount != labelsCount {
		return nil, everr.IOErrorf("sample.LoadMNIST", errCountMismatch(imagesCount, labelsCount))
	}

	imageBytes := int(imagesCount) * int(rows) * int(cols)
	images := make([]byte, imageBytes)
	if _, err := io.ReadFull(imagesR, images); err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}

	labels := make([]byte, labelsCount)
	if _, err := io.ReadFull(labelsR, labels); err != nil {
		return nil, everr.IOErrorf("sample.LoadMNIST", err)
	}

	return &MNISTSource{
		arena:   a,
		images:  images,
		labels:  labels,
		rows:    int(rows),
		cols:    int(cols),
		classes: classes,
	}, nil
}

// InputRows reports rows*cols — 784 for canonical 28x28 MNIST.
func (s *MNISTSource) InputRows() int { return s.rows * s.cols }

// TargetRows reports the configured class count — 10 for MNIST.
func (s *MNISTSource) TargetRows() int { return s.classes }

// Next draws n Samples uniformly at random with replacement from the
// loaded set, per spec.md §4.4's "with replacement" contract for
// task-list sample selection. Safe for concurrent callers, though the
// core's own controller only ever calls this single-threaded.
func (s *MNISTSource) Next(n int) ([]Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.labels)
	if count == 0 {
		return nil, everr.IOErrorf("sample.MNISTSource.Next", errNoSamples)
	}

	imgSize := s.rows * s.cols
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		idx := rand.Intn(count)
		input := matrix.New(s.arena, imgSize, 1)
		off := idx * imgSize
		for p := 0; p < imgSize; p++ {
			input.Set(p, 0, float32(s.images[off+p])/255.0)
		}

		target := matrix.New(s.arena, s.classes, 1)
		target.Set(int(s.labels[idx]), 0, 1.0)

		out[i] = Sample{Input: input, Target: target}
	}
	return out, nil
}

func readUint32BE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

var errNoSamples = fmt.Errorf("no samples loaded")

func errInvalidMagic(which string, got, want uint32) error {
	return fmt.Errorf("invalid %s magic: 0x%08x (expecting 0x%08x)", which, got, want)
}

func errCountMismatch(images, labels uint32) error {
	return fmt.Errorf("images and labels count mismatch (%d, %d)", images, labels)
}
