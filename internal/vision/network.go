package vision

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/atelier-ml/atelier/internal/tensor"
)

type opKind int

const (
	opNormalize opKind = iota
	opConv
	opReLU
	opMaxPool
)

// op is one step of the evaluation path. Conv ops carry frozen weights and
// a tap name; the other kinds are parameterless.
type op struct {
	kind opKind
	name string // Tap name for conv ops, "" otherwise.

	weight *tensor.Tensor // [out_channels, in_channels, 3, 3]
	bias   []float32      // [out_channels]
	inC    int
	outC   int
}

// Network is the frozen feature network: an ordered evaluation path plus a
// fixed catalog of tap names with a name→op-index table built once at
// construction. It is immutable after construction and safe to share
// read-only across concurrent requests.
type Network struct {
	arch    Arch
	ops     []op
	catalog []string
	index   map[string]int // tap name -> op index
}

// NewNetwork builds a network from an architecture and a weight set.
// Every conv needs "<tap>.weight" [outC, inC, 3, 3] and "<tap>.bias" [outC];
// missing or misshapen tensors fail with a ResourceError.
func NewNetwork(arch Arch, weights WeightSet) (*Network, error) {
	n, err := buildNetwork(arch, func(name string, inC, outC int) (*tensor.Tensor, []float32, error) {
		w, ok := weights[name+".weight"]
		if !ok {
			return nil, nil, fmt.Errorf("missing tensor %q", name+".weight")
		}
		want := tensor.Shape{outC, inC, kernelSize, kernelSize}
		if !w.Shape().Equal(want) {
			return nil, nil, fmt.Errorf("tensor %q: shape %v, want %v", name+".weight", w.Shape(), want)
		}
		b, ok := weights[name+".bias"]
		if !ok {
			return nil, nil, fmt.Errorf("missing tensor %q", name+".bias")
		}
		if !b.Shape().Equal(tensor.Shape{outC}) {
			return nil, nil, fmt.Errorf("tensor %q: shape %v, want [%d]", name+".bias", b.Shape(), outC)
		}
		return w, b.Data(), nil
	})
	if err != nil {
		return nil, &ResourceError{Err: err}
	}
	return n, nil
}

// SeededNetwork builds a network with deterministic Xavier-uniform weights.
// Used by tests and by callers running without a pretrained weights file;
// identical seeds always produce identical networks.
func SeededNetwork(arch Arch, seed int64) (*Network, error) {
	rng := rand.New(rand.NewSource(seed))
	n, err := buildNetwork(arch, func(_ string, inC, outC int) (*tensor.Tensor, []float32, error) {
		w := tensor.New(tensor.Shape{outC, inC, kernelSize, kernelSize})
		fanIn := inC * kernelSize * kernelSize
		fanOut := outC * kernelSize * kernelSize
		limit := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
		data := w.Data()
		for i := range data {
			data[i] = (rng.Float32()*2 - 1) * limit
		}
		return w, make([]float32, outC), nil
	})
	if err != nil {
		return nil, &ResourceError{Err: err}
	}
	return n, nil
}

const (
	kernelSize  = 3
	convPadding = 1
	poolSize    = 2
	poolStride  = 2
)

func buildNetwork(arch Arch, loadConv func(name string, inC, outC int) (*tensor.Tensor, []float32, error)) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		arch:  arch,
		index: make(map[string]int),
	}
	n.ops = append(n.ops, op{kind: opNormalize})

	inC := arch.InChannels
	for b, convs := range arch.ConvsPer {
		outC := arch.Channels[b]
		for i := 1; i <= convs; i++ {
			name := fmt.Sprintf("conv%d_%d", b+1, i)
			w, bias, err := loadConv(name, inC, outC)
			if err != nil {
				return nil, err
			}
			n.index[name] = len(n.ops)
			n.catalog = append(n.catalog, name)
			n.ops = append(n.ops, op{kind: opConv, name: name, weight: w, bias: bias, inC: inC, outC: outC})
			n.ops = append(n.ops, op{kind: opReLU})
			inC = outC
		}
		if b < len(arch.ConvsPer)-1 {
			n.ops = append(n.ops, op{kind: opMaxPool})
		}
	}
	return n, nil
}

// Arch returns the architecture this network was built from.
func (n *Network) Arch() Arch {
	return n.arch
}

// LayerNames returns the ordered tap catalog.
func (n *Network) LayerNames() []string {
	out := make([]string, len(n.catalog))
	copy(out, n.catalog)
	return out
}

// ValidateLayers checks every requested name against the catalog. The first
// unknown name produces a LayerError; no computation happens either way.
func (n *Network) ValidateLayers(layers []string) error {
	for _, name := range layers {
		if _, ok := n.index[name]; !ok {
			return &LayerError{Layer: name, Available: n.LayerNames()}
		}
	}
	return nil
}

// deepestOp returns the highest op index among the requested tap names.
// Layers must already be validated.
func (n *Network) deepestOp(layers []string) int {
	deepest := -1
	for _, name := range layers {
		if idx := n.index[name]; idx > deepest {
			deepest = idx
		}
	}
	return deepest
}
