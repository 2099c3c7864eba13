package vision

import (
	"fmt"

	"github.com/atelier-ml/atelier/internal/parallel"
	"github.com/atelier-ml/atelier/internal/tensor"
)

// Extractor evaluates the frozen network over a truncated path: only the
// ops needed to produce the requested taps run, stopping at the deepest one.
//
// The extractor itself holds no per-request state. Every Extract call
// returns its own Activations cache, so one extractor serves arbitrarily
// many concurrent requests.
type Extractor struct {
	net *Network
	par parallel.Config
}

// NewExtractor wraps a frozen network.
func NewExtractor(net *Network) *Extractor {
	return &Extractor{net: net, par: parallel.DefaultConfig()}
}

// Network returns the underlying frozen network.
func (e *Extractor) Network() *Network {
	return e.net
}

// Activations is the request-local evaluation cache of one Extract call.
// It records every intermediate tensor on the truncated path so Backward
// can replay the path in reverse. Treat its contents as read-only.
type Activations struct {
	input   *tensor.Tensor
	outputs []*tensor.Tensor // Per-op outputs, indexed like Network.ops.
	poolIdx [][]int          // Max indices for pool ops.
	last    int              // Deepest executed op index.
}

// Extract computes feature maps for exactly the requested tap names.
//
// Taps are conv outputs before the activation, matching the catalog
// produced by Arch.TapNames. The returned map shares tensors with the
// Activations cache; callers must not mutate them.
func (e *Extractor) Extract(img *tensor.Tensor, layers []string) (map[string]*tensor.Tensor, *Activations, error) {
	if len(img.Shape()) != 3 || img.Dim(0) != e.net.arch.InChannels {
		return nil, nil, fmt.Errorf("vision: expected [%d, H, W] image, got %v", e.net.arch.InChannels, img.Shape())
	}
	if err := e.net.ValidateLayers(layers); err != nil {
		return nil, nil, err
	}

	wanted := make(map[string]bool, len(layers))
	for _, name := range layers {
		wanted[name] = true
	}
	deepest := e.net.deepestOp(layers)

	acts := &Activations{
		input:   img,
		outputs: make([]*tensor.Tensor, len(e.net.ops)),
		poolIdx: make([][]int, len(e.net.ops)),
		last:    deepest,
	}
	features := make(map[string]*tensor.Tensor, len(layers))

	x := img
	for i := 0; i <= deepest; i++ {
		o := e.net.ops[i]
		switch o.kind {
		case opNormalize:
			x = normalizeForward(x, e.net.arch.Mean, e.net.arch.Std)
		case opConv:
			x = convForward(x, o.weight, o.bias, e.par)
			if wanted[o.name] {
				features[o.name] = x
			}
		case opReLU:
			x = reluForward(x)
		case opMaxPool:
			var idx []int
			x, idx = maxPoolForward(x)
			acts.poolIdx[i] = idx
		}
		acts.outputs[i] = x
	}
	return features, acts, nil
}

// Backward propagates loss gradients seeded at tap outputs back to the
// input image, replaying the cached path in reverse. Only the input
// gradient is produced; the frozen weights are untouched.
func (e *Extractor) Backward(acts *Activations, seeds map[string]*tensor.Tensor) *tensor.Tensor {
	grad := tensor.New(acts.outputs[acts.last].Shape())

	for i := acts.last; i >= 0; i-- {
		o := e.net.ops[i]
		if o.name != "" {
			if seed, ok := seeds[o.name]; ok {
				grad.AddScaled(seed, 1)
			}
		}

		in := acts.input
		if i > 0 {
			in = acts.outputs[i-1]
		}

		switch o.kind {
		case opNormalize:
			grad = normalizeBackward(grad, e.net.arch.Std)
		case opConv:
			grad = convInputBackward(grad, o.weight, o.inC, in.Dim(1), in.Dim(2), e.par)
		case opReLU:
			grad = reluBackward(grad, in)
		case opMaxPool:
			grad = maxPoolBackward(grad, acts.poolIdx[i], in.Shape())
		}
	}
	return grad
}
