package style

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// Weights weight the three loss terms. Style is orders of magnitude above
// content to offset the small magnitude of normalized Gram differences.
type Weights struct {
	Content float64
	Style   float64
	TV      float64
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{Content: 1.0, Style: 1e6, TV: 1e-6}
}

// Validate rejects non-positive weights.
func (w Weights) Validate() error {
	if w.Content <= 0 || w.Style <= 0 || w.TV <= 0 {
		return fmt.Errorf("style: weights must be positive, got content=%g style=%g tv=%g", w.Content, w.Style, w.TV)
	}
	return nil
}

// Terms are the unweighted per-term losses of one step plus the weighted
// total that drives the gradient.
type Terms struct {
	Content float64
	Style   float64
	TV      float64
	Total   float64
}

// Seeds carries the gradient of the weighted total loss: per-layer seeds in
// feature space (handed to the extractor's backward pass) and a direct
// canvas-space term from total variation.
type Seeds struct {
	Features map[string]*tensor.Tensor
	Canvas   *tensor.Tensor
}

// Model composes the synthesis objective for one request. The content
// targets and style profile are captured once at construction; Evaluate is
// then called with fresh canvas features every step.
type Model struct {
	contentLayers []string
	styleLayers   []string
	weights       Weights
	targets       map[string]*tensor.Tensor // Detached content activations.
	profile       *Profile
}

// NewModel captures the detached content targets and binds the profile.
func NewModel(ex *vision.Extractor, content *tensor.Tensor, profile *Profile, contentLayers []string, weights Weights) (*Model, error) {
	if len(contentLayers) == 0 {
		return nil, errors.New("style: no content layers configured")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	features, _, err := ex.Extract(content, contentLayers)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]*tensor.Tensor, len(contentLayers))
	for _, layer := range contentLayers {
		// Clone detaches the target from the request's activation cache.
		targets[layer] = features[layer].Clone()
	}

	return &Model{
		contentLayers: append([]string(nil), contentLayers...),
		styleLayers:   profile.Layers(),
		weights:       weights,
		targets:       targets,
		profile:       profile,
	}, nil
}

// Layers returns the union of content and style layers, deduplicated, which
// is the layer set each forward pass must produce.
func (m *Model) Layers() []string {
	seen := make(map[string]bool, len(m.contentLayers)+len(m.styleLayers))
	var union []string
	for _, name := range append(append([]string(nil), m.contentLayers...), m.styleLayers...) {
		if !seen[name] {
			seen[name] = true
			union = append(union, name)
		}
	}
	return union
}

// Weights returns the configured loss weights.
func (m *Model) Weights() Weights {
	return m.weights
}

// Evaluate computes the loss terms for the current canvas and their
// gradient seeds. features must cover Layers() for a canvas with the same
// dimensions as the content image.
func (m *Model) Evaluate(canvas *tensor.Tensor, features map[string]*tensor.Tensor) (Terms, Seeds) {
	seeds := Seeds{Features: make(map[string]*tensor.Tensor, len(features))}

	var terms Terms
	terms.Content = m.contentTerm(features, seeds.Features)
	terms.Style = m.styleTerm(features, seeds.Features)
	terms.TV, seeds.Canvas = tvTerm(canvas, m.weights.TV)
	terms.Total = m.weights.Content*terms.Content + m.weights.Style*terms.Style + m.weights.TV*terms.TV
	return terms, seeds
}

// contentTerm computes the layer-averaged MSE against the detached targets
// and accumulates the weighted gradient into the per-layer seeds.
func (m *Model) contentTerm(features map[string]*tensor.Tensor, seeds map[string]*tensor.Tensor) float64 {
	var loss float64
	gradScale := m.weights.Content / float64(len(m.contentLayers))

	for _, layer := range m.contentLayers {
		f := features[layer]
		t := m.targets[layer]
		n := f.NumElements()

		seed := seeds[layer]
		if seed == nil {
			seed = tensor.New(f.Shape())
			seeds[layer] = seed
		}

		fd, td, sd := f.Data(), t.Data(), seed.Data()
		var sum float64
		k := float32(2 * gradScale / float64(n))
		for i := range fd {
			d := fd[i] - td[i]
			sum += float64(d) * float64(d)
			sd[i] += k * d
		}
		loss += sum / float64(n)
	}
	return loss / float64(len(m.contentLayers))
}

// styleTerm computes the layer-averaged Gram MSE against the profile and
// accumulates the weighted gradient. With G = F·Fᵀ/(C·H·W) and the loss
// mean((G-Ĝ)²), the feature gradient is 4·(G-Ĝ)·F / (C²·C·H·W).
func (m *Model) styleTerm(features map[string]*tensor.Tensor, seeds map[string]*tensor.Tensor) float64 {
	var loss float64
	layerScale := m.weights.Style / float64(len(m.styleLayers))

	for _, layer := range m.styleLayers {
		f := features[layer]
		c := f.Dim(0)
		hw := f.Dim(1) * f.Dim(2)

		fm := vision.FlattenSpatial(f)
		g := mat.NewSymDense(c, nil)
		g.SymOuterK(1/float64(c*hw), fm)

		target := m.profile.Gram(layer)
		diff := mat.NewSymDense(c, nil)
		var sum float64
		for i := 0; i < c; i++ {
			for j := i; j < c; j++ {
				d := g.At(i, j) - target.At(i, j)
				diff.SetSym(i, j, d)
				if i == j {
					sum += d * d
				} else {
					sum += 2 * d * d
				}
			}
		}
		layerLoss := sum / float64(c*c)
		loss += layerLoss

		// Gradient: scale · diff · fm, folded back to float32 feature space.
		var gradMat mat.Dense
		gradMat.Mul(diff, fm)
		scale := layerScale * 4 / (float64(c*c) * float64(c*hw))

		seed := seeds[layer]
		if seed == nil {
			seed = tensor.New(f.Shape())
			seeds[layer] = seed
		}
		sd := seed.Data()
		raw := gradMat.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
			base := i * hw
			for j, v := range row {
				sd[base+j] += float32(scale * v)
			}
		}
	}
	return loss / float64(len(m.styleLayers))
}

// tvTerm computes the total-variation penalty and its canvas gradient.
//
// Uses the mean absolute difference between adjacent pixels, horizontal
// plus vertical; the gradient is the signed routing of each pair's
// contribution.
func tvTerm(canvas *tensor.Tensor, weight float64) (float64, *tensor.Tensor) {
	c, h, w := canvas.Dim(0), canvas.Dim(1), canvas.Dim(2)
	grad := tensor.New(canvas.Shape())
	data := canvas.Data()
	gd := grad.Data()

	var sumH, sumV float64
	countV := c * (h - 1) * w
	countH := c * h * (w - 1)

	if countV > 0 {
		k := float32(weight / float64(countV))
		for ch := 0; ch < c; ch++ {
			base := ch * h * w
			for y := 0; y < h-1; y++ {
				for x := 0; x < w; x++ {
					i := base + y*w + x
					d := data[i+w] - data[i]
					if d > 0 {
						sumV += float64(d)
						gd[i+w] += k
						gd[i] -= k
					} else if d < 0 {
						sumV -= float64(d)
						gd[i+w] -= k
						gd[i] += k
					}
				}
			}
		}
	}
	if countH > 0 {
		k := float32(weight / float64(countH))
		for ch := 0; ch < c; ch++ {
			base := ch * h * w
			for y := 0; y < h; y++ {
				for x := 0; x < w-1; x++ {
					i := base + y*w + x
					d := data[i+1] - data[i]
					if d > 0 {
						sumH += float64(d)
						gd[i+1] += k
						gd[i] -= k
					} else if d < 0 {
						sumH -= float64(d)
						gd[i+1] -= k
						gd[i] += k
					}
				}
			}
		}
	}

	var loss float64
	if countV > 0 {
		loss += sumV / float64(countV)
	}
	if countH > 0 {
		loss += sumH / float64(countH)
	}
	return loss, grad
}
