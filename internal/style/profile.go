// Package style computes style statistics and the weighted synthesis
// objective: multi-reference Gram profiles, content and style MSE terms,
// and the total-variation smoothness penalty, together with their
// analytic gradients.
package style

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// ErrNoStyleReferences is returned when a profile is requested for an empty
// reference list.
var ErrNoStyleReferences = errors.New("style: at least one style reference is required")

// Profile holds the averaged target Gram matrix per style layer. It is
// computed once per synthesis request from all style references and never
// mutated afterwards; the matrices are plain constants with no link back to
// the reference images.
type Profile struct {
	layers []string
	grams  map[string]*mat.SymDense
}

// ComputeProfile extracts features from every reference image and averages
// the per-layer Gram matrices element-wise.
//
// All references must share the content image's dimensions; the caller
// validates that before handing them over.
func ComputeProfile(ex *vision.Extractor, refs []*tensor.Tensor, styleLayers []string) (*Profile, error) {
	if len(refs) == 0 {
		return nil, ErrNoStyleReferences
	}
	if len(styleLayers) == 0 {
		return nil, errors.New("style: no style layers configured")
	}

	p := &Profile{
		layers: append([]string(nil), styleLayers...),
		grams:  make(map[string]*mat.SymDense, len(styleLayers)),
	}

	for i, ref := range refs {
		features, _, err := ex.Extract(ref, styleLayers)
		if err != nil {
			return nil, fmt.Errorf("style: reference %d: %w", i, err)
		}
		for _, layer := range styleLayers {
			g := vision.Gram(features[layer])
			if acc, ok := p.grams[layer]; ok {
				acc.AddSym(acc, g)
			} else {
				p.grams[layer] = g
			}
		}
	}

	if len(refs) > 1 {
		scale := 1 / float64(len(refs))
		for _, g := range p.grams {
			g.ScaleSym(scale, g)
		}
	}
	return p, nil
}

// Layers returns the style layer names the profile covers, in order.
func (p *Profile) Layers() []string {
	out := make([]string, len(p.layers))
	copy(out, p.layers)
	return out
}

// Gram returns the averaged target matrix for a layer, or nil if the layer
// is not part of the profile.
func (p *Profile) Gram(layer string) *mat.SymDense {
	return p.grams[layer]
}
