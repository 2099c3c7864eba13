// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package style provides the public API for style statistics: averaged
// Gram profiles computed from one or more style reference images.
package style

import (
	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// Profile holds the averaged per-layer Gram matrices of a style.
type Profile = style.Profile

// Weights are the content, style, and total-variation loss weights.
type Weights = style.Weights

// ErrNoStyleReferences is returned when a profile is requested over an
// empty reference list.
var ErrNoStyleReferences = style.ErrNoStyleReferences

// DefaultWeights returns the stock loss weighting.
func DefaultWeights() Weights {
	return style.DefaultWeights()
}

// ComputeProfile extracts styleLayers from every reference and averages
// the per-layer Gram matrices into a Profile.
func ComputeProfile(ex *vision.Extractor, refs []*tensor.Tensor, styleLayers []string) (*Profile, error) {
	return style.ComputeProfile(ex, refs, styleLayers)
}
