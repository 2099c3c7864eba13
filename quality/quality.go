// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package quality provides the public API for scoring synthesis results.
package quality

import (
	"github.com/atelier-ml/atelier/internal/quality"
	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/synthesis"
	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// Report aggregates the per-run quality scores.
type Report = quality.Report

// ContentSimilarity computes mean SSIM between the luminance planes of two
// same-shape images.
func ContentSimilarity(a, b *tensor.Tensor) (float64, error) {
	return quality.ContentSimilarity(a, b)
}

// StyleConsistency measures Gram-space similarity between a result image
// and a style profile.
func StyleConsistency(ex *vision.Extractor, result *tensor.Tensor, profile *style.Profile) (float64, error) {
	return quality.StyleConsistency(ex, result, profile)
}

// Assess scores a finished synthesis run against its inputs.
func Assess(ex *vision.Extractor, content, result *tensor.Tensor, profile *style.Profile, history *synthesis.History) (Report, error) {
	return quality.Assess(ex, content, result, profile, history)
}
