// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package synthesis provides the public API for iterative style synthesis.
//
// A Transformer is built once around a shared frozen extractor and serves
// concurrent requests; each Synthesize call owns its canvas, optimizer
// state, and loss history.
//
// Example:
//
//	tr := synthesis.NewTransformer(ex, synthesis.DefaultConfig())
//	res, err := tr.Synthesize(ctx, synthesis.Request{
//		Content: contentTensor,
//		Styles:  []*tensor.Tensor{styleTensor},
//	})
package synthesis

import (
	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/synthesis"
	"github.com/atelier-ml/atelier/internal/vision"
)

// Transformer is the process-scoped synthesis entry point.
type Transformer = synthesis.Transformer

// Defaults is the transformer-level default configuration.
type Defaults = synthesis.Defaults

// Request carries one synthesis job.
type Request = synthesis.Request

// Result is the outcome of one synthesis request.
type Result = synthesis.Result

// AppliedParams echoes the effective parameters of a run.
type AppliedParams = synthesis.AppliedParams

// History is the per-step loss record of a run.
type History = synthesis.History

// Observer receives per-step progress callbacks.
type Observer = synthesis.Observer

// Weights are the content, style, and total-variation loss weights.
type Weights = style.Weights

// ErrNoStyleReferences is returned when a request carries no style images.
var ErrNoStyleReferences = style.ErrNoStyleReferences

// DefaultConfig returns the stock synthesis configuration.
func DefaultConfig() Defaults {
	return synthesis.DefaultConfig()
}

// DefaultWeights returns the stock loss weighting.
func DefaultWeights() Weights {
	return style.DefaultWeights()
}

// NewTransformer builds a transformer around a frozen extractor.
func NewTransformer(ex *vision.Extractor, defaults Defaults) *Transformer {
	return synthesis.NewTransformer(ex, defaults)
}
