// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package enhance provides the public API for the post-processing chain
// applied to synthesized images: unsharp masking, local contrast
// equalization, and saturation adjustment.
package enhance

import (
	"image"

	"github.com/atelier-ml/atelier/internal/enhance"
)

// Config selects and parameterizes the post-processing stages.
type Config = enhance.Config

// Per-stage configuration.
type (
	SharpenConfig    = enhance.SharpenConfig
	ContrastConfig   = enhance.ContrastConfig
	SaturationConfig = enhance.SaturationConfig
)

// DefaultConfig returns the stock post-processing configuration.
func DefaultConfig() Config {
	return enhance.DefaultConfig()
}

// Disabled returns a configuration with every stage off; Apply with it is
// an identity copy.
func Disabled() Config {
	return enhance.Disabled()
}

// Apply runs the enabled stages in fixed order on a copy of img. The input
// is never modified.
func Apply(img *image.NRGBA, cfg Config) *image.NRGBA {
	return enhance.Apply(img, cfg)
}
