// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package imaging provides the public API for converting between
// image.Image and the [3, H, W] tensors the synthesis pipeline consumes.
package imaging

import (
	"image"

	"github.com/atelier-ml/atelier/internal/imaging"
	"github.com/atelier-ml/atelier/internal/tensor"
)

// ToTensor converts an image to a [3, H, W] float32 tensor in [0, 1].
// Alpha is discarded.
func ToTensor(img image.Image) *tensor.Tensor {
	return imaging.ToTensor(img)
}

// ToImage converts a [3, H, W] tensor to an NRGBA image, clamping values
// to [0, 1] before quantization.
func ToImage(t *tensor.Tensor) (*image.NRGBA, error) {
	return imaging.ToImage(t)
}

// Resize scales img to exactly w x h, for matching style references to
// the content dimensions.
func Resize(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h)
}

// FitWithin scales img down so that neither side exceeds maxSize,
// preserving aspect ratio. Images already within the bound are copied
// unscaled.
func FitWithin(img image.Image, maxSize int) *image.NRGBA {
	return imaging.FitWithin(img, maxSize)
}
