// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense float32 tensors the
// synthesis pipeline operates on.
//
// Images enter and leave the pipeline as [3, H, W] tensors with values in
// [0, 1]; see the imaging package for conversions from image.Image.
//
// Example:
//
//	canvas := tensor.Full(tensor.Shape{3, 256, 256}, 0.5)
//	canvas.Clamp(0, 1)
package tensor

import (
	"github.com/atelier-ml/atelier/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{3, 256, 256} is a 3-channel 256x256 image.
type Shape = tensor.Shape

// Tensor is a dense float32 tensor in row-major layout.
type Tensor = tensor.Tensor

// Creation functions

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	return tensor.New(shape)
}

// Full creates a tensor filled with a specific value.
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// FromSlice creates a tensor that adopts data, which must have exactly
// shape.NumElements() entries.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}
