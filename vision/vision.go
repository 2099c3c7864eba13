// Copyright 2025 Atelier ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package vision provides the public API for the frozen feature network
// used by style synthesis.
//
// The network is loaded once (or seeded, for tests) and shared across
// requests; extraction is safe for concurrent use because all mutable
// state lives in per-call activation caches.
//
// Example:
//
//	weights, err := vision.LoadWeights("vgg19.atwb")
//	if err != nil { ... }
//	net, err := vision.NewNetwork(vision.VGG19(), weights)
//	if err != nil { ... }
//	ex := vision.NewExtractor(net)
package vision

import (
	"github.com/atelier-ml/atelier/internal/vision"
)

// Arch describes a feature-network architecture.
type Arch = vision.Arch

// Network is an immutable, frozen feature network.
type Network = vision.Network

// Extractor runs truncated forward and backward passes over a Network.
type Extractor = vision.Extractor

// WeightSet maps conv layer names to their kernel and bias tensors.
type WeightSet = vision.WeightSet

// Sentinel errors for layer and weight-file validation.
var (
	ErrUnknownLayer       = vision.ErrUnknownLayer
	ErrInvalidMagic       = vision.ErrInvalidMagic
	ErrUnsupportedVersion = vision.ErrUnsupportedVersion
	ErrChecksumMismatch   = vision.ErrChecksumMismatch
)

// VGG19 returns the standard VGG-19 feature architecture with ImageNet
// input normalization.
func VGG19() Arch {
	return vision.VGG19()
}

// NewNetwork builds a frozen network from pretrained weights.
func NewNetwork(arch Arch, weights WeightSet) (*Network, error) {
	return vision.NewNetwork(arch, weights)
}

// SeededNetwork builds a network with deterministic random weights, for
// tests and benchmarks that do not need pretrained features.
func SeededNetwork(arch Arch, seed int64) (*Network, error) {
	return vision.SeededNetwork(arch, seed)
}

// NewExtractor wraps a network for feature extraction.
func NewExtractor(net *Network) *Extractor {
	return vision.NewExtractor(net)
}

// LoadWeights reads a WeightSet from an ATWB weight file.
func LoadWeights(path string) (WeightSet, error) {
	return vision.LoadWeights(path)
}

// SaveWeights writes a WeightSet to an ATWB weight file.
func SaveWeights(path string, weights WeightSet) error {
	return vision.SaveWeights(path, weights)
}
