// Package enhance implements the deterministic post-processing chain
// applied once to a finished synthesis result: unsharp-mask sharpening,
// CLAHE local contrast on the Lab luminance channel, and saturation
// adjustment. Every stage is pure, operates on 8-bit NRGBA pixels, and can
// be toggled independently; with all stages disabled the pipeline is an
// exact identity.
package enhance

import "image"

// SharpenConfig controls the unsharp-mask stage.
type SharpenConfig struct {
	Enabled    bool
	Amount     float64 // Strength of the mask; 0 is an identity.
	Sigma      float64 // Gaussian blur sigma.
	KernelSize int     // Odd blur kernel width.
	Threshold  int     // Pixels whose blur difference stays below this are left untouched.
}

// ContrastConfig controls the CLAHE stage.
type ContrastConfig struct {
	Enabled      bool
	ClipLimit    float64 // Histogram clip limit bounding local amplification.
	TileGridSize int     // Tiles per axis.
}

// SaturationConfig controls the saturation stage.
type SaturationConfig struct {
	Enabled bool
	Factor  float64 // 1.0 is an identity; <1 desaturates, >1 boosts.
}

// Config enables and parameterizes the pipeline stages.
type Config struct {
	Sharpen    SharpenConfig
	Contrast   ContrastConfig
	Saturation SaturationConfig
}

// DefaultConfig returns the stock post-processing settings.
func DefaultConfig() Config {
	return Config{
		Sharpen:    SharpenConfig{Enabled: true, Amount: 1.0, Sigma: 1.0, KernelSize: 5, Threshold: 0},
		Contrast:   ContrastConfig{Enabled: false, ClipLimit: 2.0, TileGridSize: 8},
		Saturation: SaturationConfig{Enabled: true, Factor: 1.2},
	}
}

// Disabled returns a config with every stage off (identity pipeline).
func Disabled() Config {
	cfg := DefaultConfig()
	cfg.Sharpen.Enabled = false
	cfg.Contrast.Enabled = false
	cfg.Saturation.Enabled = false
	return cfg
}

// Apply runs the enabled stages in fixed order (sharpen, local contrast,
// saturation) and returns a new image; the input is never modified.
func Apply(img *image.NRGBA, cfg Config) *image.NRGBA {
	out := cloneNRGBA(img)
	if cfg.Sharpen.Enabled {
		out = UnsharpMask(out, cfg.Sharpen)
	}
	if cfg.Contrast.Enabled {
		out = LocalContrast(out, cfg.Contrast)
	}
	if cfg.Saturation.Enabled {
		out = Saturate(out, cfg.Saturation.Factor)
	}
	return out
}

func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
