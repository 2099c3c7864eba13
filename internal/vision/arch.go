// Package vision implements the frozen feature network used by style
// synthesis: a VGG-style stack of conv/ReLU blocks separated by max pooling,
// evaluated in inference mode only. The network weights never receive
// gradients; backward passes produce input-image gradients exclusively.
package vision

import "fmt"

// Arch describes a feature-network architecture as data: conv counts and
// channel widths per block, plus the fixed input normalization. Keeping the
// architecture a value lets tests run tiny networks through the same code
// paths as the full VGG-19 stack.
type Arch struct {
	Name       string
	InChannels int
	ConvsPer   []int     // Convs in each block.
	Channels   []int     // Output channels of each block.
	Mean       []float32 // Per-channel normalization mean, length InChannels.
	Std        []float32 // Per-channel normalization std, length InChannels.
}

// VGG19 returns the standard VGG-19 feature architecture with ImageNet
// input normalization. Tap names run conv1_1 .. conv5_4.
func VGG19() Arch {
	return Arch{
		Name:       "vgg19",
		InChannels: 3,
		ConvsPer:   []int{2, 2, 4, 4, 4},
		Channels:   []int{64, 128, 256, 512, 512},
		Mean:       []float32{0.485, 0.456, 0.406},
		Std:        []float32{0.229, 0.224, 0.225},
	}
}

// Validate checks internal consistency of the architecture description.
func (a Arch) Validate() error {
	if a.InChannels <= 0 {
		return fmt.Errorf("vision: arch %q: invalid input channels %d", a.Name, a.InChannels)
	}
	if len(a.ConvsPer) == 0 || len(a.ConvsPer) != len(a.Channels) {
		return fmt.Errorf("vision: arch %q: blocks %d and channels %d must match and be non-empty",
			a.Name, len(a.ConvsPer), len(a.Channels))
	}
	for b, n := range a.ConvsPer {
		if n <= 0 || a.Channels[b] <= 0 {
			return fmt.Errorf("vision: arch %q: block %d has convs=%d channels=%d", a.Name, b+1, n, a.Channels[b])
		}
	}
	if len(a.Mean) != a.InChannels || len(a.Std) != a.InChannels {
		return fmt.Errorf("vision: arch %q: mean/std length must equal input channels %d", a.Name, a.InChannels)
	}
	for _, s := range a.Std {
		if s == 0 {
			return fmt.Errorf("vision: arch %q: zero normalization std", a.Name)
		}
	}
	return nil
}

// TapNames returns the ordered conv tap names for this architecture,
// conv{block}_{n} in evaluation order.
func (a Arch) TapNames() []string {
	var names []string
	for b, n := range a.ConvsPer {
		for i := 1; i <= n; i++ {
			names = append(names, fmt.Sprintf("conv%d_%d", b+1, i))
		}
	}
	return names
}
