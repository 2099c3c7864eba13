// Package quality scores synthesis results: structural similarity against
// the content image, Gram-space consistency against the style profile, and
// the loss improvement achieved over the run.
package quality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/synthesis"
	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// SSIM stabilization constants for 8-bit dynamic range.
const (
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
	ssimWindow = 11
)

// Report aggregates the per-run quality scores. Similarity scores live in
// [0, 1]; LossImprovement is the relative total-loss drop over the run and
// is negative when the run made things worse.
type Report struct {
	ContentSimilarity float64
	StyleConsistency  float64
	LossImprovement   float64
}

// ContentSimilarity computes mean SSIM between the luminance planes of two
// same-shape [3, H, W] images in [0, 1].
func ContentSimilarity(a, b *tensor.Tensor) (float64, error) {
	if !a.Shape().Equal(b.Shape()) {
		return 0, fmt.Errorf("quality: shapes %v and %v differ", a.Shape(), b.Shape())
	}
	if len(a.Shape()) != 3 || a.Dim(0) != 3 {
		return 0, fmt.Errorf("quality: want [3, H, W], got %v", a.Shape())
	}
	h, w := a.Dim(1), a.Dim(2)

	la := luminance(a)
	lb := luminance(b)

	muA := boxMean(la, h, w)
	muB := boxMean(lb, h, w)
	muAA := boxMean(mulPlanes(la, la), h, w)
	muBB := boxMean(mulPlanes(lb, lb), h, w)
	muAB := boxMean(mulPlanes(la, lb), h, w)

	var sum float64
	for i := range muA {
		ma, mb := muA[i], muB[i]
		varA := muAA[i] - ma*ma
		varB := muBB[i] - mb*mb
		cov := muAB[i] - ma*mb
		num := (2*ma*mb + ssimC1) * (2*cov + ssimC2)
		den := (ma*ma + mb*mb + ssimC1) * (varA + varB + ssimC2)
		sum += num / den
	}
	return sum / float64(len(muA)), nil
}

// luminance flattens a [3, H, W] tensor in [0, 1] to a Rec.601 luminance
// plane on the 8-bit scale SSIM's constants assume.
func luminance(img *tensor.Tensor) []float64 {
	h, w := img.Dim(1), img.Dim(2)
	plane := h * w
	data := img.Data()
	lum := make([]float64, plane)
	for i := 0; i < plane; i++ {
		r := float64(data[i])
		g := float64(data[plane+i])
		b := float64(data[2*plane+i])
		lum[i] = 255 * (0.299*r + 0.587*g + 0.114*b)
	}
	return lum
}

func mulPlanes(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

// boxMean averages each pixel's window with the window clipped at image
// borders, so edge statistics stay unbiased.
func boxMean(p []float64, h, w int) []float64 {
	const r = ssimWindow / 2
	out := make([]float64, h*w)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h-1, y+r)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w-1, x+r)
			var sum float64
			for yy := y0; yy <= y1; yy++ {
				row := yy * w
				for xx := x0; xx <= x1; xx++ {
					sum += p[row+xx]
				}
			}
			out[y*w+x] = sum / float64((y1-y0+1)*(x1-x0+1))
		}
	}
	return out
}

// StyleConsistency measures how closely the result's Gram matrices match
// the style profile: the cosine similarity per profile layer, averaged.
func StyleConsistency(ex *vision.Extractor, result *tensor.Tensor, profile *style.Profile) (float64, error) {
	layers := profile.Layers()
	features, _, err := ex.Extract(result, layers)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, layer := range layers {
		g := vision.Gram(features[layer])
		sum += gramCosine(g, profile.Gram(layer))
	}
	return sum / float64(len(layers)), nil
}

func gramCosine(a, b *mat.SymDense) float64 {
	n := a.SymmetricDim()
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			weight := 2.0
			if i == j {
				weight = 1.0
			}
			av, bv := a.At(i, j), b.At(i, j)
			dot += weight * av * bv
			na += weight * av * av
			nb += weight * bv * bv
		}
	}
	if na == 0 || nb == 0 {
		if na == 0 && nb == 0 {
			return 1
		}
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// LossImprovement is the relative drop in total loss from the first to the
// last completed step. Runs with no or one completed step score zero.
func LossImprovement(h *synthesis.History) float64 {
	n := h.CompletedSteps()
	if n < 2 {
		return 0
	}
	first, last := h.TotalLoss[0], h.TotalLoss[n-1]
	if first == 0 {
		return 0
	}
	return (first - last) / first
}

// Assess scores a finished synthesis run against its inputs.
func Assess(ex *vision.Extractor, content, result *tensor.Tensor, profile *style.Profile, history *synthesis.History) (Report, error) {
	cs, err := ContentSimilarity(content, result)
	if err != nil {
		return Report{}, err
	}
	sc, err := StyleConsistency(ex, result, profile)
	if err != nil {
		return Report{}, err
	}
	return Report{
		ContentSimilarity: cs,
		StyleConsistency:  sc,
		LossImprovement:   LossImprovement(history),
	}, nil
}
