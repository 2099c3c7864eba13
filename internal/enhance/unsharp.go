package enhance

import (
	"image"
	"math"
)

// UnsharpMask sharpens by amplifying the difference between the image and a
// gaussian-blurred copy: sharpened = (amount+1)·original − amount·blurred,
// clipped to the valid range. With a positive threshold, pixels whose
// blur difference stays below it on every channel are left unmodified so
// near-flat noise is not amplified.
func UnsharpMask(img *image.NRGBA, cfg SharpenConfig) *image.NRGBA {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if w == 0 || h == 0 {
		return cloneNRGBA(img)
	}

	planes := toPlanes(img)
	blurred := [3][]float64{}
	for c := 0; c < 3; c++ {
		blurred[c] = gaussianBlur(planes[c], w, h, cfg.KernelSize, cfg.Sigma)
	}

	out := cloneNRGBA(img)
	thr := float64(cfg.Threshold)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x

			if thr > 0 {
				lowContrast := true
				for c := 0; c < 3; c++ {
					if math.Abs(planes[c][i]-blurred[c][i]) >= thr {
						lowContrast = false
						break
					}
				}
				if lowContrast {
					continue
				}
			}

			o := out.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			for c := 0; c < 3; c++ {
				v := (cfg.Amount+1)*planes[c][i] - cfg.Amount*blurred[c][i]
				out.Pix[o+c] = clampU8(v)
			}
		}
	}
	return out
}

// toPlanes splits the RGB channels into float64 planes indexed y*w+x.
func toPlanes(img *image.NRGBA) [3][]float64 {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	var planes [3][]float64
	for c := range planes {
		planes[c] = make([]float64, w*h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			for c := 0; c < 3; c++ {
				planes[c][y*w+x] = float64(img.Pix[o+c])
			}
		}
	}
	return planes
}

// gaussianBlur applies a separable gaussian filter with replicated edges.
func gaussianBlur(plane []float64, w, h, kernelSize int, sigma float64) []float64 {
	kernel := gaussianKernel(kernelSize, sigma)
	r := len(kernel) / 2

	tmp := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		row := plane[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				xi := min(max(x+k-r, 0), w-1)
				sum += kv * row[xi]
			}
			tmp[y*w+x] = sum
		}
	}

	out := make([]float64, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				yi := min(max(y+k-r, 0), h-1)
				sum += kv * tmp[yi*w+x]
			}
			out[y*w+x] = sum
		}
	}
	return out
}

func gaussianKernel(size int, sigma float64) []float64 {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	if sigma <= 0 {
		// OpenCV's convention for auto sigma from the kernel size.
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}

	kernel := make([]float64, size)
	r := size / 2
	var sum float64
	for i := range kernel {
		d := float64(i - r)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
