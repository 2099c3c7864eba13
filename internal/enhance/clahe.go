package enhance

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

const claheBins = 256

// LocalContrast applies contrast-limited adaptive histogram equalization to
// the L channel of the Lab representation, then recombines with the
// original chrominance. The clip limit bounds how much any tile may amplify
// contrast; tile mappings are blended bilinearly to avoid seams.
func LocalContrast(img *image.NRGBA, cfg ContrastConfig) *image.NRGBA {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	grid := cfg.TileGridSize
	if w == 0 || h == 0 || grid < 1 {
		return cloneNRGBA(img)
	}
	if grid > w {
		grid = w
	}
	if grid > h {
		grid = h
	}

	// Decompose into Lab; keep a and b untouched.
	lum := make([]float64, w*h)
	aCh := make([]float64, w*h)
	bCh := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			c := colorful.Color{
				R: float64(img.Pix[o]) / 255,
				G: float64(img.Pix[o+1]) / 255,
				B: float64(img.Pix[o+2]) / 255,
			}
			l, a, b := c.Lab()
			i := y*w + x
			lum[i] = l
			aCh[i] = a
			bCh[i] = b
		}
	}

	mappings := claheMappings(lum, w, h, grid, cfg.ClipLimit)

	out := cloneNRGBA(img)
	tileW := float64(w) / float64(grid)
	tileH := float64(h) / float64(grid)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			bin := lumBin(lum[i])

			// Bilinear blend of the four surrounding tile mappings.
			fx := (float64(x)+0.5)/tileW - 0.5
			fy := (float64(y)+0.5)/tileH - 0.5
			tx0 := min(max(int(fx), 0), grid-1)
			ty0 := min(max(int(fy), 0), grid-1)
			tx1 := min(tx0+1, grid-1)
			ty1 := min(ty0+1, grid-1)
			wx := min(max(fx-float64(tx0), 0), 1)
			wy := min(max(fy-float64(ty0), 0), 1)

			top := (1-wx)*mappings[ty0*grid+tx0][bin] + wx*mappings[ty0*grid+tx1][bin]
			bot := (1-wx)*mappings[ty1*grid+tx0][bin] + wx*mappings[ty1*grid+tx1][bin]
			l := (1-wy)*top + wy*bot

			c := colorful.Lab(l, aCh[i], bCh[i]).Clamped()
			o := out.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			r8, g8, b8 := c.RGB255()
			out.Pix[o] = r8
			out.Pix[o+1] = g8
			out.Pix[o+2] = b8
		}
	}
	return out
}

// claheMappings builds the per-tile clipped equalization mapping from
// luminance bin to output luminance in [0, 1].
func claheMappings(lum []float64, w, h, grid int, clipLimit float64) [][claheBins]float64 {
	mappings := make([][claheBins]float64, grid*grid)

	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			x0 := tx * w / grid
			x1 := (tx + 1) * w / grid
			y0 := ty * h / grid
			y1 := (ty + 1) * h / grid
			count := (x1 - x0) * (y1 - y0)
			if count == 0 {
				continue
			}

			var hist [claheBins]float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[lumBin(lum[y*w+x])]++
				}
			}

			if clipLimit > 0 {
				limit := clipLimit * float64(count) / claheBins
				if limit < 1 {
					limit = 1
				}
				var excess float64
				for i := range hist {
					if hist[i] > limit {
						excess += hist[i] - limit
						hist[i] = limit
					}
				}
				// Redistribute the clipped mass uniformly.
				share := excess / claheBins
				for i := range hist {
					hist[i] += share
				}
			}

			var cdf float64
			m := &mappings[ty*grid+tx]
			for i := range hist {
				cdf += hist[i]
				m[i] = cdf / float64(count)
			}
		}
	}
	return mappings
}

func lumBin(l float64) int {
	bin := int(l * (claheBins - 1))
	return min(max(bin, 0), claheBins-1)
}
