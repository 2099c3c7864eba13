package enhance

import "image"

// Saturate interpolates linearly between the image and its grayscale
// equivalent (Rec.601 luma). Factor 1.0 is an exact identity; 0 produces
// grayscale; values above 1 boost saturation.
func Saturate(img *image.NRGBA, factor float64) *image.NRGBA {
	out := cloneNRGBA(img)
	if factor == 1.0 {
		return out
	}

	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			o := out.PixOffset(x, y)
			r := float64(out.Pix[o])
			g := float64(out.Pix[o+1])
			bl := float64(out.Pix[o+2])

			gray := 0.299*r + 0.587*g + 0.114*bl
			out.Pix[o] = clampU8(gray + factor*(r-gray))
			out.Pix[o+1] = clampU8(gray + factor*(g-gray))
			out.Pix[o+2] = clampU8(gray + factor*(bl-gray))
		}
	}
	return out
}
