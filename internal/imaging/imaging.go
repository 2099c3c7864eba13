// Package imaging converts between the decoded images handed over by the
// service boundary and the [0,1] CHW tensors the synthesis core works on.
package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/atelier-ml/atelier/internal/tensor"
)

// ToTensor converts an image to a float32 [3, H, W] tensor with values in
// [0, 1]. Alpha is dropped.
func ToTensor(img image.Image) *tensor.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := tensor.New(tensor.Shape{3, h, w})
	data := t.Data()
	plane := h * w

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r) / 0xffff
			data[plane+i] = float32(g) / 0xffff
			data[2*plane+i] = float32(bl) / 0xffff
		}
	}
	return t
}

// ToImage converts a [3, H, W] tensor back to an opaque 8-bit image.
// Values are clamped to [0, 1] before quantization.
func ToImage(t *tensor.Tensor) (*image.NRGBA, error) {
	if len(t.Shape()) != 3 || t.Dim(0) != 3 {
		return nil, fmt.Errorf("imaging: expected [3, H, W] tensor, got %v", t.Shape())
	}
	h, w := t.Dim(1), t.Dim(2)
	plane := h * w
	data := t.Data()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			o := img.PixOffset(x, y)
			img.Pix[o] = quantize(data[i])
			img.Pix[o+1] = quantize(data[plane+i])
			img.Pix[o+2] = quantize(data[2*plane+i])
			img.Pix[o+3] = 0xff
		}
	}
	return img, nil
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Resize scales the image to exactly w x h with Catmull-Rom resampling.
// Style references are resized this way to match the content dimensions.
func Resize(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(out, out.Rect, img, b.Min, draw.Src)
		return out
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Rect, img, b, draw.Src, nil)
	return out
}

// FitWithin scales the image down so its longer side is at most maxSize,
// preserving aspect ratio with Catmull-Rom resampling. Images already
// within the bound are returned as a plain NRGBA copy.
func FitWithin(img image.Image, maxSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	longer := max(w, h)
	if maxSize <= 0 || longer <= maxSize {
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(out, out.Rect, img, b.Min, draw.Src)
		return out
	}

	ratio := float64(maxSize) / float64(longer)
	nw := max(int(float64(w)*ratio), 1)
	nh := max(int(float64(h)*ratio), 1)

	out := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(out, out.Rect, img, b, draw.Src, nil)
	return out
}
