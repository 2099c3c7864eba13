package vision

import (
	"github.com/atelier-ml/atelier/internal/parallel"
	"github.com/atelier-ml/atelier/internal/tensor"
)

// Convolution kernels for single-image CHW tensors, 3x3 stride-1 with
// one-pixel zero padding (the only geometry the feature network uses).
// Forward parallelizes over output channels, backward over input channels;
// each goroutine writes a disjoint channel plane, so results are
// deterministic.

// convForward computes out[oc] = sum_ic input[ic] * weight[oc,ic] + bias[oc].
func convForward(input, weight *tensor.Tensor, bias []float32, par parallel.Config) *tensor.Tensor {
	inC, h, w := input.Dim(0), input.Dim(1), input.Dim(2)
	outC := weight.Dim(0)

	out := tensor.New(tensor.Shape{outC, h, w})
	in := input.Data()
	wd := weight.Data()
	od := out.Data()

	parallel.For(outC, par, func(oc int) {
		plane := od[oc*h*w : (oc+1)*h*w]
		kernOC := wd[oc*inC*kernelSize*kernelSize : (oc+1)*inC*kernelSize*kernelSize]
		b := bias[oc]

		for oh := 0; oh < h; oh++ {
			for ow := 0; ow < w; ow++ {
				sum := b
				for ic := 0; ic < inC; ic++ {
					inPlane := in[ic*h*w : (ic+1)*h*w]
					kern := kernOC[ic*kernelSize*kernelSize : (ic+1)*kernelSize*kernelSize]
					for kh := 0; kh < kernelSize; kh++ {
						ih := oh - convPadding + kh
						if ih < 0 || ih >= h {
							continue
						}
						row := inPlane[ih*w : (ih+1)*w]
						for kw := 0; kw < kernelSize; kw++ {
							iw := ow - convPadding + kw
							if iw < 0 || iw >= w {
								continue
							}
							sum += kern[kh*kernelSize+kw] * row[iw]
						}
					}
				}
				plane[oh*w+ow] = sum
			}
		}
	})
	return out
}

// convInputBackward distributes the output gradient back through the kernel
// to input positions (transposed convolution). Weight gradients are never
// computed: the network is frozen and only the input is differentiable.
func convInputBackward(grad, weight *tensor.Tensor, inC, h, w int, par parallel.Config) *tensor.Tensor {
	outC := weight.Dim(0)

	inGrad := tensor.New(tensor.Shape{inC, h, w})
	gd := grad.Data()
	wd := weight.Data()
	igd := inGrad.Data()

	parallel.For(inC, par, func(ic int) {
		plane := igd[ic*h*w : (ic+1)*h*w]

		for oc := 0; oc < outC; oc++ {
			gradPlane := gd[oc*h*w : (oc+1)*h*w]
			kern := wd[(oc*inC+ic)*kernelSize*kernelSize : (oc*inC+ic+1)*kernelSize*kernelSize]

			for oh := 0; oh < h; oh++ {
				for ow := 0; ow < w; ow++ {
					g := gradPlane[oh*w+ow]
					if g == 0 {
						continue
					}
					for kh := 0; kh < kernelSize; kh++ {
						ih := oh - convPadding + kh
						if ih < 0 || ih >= h {
							continue
						}
						for kw := 0; kw < kernelSize; kw++ {
							iw := ow - convPadding + kw
							if iw < 0 || iw >= w {
								continue
							}
							plane[ih*w+iw] += g * kern[kh*kernelSize+kw]
						}
					}
				}
			}
		}
	})
	return inGrad
}

// reluForward returns max(0, x) element-wise. Not in place: conv outputs are
// cached as feature taps and must survive the activation.
func reluForward(input *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(input.Shape())
	in := input.Data()
	od := out.Data()
	for i, v := range in {
		if v > 0 {
			od[i] = v
		}
	}
	return out
}

// reluBackward masks the gradient where the forward input was non-positive.
func reluBackward(grad, input *tensor.Tensor) *tensor.Tensor {
	out := tensor.New(grad.Shape())
	gd := grad.Data()
	in := input.Data()
	od := out.Data()
	for i, v := range in {
		if v > 0 {
			od[i] = gd[i]
		}
	}
	return out
}

// maxPoolForward performs 2x2 stride-2 max pooling and records, for each
// output element, the flat input index of its maximum. The indices route
// gradients in the backward pass.
func maxPoolForward(input *tensor.Tensor) (*tensor.Tensor, []int) {
	c, h, w := input.Dim(0), input.Dim(1), input.Dim(2)
	hOut := (h-poolSize)/poolStride + 1
	wOut := (w-poolSize)/poolStride + 1

	out := tensor.New(tensor.Shape{c, hOut, wOut})
	indices := make([]int, c*hOut*wOut)
	in := input.Data()
	od := out.Data()

	outIdx := 0
	for ch := 0; ch < c; ch++ {
		base := ch * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				hStart := oh * poolStride
				wStart := ow * poolStride
				maxIdx := base + hStart*w + wStart
				maxVal := in[maxIdx]
				for kh := 0; kh < poolSize; kh++ {
					for kw := 0; kw < poolSize; kw++ {
						idx := base + (hStart+kh)*w + (wStart + kw)
						if in[idx] > maxVal {
							maxVal = in[idx]
							maxIdx = idx
						}
					}
				}
				od[outIdx] = maxVal
				indices[outIdx] = maxIdx
				outIdx++
			}
		}
	}
	return out, indices
}

// maxPoolBackward routes each output gradient to the input position that won
// the forward max; every other window position receives zero.
func maxPoolBackward(grad *tensor.Tensor, indices []int, inShape tensor.Shape) *tensor.Tensor {
	inGrad := tensor.New(inShape)
	gd := grad.Data()
	igd := inGrad.Data()
	for i, pos := range indices {
		igd[pos] += gd[i]
	}
	return inGrad
}

// normalizeForward applies the fixed per-channel (x-mean)/std input
// transform. It is linear, so it stays differentiable with respect to the
// canvas while keeping the canvas itself in the [0,1] pixel domain.
func normalizeForward(input *tensor.Tensor, mean, std []float32) *tensor.Tensor {
	c, h, w := input.Dim(0), input.Dim(1), input.Dim(2)
	out := tensor.New(input.Shape())
	in := input.Data()
	od := out.Data()
	for ch := 0; ch < c; ch++ {
		m, s := mean[ch], std[ch]
		plane := in[ch*h*w : (ch+1)*h*w]
		outPlane := od[ch*h*w : (ch+1)*h*w]
		for i, v := range plane {
			outPlane[i] = (v - m) / s
		}
	}
	return out
}

// normalizeBackward is the gradient of normalizeForward: divide by std.
func normalizeBackward(grad *tensor.Tensor, std []float32) *tensor.Tensor {
	c, h, w := grad.Dim(0), grad.Dim(1), grad.Dim(2)
	out := tensor.New(grad.Shape())
	gd := grad.Data()
	od := out.Data()
	for ch := 0; ch < c; ch++ {
		s := std[ch]
		plane := gd[ch*h*w : (ch+1)*h*w]
		outPlane := od[ch*h*w : (ch+1)*h*w]
		for i, v := range plane {
			outPlane[i] = v / s
		}
	}
	return out
}
