package vision

import (
	"gonum.org/v1/gonum/mat"

	"github.com/atelier-ml/atelier/internal/tensor"
)

// Gram computes the channel×channel Gram matrix of a feature map: spatial
// dimensions are flattened and the channel inner products are normalized by
// C·H·W so magnitudes stay comparable across layers of different size.
//
// The result is a SymDense, symmetric by construction.
func Gram(f *tensor.Tensor) *mat.SymDense {
	c := f.Dim(0)
	hw := f.Dim(1) * f.Dim(2)

	fm := FlattenSpatial(f)
	g := mat.NewSymDense(c, nil)
	g.SymOuterK(1/float64(c*hw), fm)
	return g
}

// FlattenSpatial reshapes a [C, H, W] feature map into a C×(H·W) matrix in
// float64, the layout Gram and the style-loss gradient both work in.
func FlattenSpatial(f *tensor.Tensor) *mat.Dense {
	c := f.Dim(0)
	hw := f.Dim(1) * f.Dim(2)

	data := make([]float64, c*hw)
	for i, v := range f.Data() {
		data[i] = float64(v)
	}
	return mat.NewDense(c, hw, data)
}
