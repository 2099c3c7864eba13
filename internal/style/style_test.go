package style

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

func testExtractor(t *testing.T) *vision.Extractor {
	t.Helper()
	arch := vision.Arch{
		Name:       "tiny",
		InChannels: 3,
		ConvsPer:   []int{2, 1},
		Channels:   []int{4, 6},
		Mean:       []float32{0, 0, 0},
		Std:        []float32{1, 1, 1},
	}
	net, err := vision.SeededNetwork(arch, 17)
	require.NoError(t, err)
	return vision.NewExtractor(net)
}

func randomImage(t *testing.T, seed int64, h, w int) *tensor.Tensor {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := tensor.New(tensor.Shape{3, h, w})
	data := img.Data()
	for i := range data {
		data[i] = rng.Float32()
	}
	return img
}

func TestComputeProfileRequiresReferences(t *testing.T) {
	ex := testExtractor(t)
	_, err := ComputeProfile(ex, nil, []string{"conv1_1"})
	assert.ErrorIs(t, err, ErrNoStyleReferences)
}

func TestComputeProfileRejectsUnknownLayer(t *testing.T) {
	ex := testExtractor(t)
	_, err := ComputeProfile(ex, []*tensor.Tensor{randomImage(t, 1, 8, 8)}, []string{"conv7_7"})
	assert.ErrorIs(t, err, vision.ErrUnknownLayer)
}

// Averaging N identical references must reproduce the single-image Gram.
func TestProfileIdempotentOverIdenticalReferences(t *testing.T) {
	ex := testExtractor(t)
	img := randomImage(t, 2, 8, 8)
	layers := []string{"conv1_1", "conv2_1"}

	single, err := ComputeProfile(ex, []*tensor.Tensor{img}, layers)
	require.NoError(t, err)
	tripled, err := ComputeProfile(ex, []*tensor.Tensor{img, img.Clone(), img.Clone()}, layers)
	require.NoError(t, err)

	for _, layer := range layers {
		a, b := single.Gram(layer), tripled.Gram(layer)
		n := a.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				assert.InDelta(t, a.At(i, j), b.At(i, j), 1e-9)
			}
		}
	}
}

// Two distinct references produce exactly the element-wise mean (G1+G2)/2.
func TestProfileAveragesTwoReferences(t *testing.T) {
	ex := testExtractor(t)
	ref1 := randomImage(t, 3, 8, 8)
	ref2 := randomImage(t, 4, 8, 8)
	layers := []string{"conv1_2", "conv2_1"}

	p1, err := ComputeProfile(ex, []*tensor.Tensor{ref1}, layers)
	require.NoError(t, err)
	p2, err := ComputeProfile(ex, []*tensor.Tensor{ref2}, layers)
	require.NoError(t, err)
	avg, err := ComputeProfile(ex, []*tensor.Tensor{ref1, ref2}, layers)
	require.NoError(t, err)

	for _, layer := range layers {
		g1, g2, g := p1.Gram(layer), p2.Gram(layer), avg.Gram(layer)
		n := g.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				assert.Equal(t, (g1.At(i, j)+g2.At(i, j))/2, g.At(i, j))
			}
		}
	}
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Content: 0, Style: 1, TV: 1}.Validate())
	assert.Error(t, Weights{Content: 1, Style: -2, TV: 1}.Validate())
}

// Content loss of an image against itself is zero for any content layer.
func TestContentLossOfSelfIsZero(t *testing.T) {
	ex := testExtractor(t)
	img := randomImage(t, 5, 8, 8)

	profile, err := ComputeProfile(ex, []*tensor.Tensor{img}, []string{"conv1_1"})
	require.NoError(t, err)
	model, err := NewModel(ex, img, profile, []string{"conv2_1"}, DefaultWeights())
	require.NoError(t, err)

	features, _, err := ex.Extract(img, model.Layers())
	require.NoError(t, err)
	terms, _ := model.Evaluate(img, features)

	assert.InDelta(t, 0, terms.Content, 1e-10)
	assert.InDelta(t, 0, terms.Style, 1e-10)
}

func TestTVTermKnownValue(t *testing.T) {
	// One channel, 2x2: [[0, 1], [0, 0]].
	canvas, err := tensor.FromSlice([]float32{0, 1, 0, 0}, tensor.Shape{1, 2, 2})
	require.NoError(t, err)

	loss, grad := tvTerm(canvas, 1)
	// Vertical pairs: |0-0| + |0-1| over 2; horizontal: |1-0| + |0-0| over 2.
	assert.InDelta(t, 0.5+0.5, loss, 1e-9)
	assert.NotNil(t, grad)

	uniform := tensor.Full(tensor.Shape{3, 4, 4}, 0.25)
	loss, grad = tvTerm(uniform, 1)
	assert.Zero(t, loss)
	assert.Equal(t, float32(0), grad.MaxAbs())
}

// The assembled objective gradient (feature seeds backpropagated through
// the extractor plus the TV canvas term) must match finite differences.
func TestObjectiveGradientCheck(t *testing.T) {
	ex := testExtractor(t)
	content := randomImage(t, 6, 6, 6)
	ref := randomImage(t, 7, 6, 6)
	weights := Weights{Content: 1, Style: 50, TV: 0.01}

	profile, err := ComputeProfile(ex, []*tensor.Tensor{ref}, []string{"conv1_1", "conv2_1"})
	require.NoError(t, err)
	model, err := NewModel(ex, content, profile, []string{"conv1_2"}, weights)
	require.NoError(t, err)

	canvas := randomImage(t, 8, 6, 6)

	total := func(x *tensor.Tensor) float64 {
		features, _, err := ex.Extract(x, model.Layers())
		require.NoError(t, err)
		terms, _ := model.Evaluate(x, features)
		return terms.Total
	}

	features, acts, err := ex.Extract(canvas, model.Layers())
	require.NoError(t, err)
	_, seeds := model.Evaluate(canvas, features)
	grad := ex.Backward(acts, seeds.Features)
	grad.AddScaled(seeds.Canvas, 1)

	const eps = 1e-2
	data := canvas.Data()
	for _, i := range []int{0, 13, 29, 47, 71, 95} {
		orig := data[i]
		data[i] = orig + eps
		plus := total(canvas)
		data[i] = orig - eps
		minus := total(canvas)
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		tol := math.Max(5e-3, 0.05*math.Abs(numeric))
		assert.InDelta(t, numeric, float64(grad.Data()[i]), tol, "pixel %d", i)
	}
}
