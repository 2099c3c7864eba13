package vision

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ml/atelier/internal/tensor"
)

// tinyArch is a two-block network small enough for exhaustive checks.
func tinyArch() Arch {
	return Arch{
		Name:       "tiny",
		InChannels: 3,
		ConvsPer:   []int{2, 1},
		Channels:   []int{4, 6},
		Mean:       []float32{0, 0, 0},
		Std:        []float32{1, 1, 1},
	}
}

func randomImage(t *testing.T, c, h, w int, seed int64) *tensor.Tensor {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := tensor.New(tensor.Shape{c, h, w})
	data := img.Data()
	for i := range data {
		data[i] = rng.Float32()
	}
	return img
}

func TestArchCatalog(t *testing.T) {
	names := VGG19().TapNames()
	assert.Len(t, names, 16)
	assert.Equal(t, "conv1_1", names[0])
	assert.Equal(t, "conv3_4", names[7])
	assert.Equal(t, "conv5_4", names[15])

	assert.Equal(t, []string{"conv1_1", "conv1_2", "conv2_1"}, tinyArch().TapNames())
}

func TestArchValidate(t *testing.T) {
	bad := tinyArch()
	bad.Std = []float32{1, 0, 1}
	assert.Error(t, bad.Validate())

	bad = tinyArch()
	bad.Channels = []int{4}
	assert.Error(t, bad.Validate())

	assert.NoError(t, VGG19().Validate())
}

func TestValidateLayers(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 1)
	require.NoError(t, err)

	assert.NoError(t, net.ValidateLayers([]string{"conv1_1", "conv2_1"}))

	err = net.ValidateLayers([]string{"conv1_1", "conv9_9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLayer))

	var layerErr *LayerError
	require.ErrorAs(t, err, &layerErr)
	assert.Equal(t, "conv9_9", layerErr.Layer)
}

func TestSeededNetworkDeterministic(t *testing.T) {
	a, err := SeededNetwork(tinyArch(), 42)
	require.NoError(t, err)
	b, err := SeededNetwork(tinyArch(), 42)
	require.NoError(t, err)

	for i, o := range a.ops {
		if o.kind != opConv {
			continue
		}
		assert.Equal(t, o.weight.Data(), b.ops[i].weight.Data())
	}

	c, err := SeededNetwork(tinyArch(), 43)
	require.NoError(t, err)
	assert.NotEqual(t, a.ops[1].weight.Data(), c.ops[1].weight.Data())
}

func TestExtractShapesAndTruncation(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 7)
	require.NoError(t, err)
	ex := NewExtractor(net)

	img := randomImage(t, 3, 8, 8, 11)
	features, acts, err := ex.Extract(img, []string{"conv1_2", "conv2_1"})
	require.NoError(t, err)

	// Block 1 taps keep full resolution; block 2 follows a 2x2 pool.
	assert.True(t, features["conv1_2"].Shape().Equal(tensor.Shape{4, 8, 8}))
	assert.True(t, features["conv2_1"].Shape().Equal(tensor.Shape{6, 4, 4}))
	assert.NotContains(t, features, "conv1_1")

	// Evaluation stops at the deepest requested tap: conv2_1's op index.
	assert.Equal(t, net.index["conv2_1"], acts.last)
	for i := acts.last + 1; i < len(acts.outputs); i++ {
		assert.Nil(t, acts.outputs[i])
	}
}

func TestExtractRejectsBadInput(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 7)
	require.NoError(t, err)
	ex := NewExtractor(net)

	_, _, err = ex.Extract(tensor.New(tensor.Shape{1, 8, 8}), []string{"conv1_1"})
	assert.Error(t, err)

	_, _, err = ex.Extract(randomImage(t, 3, 8, 8, 1), []string{"nope"})
	assert.True(t, errors.Is(err, ErrUnknownLayer))
}

// TestBackwardGradientCheck validates the full backward path (normalize,
// conv, relu, pool) against central finite differences of a scalar readout.
func TestBackwardGradientCheck(t *testing.T) {
	arch := tinyArch()
	arch.Mean = []float32{0.4, 0.5, 0.3}
	arch.Std = []float32{0.5, 0.6, 0.7}
	net, err := SeededNetwork(arch, 21)
	require.NoError(t, err)
	ex := NewExtractor(net)

	layers := []string{"conv1_1", "conv2_1"}
	img := randomImage(t, 3, 6, 6, 3)

	// Scalar readout: sum of all tapped activations. Seeding ones at every
	// tap makes Backward produce its exact gradient.
	readout := func(x *tensor.Tensor) float64 {
		features, _, err := ex.Extract(x, layers)
		require.NoError(t, err)
		var sum float64
		for _, name := range layers {
			for _, v := range features[name].Data() {
				sum += float64(v)
			}
		}
		return sum
	}

	features, acts, err := ex.Extract(img, layers)
	require.NoError(t, err)
	seeds := make(map[string]*tensor.Tensor, len(layers))
	for _, name := range layers {
		seeds[name] = tensor.Full(features[name].Shape(), 1)
	}
	grad := ex.Backward(acts, seeds)
	require.True(t, grad.Shape().Equal(img.Shape()))

	const eps = 1e-2
	data := img.Data()
	for _, i := range []int{0, 17, 35, 54, 80, 107} {
		orig := data[i]
		data[i] = orig + eps
		plus := readout(img)
		data[i] = orig - eps
		minus := readout(img)
		data[i] = orig

		numeric := (plus - minus) / (2 * eps)
		assert.InDelta(t, numeric, float64(grad.Data()[i]), 2e-2, "pixel %d", i)
	}
}

func TestGramSymmetricAndNormalized(t *testing.T) {
	f := randomImage(t, 5, 7, 9, 13)
	g := Gram(f)

	require.Equal(t, 5, g.SymmetricDim())
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			assert.InDelta(t, g.At(i, j), g.At(j, i), 1e-12)
		}
	}

	// Spot-check one entry against the definition.
	var want float64
	hw := 7 * 9
	a := f.Data()[1*hw : 2*hw]
	b := f.Data()[3*hw : 4*hw]
	for i := range a {
		want += float64(a[i]) * float64(b[i])
	}
	want /= float64(5 * hw)
	assert.InDelta(t, want, g.At(1, 3), 1e-9)
}

func TestGramConstantFeature(t *testing.T) {
	f := tensor.Full(tensor.Shape{2, 4, 4}, 2)
	g := Gram(f)

	// Every inner product is 4*16/(2*16) = 2.
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 2.0, g.At(i, j), 1e-9)
		}
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 99)
	require.NoError(t, err)
	set := NetworkWeights(net)

	path := t.TempDir() + "/tiny.atwb"
	require.NoError(t, SaveWeights(path, set))

	loaded, err := LoadWeights(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(set))
	for name, want := range set {
		got, ok := loaded[name]
		require.True(t, ok, "missing %q", name)
		assert.True(t, want.Shape().Equal(got.Shape()))
		assert.Equal(t, want.Data(), got.Data())
	}

	// A network rebuilt from the round-tripped weights matches the original.
	rebuilt, err := NewNetwork(tinyArch(), loaded)
	require.NoError(t, err)
	img := randomImage(t, 3, 8, 8, 5)
	origFeat, _, err := NewExtractor(net).Extract(img, []string{"conv2_1"})
	require.NoError(t, err)
	rebFeat, _, err := NewExtractor(rebuilt).Extract(img, []string{"conv2_1"})
	require.NoError(t, err)
	assert.Equal(t, origFeat["conv2_1"].Data(), rebFeat["conv2_1"].Data())
}

func TestLoadWeightsRejectsCorruption(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 5)
	require.NoError(t, err)

	path := t.TempDir() + "/tiny.atwb"
	require.NoError(t, SaveWeights(path, NetworkWeights(net)))

	data, err := encodeWeights(NetworkWeights(net))
	require.NoError(t, err)
	data[20] ^= 0xFF
	_, err = decodeWeights(data)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	_, err = decodeWeights([]byte("not a weights file at all........"))
	assert.Error(t, err)

	_, err = LoadWeights(t.TempDir() + "/missing.atwb")
	var resErr *ResourceError
	assert.ErrorAs(t, err, &resErr)
}

func TestNewNetworkRejectsBadWeights(t *testing.T) {
	net, err := SeededNetwork(tinyArch(), 5)
	require.NoError(t, err)
	set := NetworkWeights(net)

	delete(set, "conv2_1.bias")
	_, err = NewNetwork(tinyArch(), set)
	var resErr *ResourceError
	require.ErrorAs(t, err, &resErr)

	set = NetworkWeights(net)
	set["conv1_1.weight"] = tensor.New(tensor.Shape{4, 3, 5, 5})
	_, err = NewNetwork(tinyArch(), set)
	assert.ErrorAs(t, err, &resErr)
}
