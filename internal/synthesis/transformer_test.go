package synthesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ml/atelier/internal/enhance"
	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/tensor"
)

func testTransformerDefaults() Defaults {
	d := DefaultConfig()
	d.Steps = 3
	d.ContentLayers = []string{"conv2_1"}
	d.StyleLayers = []string{"conv1_1", "conv2_1"}
	d.Enhancement = enhance.Disabled()
	return d
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	d := testTransformerDefaults()
	p := resolve(Request{}, d)

	assert.Equal(t, d.Steps, p.Steps)
	assert.Equal(t, d.LearningRate, p.LearningRate)
	assert.Equal(t, d.Weights, p.Weights)
	assert.Equal(t, d.ContentLayers, p.ContentLayers)
	assert.Equal(t, d.StyleLayers, p.StyleLayers)
	assert.Equal(t, d.Enhancement, p.Enhancement)
}

func TestResolveAppliesOverrides(t *testing.T) {
	d := testTransformerDefaults()
	w := style.Weights{Content: 2, Style: 5, TV: 0.5}
	cfg := enhance.DefaultConfig()
	p := resolve(Request{
		Steps:         7,
		LearningRate:  0.5,
		Weights:       &w,
		ContentLayers: []string{"conv1_2"},
		StyleLayers:   []string{"conv1_1"},
		Enhancement:   &cfg,
	}, d)

	assert.Equal(t, 7, p.Steps)
	assert.Equal(t, 0.5, p.LearningRate)
	assert.Equal(t, w, p.Weights)
	assert.Equal(t, []string{"conv1_2"}, p.ContentLayers)
	assert.Equal(t, []string{"conv1_1"}, p.StyleLayers)
	assert.Equal(t, cfg, p.Enhancement)
}

func TestDefaultConfig(t *testing.T) {
	d := DefaultConfig()
	assert.Equal(t, 300, d.Steps)
	assert.Equal(t, style.DefaultWeights(), d.Weights)
	assert.Equal(t, []string{"conv4_2"}, d.ContentLayers)
	assert.Equal(t,
		[]string{"conv1_1", "conv2_1", "conv3_1", "conv4_1", "conv5_1"},
		d.StyleLayers)
	assert.NoError(t, d.Weights.Validate())
}

func TestSynthesizeRejectsBadRequests(t *testing.T) {
	tr := NewTransformer(testExtractor(t), testTransformerDefaults())

	_, err := tr.Synthesize(context.Background(), Request{
		Styles: []*tensor.Tensor{randImage(1, 8, 8)},
	})
	assert.Error(t, err, "missing content")

	_, err = tr.Synthesize(context.Background(), Request{
		Content: randImage(2, 8, 8),
	})
	assert.ErrorIs(t, err, style.ErrNoStyleReferences)
}

func TestSynthesizeProducesResult(t *testing.T) {
	tr := NewTransformer(testExtractor(t), testTransformerDefaults())

	res, err := tr.Synthesize(context.Background(), Request{
		Content: randImage(3, 8, 8),
		Styles:  []*tensor.Tensor{randImage(4, 8, 8)},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Image)
	assert.Equal(t, 8, res.Image.Bounds().Dx())
	assert.Equal(t, 8, res.Image.Bounds().Dy())
	assert.Equal(t, tensor.Shape{3, 8, 8}, res.Canvas.Shape())
	assert.Equal(t, 3, res.History.Len())

	a := res.Applied
	assert.Equal(t, 3, a.Steps)
	assert.Equal(t, 3, a.CompletedSteps)
	assert.False(t, a.Aborted)
	assert.Equal(t, []string{"conv2_1"}, a.ContentLayers)
	assert.Equal(t, []string{"conv1_1", "conv2_1"}, a.StyleLayers)
	assert.Equal(t, style.DefaultWeights().Content, a.ContentWeight)
	assert.Equal(t, style.DefaultWeights().Style, a.StyleWeight)
	assert.Equal(t, style.DefaultWeights().TV, a.TVWeight)
}

func TestSynthesizeEchoesOverrides(t *testing.T) {
	tr := NewTransformer(testExtractor(t), testTransformerDefaults())

	w := style.Weights{Content: 2, Style: 10, TV: 0.1}
	res, err := tr.Synthesize(context.Background(), Request{
		Content:      randImage(5, 8, 8),
		Styles:       []*tensor.Tensor{randImage(6, 8, 8)},
		Weights:      &w,
		Steps:        2,
		LearningRate: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Applied.Steps)
	assert.Equal(t, 0.1, res.Applied.LearningRate)
	assert.Equal(t, w.Content, res.Applied.ContentWeight)
	assert.Equal(t, w.Style, res.Applied.StyleWeight)
	assert.Equal(t, w.TV, res.Applied.TVWeight)
	assert.Equal(t, 2, res.History.Len())
}

func TestSynthesizeReportsAbortOnCancellation(t *testing.T) {
	tr := NewTransformer(testExtractor(t), testTransformerDefaults())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := tr.Synthesize(ctx, Request{
		Content: randImage(7, 8, 8),
		Styles:  []*tensor.Tensor{randImage(8, 8, 8)},
	})
	require.NoError(t, err)

	assert.True(t, res.Applied.Aborted)
	assert.Equal(t, 0, res.Applied.CompletedSteps)
	// The canvas never left its initial state: the output image is the
	// (clamped) content image.
	require.NotNil(t, res.Image)
}

func TestSynthesizeObserverFires(t *testing.T) {
	tr := NewTransformer(testExtractor(t), testTransformerDefaults())

	var calls int
	_, err := tr.Synthesize(context.Background(), Request{
		Content:  randImage(9, 8, 8),
		Styles:   []*tensor.Tensor{randImage(10, 8, 8)},
		Observer: func(step int, _ *tensor.Tensor, _ *History) { calls++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
