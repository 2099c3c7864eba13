package synthesis

import (
	"context"
	"fmt"
	"image"

	"github.com/atelier-ml/atelier/internal/enhance"
	"github.com/atelier-ml/atelier/internal/imaging"
	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// Defaults is the process-level configuration a Transformer is built with.
// Per-request overrides are resolved against it exactly once per request.
type Defaults struct {
	Steps         int
	LearningRate  float64
	Weights       style.Weights
	ContentLayers []string
	StyleLayers   []string
	Enhancement   enhance.Config
}

// DefaultConfig returns the stock synthesis configuration.
func DefaultConfig() Defaults {
	return Defaults{
		Steps:         300,
		LearningRate:  0.02,
		Weights:       style.DefaultWeights(),
		ContentLayers: []string{"conv4_2"},
		StyleLayers:   []string{"conv1_1", "conv2_1", "conv3_1", "conv4_1", "conv5_1"},
		Enhancement:   enhance.DefaultConfig(),
	}
}

// Request carries one synthesis job. Zero/nil fields fall back to the
// transformer's defaults during resolution.
type Request struct {
	Content *tensor.Tensor
	Styles  []*tensor.Tensor

	Weights       *style.Weights
	Steps         int
	LearningRate  float64
	ContentLayers []string
	StyleLayers   []string
	Enhancement   *enhance.Config

	Observer Observer
}

// resolved is the single immutable parameter record a request runs with;
// every downstream component consumes it instead of re-applying fallbacks.
type resolved struct {
	Steps         int
	LearningRate  float64
	Weights       style.Weights
	ContentLayers []string
	StyleLayers   []string
	Enhancement   enhance.Config
}

func resolve(req Request, d Defaults) resolved {
	r := resolved{
		Steps:         d.Steps,
		LearningRate:  d.LearningRate,
		Weights:       d.Weights,
		ContentLayers: d.ContentLayers,
		StyleLayers:   d.StyleLayers,
		Enhancement:   d.Enhancement,
	}
	if req.Steps > 0 {
		r.Steps = req.Steps
	}
	if req.LearningRate > 0 {
		r.LearningRate = req.LearningRate
	}
	if req.Weights != nil {
		r.Weights = *req.Weights
	}
	if len(req.ContentLayers) > 0 {
		r.ContentLayers = req.ContentLayers
	}
	if len(req.StyleLayers) > 0 {
		r.StyleLayers = req.StyleLayers
	}
	if req.Enhancement != nil {
		r.Enhancement = *req.Enhancement
	}
	return r
}

// AppliedParams echoes every effectively used parameter of a run, for
// audit and response purposes. Aborted plus CompletedSteps make early
// termination detectable without digging through the history.
type AppliedParams struct {
	ContentWeight  float64
	StyleWeight    float64
	TVWeight       float64
	Steps          int
	LearningRate   float64
	ContentLayers  []string
	StyleLayers    []string
	Enhancement    enhance.Config
	CompletedSteps int
	Aborted        bool
}

// Result is the outcome of one synthesis request.
type Result struct {
	Image   *image.NRGBA   // Post-processed output.
	Canvas  *tensor.Tensor // Final canvas before post-processing.
	History *History
	Applied AppliedParams
}

// Transformer is the process-scoped entry point: it holds the shared
// frozen feature extractor and the default configuration. It is safe for
// concurrent use; every Synthesize call builds its own engine state.
type Transformer struct {
	ex       *vision.Extractor
	defaults Defaults
}

// NewTransformer builds a transformer around a frozen extractor.
func NewTransformer(ex *vision.Extractor, defaults Defaults) *Transformer {
	return &Transformer{ex: ex, defaults: defaults}
}

// Synthesize runs one full style-synthesis request: parameter resolution,
// validation, the optimization loop, and the post-processing chain.
//
// Validation failures (nil content, empty style list, unknown layers,
// dimension mismatches, bad weights) return an error before any step runs.
// Numerical divergence and context cancellation do not: they produce a
// partial result flagged in AppliedParams.
func (t *Transformer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("synthesis: content image is required")
	}
	p := resolve(req, t.defaults)

	engine, err := NewEngine(t.ex, req.Content, req.Styles,
		p.ContentLayers, p.StyleLayers, p.Weights,
		p.Steps, p.LearningRate, req.Observer)
	if err != nil {
		return nil, err
	}

	canvas, history := engine.Run(ctx)

	img, err := imaging.ToImage(canvas)
	if err != nil {
		return nil, err
	}
	img = enhance.Apply(img, p.Enhancement)

	return &Result{
		Image:   img,
		Canvas:  canvas,
		History: history,
		Applied: AppliedParams{
			ContentWeight:  p.Weights.Content,
			StyleWeight:    p.Weights.Style,
			TVWeight:       p.Weights.TV,
			Steps:          p.Steps,
			LearningRate:   p.LearningRate,
			ContentLayers:  append([]string(nil), p.ContentLayers...),
			StyleLayers:    append([]string(nil), p.StyleLayers...),
			Enhancement:    p.Enhancement,
			CompletedSteps: history.CompletedSteps(),
			Aborted:        engine.State() == StateAborted,
		},
	}, nil
}
