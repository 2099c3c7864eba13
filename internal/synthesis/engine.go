// Package synthesis owns the iterative style-synthesis loop: per-request
// engine state, the moment-based canvas optimizer, loss history, and the
// request-level Transformer that ties feature extraction, statistics,
// optimization, and post-processing together.
package synthesis

import (
	"context"
	"fmt"

	"github.com/atelier-ml/atelier/internal/style"
	"github.com/atelier-ml/atelier/internal/tensor"
	"github.com/atelier-ml/atelier/internal/vision"
)

// State is the engine lifecycle state.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateCompleted
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Observer receives per-step progress: the step index, a private copy of
// the canvas, and a snapshot of the history so far. Observers cannot alter
// engine state through what they are handed.
type Observer func(step int, canvas *tensor.Tensor, history *History)

// Engine runs the optimization loop for a single request. It owns the
// mutable canvas, the optimizer moments, and the history; nothing in it is
// shared with other requests. Steps are strictly sequential: step k+1
// consumes the canvas produced by step k.
type Engine struct {
	ex     *vision.Extractor
	model  *style.Model
	layers []string

	canvas   *tensor.Tensor
	opt      *adam
	history  *History
	state    State
	steps    int
	observer Observer

	// gradHook lets tests tamper with the computed gradient before the
	// non-finite check. Never set outside tests.
	gradHook func(step int, grad *tensor.Tensor)
}

// NewEngine validates the request-level inputs, captures the content
// targets and style profile exactly once, and initializes the canvas as a
// copy of the content image. All validation errors surface here, before
// any optimization step runs.
func NewEngine(ex *vision.Extractor, content *tensor.Tensor, styleRefs []*tensor.Tensor,
	contentLayers, styleLayers []string, weights style.Weights,
	steps int, learningRate float64, observer Observer,
) (*Engine, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("synthesis: step count must be positive, got %d", steps)
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("synthesis: learning rate must be positive, got %g", learningRate)
	}
	if len(styleRefs) == 0 {
		return nil, style.ErrNoStyleReferences
	}
	for i, ref := range styleRefs {
		if !ref.Shape().Equal(content.Shape()) {
			return nil, fmt.Errorf("synthesis: style reference %d has shape %v, content is %v",
				i, ref.Shape(), content.Shape())
		}
	}
	if err := ex.Network().ValidateLayers(contentLayers); err != nil {
		return nil, err
	}
	if err := ex.Network().ValidateLayers(styleLayers); err != nil {
		return nil, err
	}

	profile, err := style.ComputeProfile(ex, styleRefs, styleLayers)
	if err != nil {
		return nil, err
	}
	model, err := style.NewModel(ex, content, profile, contentLayers, weights)
	if err != nil {
		return nil, err
	}

	canvas := content.Clone()
	return &Engine{
		ex:       ex,
		model:    model,
		layers:   model.Layers(),
		canvas:   canvas,
		opt:      newAdam(canvas.NumElements(), learningRate),
		history:  newHistory(steps),
		state:    StateInitialized,
		steps:    steps,
		observer: observer,
	}, nil
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Run executes the optimization loop and returns the final canvas and the
// fixed-length history.
//
// Numerical divergence is recovered locally: on a non-finite gradient the
// engine keeps the last valid canvas, stops stepping, and leaves the
// remaining history entries at the NaN sentinel. Cancellation via ctx is
// checked at each step boundary and follows the same partial-result
// contract. Run never returns an error.
func (e *Engine) Run(ctx context.Context) (*tensor.Tensor, *History) {
	e.state = StateRunning

	for step := 0; step < e.steps; step++ {
		if ctx.Err() != nil {
			e.state = StateAborted
			break
		}

		features, acts, err := e.ex.Extract(e.canvas, e.layers)
		if err != nil {
			// Layers and shapes were validated at construction.
			panic(fmt.Sprintf("synthesis: extract failed mid-run: %v", err))
		}

		terms, seeds := e.model.Evaluate(e.canvas, features)
		grad := e.ex.Backward(acts, seeds.Features)
		grad.AddScaled(seeds.Canvas, 1)

		if e.gradHook != nil {
			e.gradHook(step, grad)
		}
		if grad.HasNonFinite() {
			e.state = StateAborted
			break
		}

		e.opt.step(e.canvas.Data(), grad.Data())
		e.canvas.Clamp(0, 1)
		e.history.record(step, terms)

		if e.observer != nil {
			e.observer(step, e.canvas.Clone(), e.history.Snapshot())
		}
	}

	if e.state == StateRunning {
		e.state = StateCompleted
	}
	// Hard invariant on every termination path.
	e.canvas.Clamp(0, 1)
	return e.canvas, e.history
}
