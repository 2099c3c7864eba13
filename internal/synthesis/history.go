package synthesis

import (
	"math"

	"github.com/atelier-ml/atelier/internal/style"
)

// History is the per-step loss record of one synthesis run. All four series
// always have exactly the configured step length; entries for steps that
// never executed (abort, cancellation) hold the NaN sentinel, which is how
// an inspecting caller detects early termination.
type History struct {
	ContentLoss []float64
	StyleLoss   []float64
	TVLoss      []float64
	TotalLoss   []float64
}

func newHistory(steps int) *History {
	h := &History{
		ContentLoss: make([]float64, steps),
		StyleLoss:   make([]float64, steps),
		TVLoss:      make([]float64, steps),
		TotalLoss:   make([]float64, steps),
	}
	nan := math.NaN()
	for i := 0; i < steps; i++ {
		h.ContentLoss[i] = nan
		h.StyleLoss[i] = nan
		h.TVLoss[i] = nan
		h.TotalLoss[i] = nan
	}
	return h
}

func (h *History) record(step int, terms style.Terms) {
	h.ContentLoss[step] = terms.Content
	h.StyleLoss[step] = terms.Style
	h.TVLoss[step] = terms.TV
	h.TotalLoss[step] = terms.Total
}

// Len returns the configured step count.
func (h *History) Len() int {
	return len(h.TotalLoss)
}

// CompletedSteps returns the number of leading entries that actually
// executed.
func (h *History) CompletedSteps() int {
	for i, v := range h.TotalLoss {
		if math.IsNaN(v) {
			return i
		}
	}
	return len(h.TotalLoss)
}

// Snapshot returns an independent copy, used for observer callbacks so the
// engine's record is never exposed as shared mutable state.
func (h *History) Snapshot() *History {
	return &History{
		ContentLoss: append([]float64(nil), h.ContentLoss...),
		StyleLoss:   append([]float64(nil), h.StyleLoss...),
		TVLoss:      append([]float64(nil), h.TVLoss...),
		TotalLoss:   append([]float64(nil), h.TotalLoss...),
	}
}
