// Package layout assigns CV components to printable A4 pages.
//
// Heights are heuristic: every component type has a fixed base height in pixels and
// list-bearing components scale it by their item count. Nothing here measures rendered
// text. All functions are pure; they return new slices and never modify their input.
package layout

import (
	"github.com/google/uuid"

	"cvCanvas/internal/cv"
)

// A4 page geometry at 96 DPI.
const (
	A4WidthPx       = 794  // 210mm
	A4HeightPx      = 1123 // 297mm
	PagePaddingPx   = 48   // 12mm on each edge
	AvailableHeight = A4HeightPx - PagePaddingPx*2

	// SafetyMargin is the fraction of AvailableHeight that placement and overflow
	// packing may fill. The rest absorbs estimation error.
	SafetyMargin = 0.85
)

// Engine bundles the height estimator and id source used by placement and splitting.
type Engine struct {
	estimator       Estimator
	newID           func() string
	availableHeight int
	safetyMargin    float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithEstimator swaps the height heuristic, e.g. for a measuring implementation.
func WithEstimator(estimator Estimator) Option {
	return func(e *Engine) {
		if estimator != nil {
			e.estimator = estimator
		}
	}
}

// WithIDFunc sets the id generator used for overflow siblings.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine returns an Engine using BaseHeights and uuid ids unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		estimator:       BaseHeights{},
		newID:           uuid.NewString,
		availableHeight: AvailableHeight,
		safetyMargin:    SafetyMargin,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimator returns the engine's height estimator.
func (e *Engine) Estimator() Estimator {
	return e.estimator
}

// capacity is the usable height of one page once the safety margin is reserved.
func (e *Engine) capacity() float64 {
	return float64(e.availableHeight) * e.safetyMargin
}

func (e *Engine) sumHeights(components []cv.Component, skipID string) int {
	total := 0
	for _, c := range components {
		if skipID != "" && c.ID == skipID {
			continue
		}
		total += e.estimator.Estimate(c)
	}
	return total
}
