// Package engine orchestrates workbook load, full and incremental
// recalculation, circular-reference convergence, and estimate
// extraction over the sheet store, formula parser/evaluator, and
// dependency graph.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/paintbox/sheetcalc/pkg/engine/formula"
)

// Options configures engine behavior.
type Options struct {
	// Epsilon is the absolute convergence threshold for circular
	// reference resolution. If zero, defaults to 1e-10.
	Epsilon float64
	// MaxIterations caps circular convergence loops. If zero,
	// defaults to 100.
	MaxIterations int
	// Logger receives structured progress and warning events.
	// If nil, logging is disabled.
	Logger *zerolog.Logger
	// Clock supplies time to NOW and TODAY.
	// If nil, defaults to wall-clock time.
	Clock formula.Clock
	// Validate enables advisory result validation during
	// recalculation. If nil, defaults to true.
	Validate *bool
}

// DefaultOptions returns default engine options.
func DefaultOptions() Options {
	return Options{}
}

// ConvergenceEpsilon returns the effective circular convergence
// threshold.
func (o Options) ConvergenceEpsilon() float64 {
	if o.Epsilon > 0 {
		return o.Epsilon
	}
	return 1e-10
}

// IterationCap returns the effective circular iteration bound.
func (o Options) IterationCap() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return 100
}

// ShouldValidate returns whether advisory validation runs during
// recalculation.
func (o Options) ShouldValidate() bool {
	if o.Validate != nil {
		return *o.Validate
	}
	return true
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}
