// Package validate checks computed cell results against expectations
// and spreadsheet-specific invariants. Validation is advisory: it
// produces structured findings per cell and never blocks a
// recalculation pass.
package validate

import (
	"fmt"
	"math"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// Severity grades a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one finding attached to a cell's result.
type Issue struct {
	CellID   string   `json:"cell_id"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Rule is a pluggable named check run against every validated result.
// A nil return means the rule passed.
type Rule func(cellID string, got models.Value) *Issue

// Validator compares computed values to optional expectations within
// an absolute-or-relative tolerance and applies its registered rules.
type Validator struct {
	absTol float64
	relTol float64
	rules  map[string]Rule
	order  []string
}

// DefaultTolerance is the absolute comparison tolerance used when the
// caller does not override it.
const DefaultTolerance = 1e-10

// New builds a Validator with the default tolerance and the built-in
// rules registered.
func New() *Validator {
	v := &Validator{absTol: DefaultTolerance, rules: make(map[string]Rule)}
	v.AddRule("lookup-ref-error", ruleLookupRefError)
	return v
}

// SetTolerance overrides the absolute and relative comparison
// tolerances. A zero relative tolerance disables the relative check.
func (v *Validator) SetTolerance(abs, rel float64) {
	v.absTol = abs
	v.relTol = rel
}

// AddRule registers a named rule, replacing any rule of the same name.
func (v *Validator) AddRule(name string, rule Rule) {
	if _, exists := v.rules[name]; !exists {
		v.order = append(v.order, name)
	}
	v.rules[name] = rule
}

// Check runs every registered rule against a computed result.
func (v *Validator) Check(cellID string, got models.Value) []Issue {
	var issues []Issue
	for _, name := range v.order {
		if issue := v.rules[name](cellID, got); issue != nil {
			issue.Rule = name
			issue.CellID = cellID
			issues = append(issues, *issue)
		}
	}
	return issues
}

// CheckExpected compares a computed result to an expected value on top
// of the rule checks. Error codes compare as opaque strings for exact
// equality; numbers compare within tolerance.
func (v *Validator) CheckExpected(cellID string, got, want models.Value) []Issue {
	issues := v.Check(cellID, got)

	if want.IsError() || got.IsError() {
		if got.Kind != want.Kind || got.Err != want.Err {
			issues = append(issues, Issue{
				CellID:   cellID,
				Rule:     "expected-match",
				Severity: SeverityError,
				Message:  fmt.Sprintf("got %s, want %s", got.AsString(), want.AsString()),
			})
		}
		return issues
	}

	gotN, gotOK := got.AsFloat()
	wantN, wantOK := want.AsFloat()
	if gotOK && wantOK {
		if !v.withinTolerance(gotN, wantN) {
			issues = append(issues, Issue{
				CellID:   cellID,
				Rule:     "expected-match",
				Severity: SeverityError,
				Message:  fmt.Sprintf("got %v, want %v (tolerance %g)", gotN, wantN, v.absTol),
			})
		}
		return issues
	}

	if got.AsString() != want.AsString() {
		issues = append(issues, Issue{
			CellID:   cellID,
			Rule:     "expected-match",
			Severity: SeverityError,
			Message:  fmt.Sprintf("got %q, want %q", got.AsString(), want.AsString()),
		})
	}
	return issues
}

func (v *Validator) withinTolerance(got, want float64) bool {
	diff := math.Abs(got - want)
	if diff <= v.absTol {
		return true
	}
	if v.relTol > 0 && math.Abs(want) > 0 {
		return diff/math.Abs(want) <= v.relTol
	}
	return false
}

// ruleLookupRefError flags invalid-reference results, which a lookup
// formula can only produce by addressing outside its table; these
// should never pass silently.
func ruleLookupRefError(cellID string, got models.Value) *Issue {
	if got.Kind == models.KindError && got.Err == models.ErrorRef {
		return &Issue{
			Severity: SeverityWarning,
			Message:  "result is an invalid-reference error",
		}
	}
	return nil
}

// RuleNumericZeroBlankSum is the invariant that an aggregation over an
// all-blank input must be numeric zero, never empty. Register it
// against cells known to hold sums.
func RuleNumericZeroBlankSum(cellID string, got models.Value) *Issue {
	if got.Kind == models.KindEmpty {
		return &Issue{
			Severity: SeverityError,
			Message:  "aggregation produced an empty value instead of numeric zero",
		}
	}
	return nil
}
