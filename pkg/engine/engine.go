package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/paintbox/sheetcalc/pkg/engine/formula"
	"github.com/paintbox/sheetcalc/pkg/engine/graph"
	"github.com/paintbox/sheetcalc/pkg/engine/models"
	"github.com/paintbox/sheetcalc/pkg/engine/sheet"
	"github.com/paintbox/sheetcalc/pkg/engine/validate"
)

// Engine is the calculation facade. It owns the sheet store, the
// dependency graph, the parsed-formula cache and the function
// registry; all mutation flows through it and it is not safe for
// concurrent use.
type Engine struct {
	opts      Options
	log       zerolog.Logger
	store     *sheet.Store
	graph     *graph.Graph
	funcs     *formula.Registry
	validator *validate.Validator

	// parsed caches each formula cell's parse result by node ID.
	parsed map[string]*formula.Parsed
	// namedDeps records which named ranges each formula reads, for
	// diagnostics.
	namedDeps map[string][]string

	bookName string
	loaded   bool

	issues   []validate.Issue
	warnings []string
}

// CalcReport summarizes one recalculation pass.
type CalcReport struct {
	Evaluated    int              `json:"evaluated"`
	ErrorCells   []string         `json:"error_cells,omitempty"`
	NonConverged []string         `json:"non_converged,omitempty"`
	Issues       []validate.Issue `json:"issues,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// New creates an engine with an empty store.
func New(opts Options) *Engine {
	return &Engine{
		opts:      opts,
		log:       opts.logger(),
		store:     sheet.NewStore(),
		graph:     graph.New(),
		funcs:     formula.NewRegistry(opts.Clock),
		validator: validate.New(),
		parsed:    make(map[string]*formula.Parsed),
		namedDeps: make(map[string][]string),
	}
}

// Store exposes the sheet store for direct reads.
func (e *Engine) Store() *sheet.Store { return e.store }

// Graph exposes the dependency graph for inspection.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Functions exposes the function registry so callers can add custom
// functions before loading.
func (e *Engine) Functions() *formula.Registry { return e.funcs }

// Validator exposes the result validator so callers can register
// additional rules.
func (e *Engine) Validator() *validate.Validator { return e.validator }

// LoadWorkbook populates the store from extracted workbook data,
// parses every formula and builds the dependency graph. Individual
// malformed formulas do not abort the load: they are recorded as
// warnings and evaluate to an invalid-value error.
func (e *Engine) LoadWorkbook(data *models.WorkbookData) error {
	if data == nil {
		return fmt.Errorf("load workbook: nil data")
	}
	e.reset()
	e.bookName = data.BookName

	sheetNames := make([]string, 0, len(data.Sheets))
	for name := range data.Sheets {
		sheetNames = append(sheetNames, name)
	}
	sort.Strings(sheetNames)
	for _, name := range sheetNames {
		if _, err := e.store.CreateSheet(name); err != nil {
			return NewLoadError(name, "", err)
		}
	}

	// Named ranges register before parsing so identifier dependencies
	// resolve during the parse walk.
	for _, nr := range data.NamedRanges {
		if err := e.defineNamedRange(nr); err != nil {
			return err
		}
	}

	for _, name := range sheetNames {
		payload := data.Sheets[name]
		for _, sc := range payload.Cells {
			ref, err := models.ParseRef(sc.Cell, name)
			if err != nil {
				return NewLoadError(name, sc.Cell, err)
			}
			ref.Sheet = name
			if err := e.store.SetCell(ref, sc.Value); err != nil {
				return NewLoadError(name, sc.Cell, err)
			}
		}
	}

	for _, name := range sheetNames {
		payload := data.Sheets[name]
		for _, fc := range payload.Formulas {
			if err := e.loadFormula(name, fc); err != nil {
				return err
			}
		}
	}

	e.graph.Build()
	e.loaded = true
	e.log.Info().
		Str("book", e.bookName).
		Int("sheets", len(sheetNames)).
		Int("nodes", e.graph.NodeCount()).
		Int("cycles", len(e.graph.Cycles())).
		Msg("workbook loaded")
	return nil
}

func (e *Engine) reset() {
	e.store = sheet.NewStore()
	e.graph = graph.New()
	e.parsed = make(map[string]*formula.Parsed)
	e.namedDeps = make(map[string][]string)
	e.issues = nil
	e.warnings = nil
	e.loaded = false
}

func (e *Engine) defineNamedRange(nr models.NamedRangeDef) error {
	if nr.Range != "" {
		rr, err := models.ParseRangeRef(nr.Range, nr.Sheet)
		if err != nil {
			return NewLoadError(nr.Sheet, nr.Range, err)
		}
		if rr.Sheet == "" {
			rr.Sheet = nr.Sheet
		}
		return e.store.DefineNameRange(nr.Name, rr)
	}
	ref, err := models.ParseRef(nr.Cell, nr.Sheet)
	if err != nil {
		return NewLoadError(nr.Sheet, nr.Cell, err)
	}
	ref.Sheet = nr.Sheet
	return e.store.DefineName(nr.Name, ref)
}

// loadFormula parses one formula cell, stores its text and registers
// its graph node with cell-level dependencies.
func (e *Engine) loadFormula(sheetName string, fc models.FormulaCell) error {
	ref, err := models.ParseRef(fc.Cell, sheetName)
	if err != nil {
		return NewLoadError(sheetName, fc.Cell, err)
	}
	ref.Sheet = sheetName
	id := ref.ID()

	if err := e.store.SetFormula(ref, fc.Formula); err != nil {
		return NewLoadError(sheetName, fc.Cell, err)
	}

	p := formula.Parse(fc.Formula, e.sheetContext(sheetName))
	e.parsed[id] = p

	switch p.Kind {
	case formula.ParsedError:
		e.warnf("formula at %s failed to parse: %v", id, p.Err)
		return nil
	case formula.ParsedFallback:
		if hasCellDeps(p.Deps) {
			e.warnf("formula at %s uses fallback evaluation with cell references", id)
		}
	}

	deps := e.cellDeps(id, p.Deps)
	e.graph.AddNode(id, fc.Formula, deps)
	return nil
}

// cellDeps flattens a parse's dependency list to cell node IDs,
// expanding named ranges through the store.
func (e *Engine) cellDeps(id string, deps []formula.Dep) []string {
	var out []string
	for _, d := range deps {
		switch d.Kind {
		case formula.DepCell:
			out = append(out, d.ID)
		case formula.DepNamedRange:
			e.namedDeps[id] = append(e.namedDeps[id], d.ID)
			refs, err := e.store.ResolveName(d.ID)
			if err != nil {
				continue
			}
			for _, r := range refs {
				out = append(out, r.ID())
			}
		}
	}
	return out
}

func hasCellDeps(deps []formula.Dep) bool {
	for _, d := range deps {
		if d.Kind == formula.DepCell {
			return true
		}
	}
	return false
}

func (e *Engine) sheetContext(sheetName string) formula.SheetContext {
	return formula.SheetContext{
		Sheet:   sheetName,
		HasName: e.store.HasName,
		Bounds: func(name string) (int, int) {
			s, ok := e.store.Sheet(name)
			if !ok {
				return 0, 0
			}
			return s.MaxCol(), s.MaxRow()
		},
	}
}

func (e *Engine) evalContext(sheetName string) *formula.Context {
	return &formula.Context{
		Store:   e.store,
		Sheet:   sheetName,
		Funcs:   e.funcs,
		Epsilon: e.opts.ConvergenceEpsilon(),
		MaxIter: e.opts.IterationCap(),
		Logger:  e.log,
	}
}

// Recalculate runs a full pass: every formula cell is evaluated in
// dependency order, then circular groups are converged by fixed-point
// iteration. One cell's error never blocks the rest of the pass.
func (e *Engine) Recalculate() (*CalcReport, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	order := e.graph.Order()
	return e.runPass(order)
}

// ApplyEdits writes new input values, propagates dirtiness through the
// graph and recomputes only the affected formula cells, in dependency
// order.
func (e *Engine) ApplyEdits(edits map[string]models.Value) (*CalcReport, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	seeds := make([]string, 0, len(edits))
	for id, v := range edits {
		ref, err := models.ParseCellID(id)
		if err != nil {
			return nil, fmt.Errorf("apply edits: %w", err)
		}
		if err := e.store.SetCell(ref, v); err != nil {
			return nil, fmt.Errorf("apply edits: %w", err)
		}
		seeds = append(seeds, id)
	}

	dirty := e.graph.MarkDirty(seeds)
	dirtySet := make(map[string]struct{}, len(dirty))
	for _, id := range dirty {
		dirtySet[id] = struct{}{}
	}

	var order []string
	for _, id := range e.graph.Order() {
		if _, ok := dirtySet[id]; ok {
			order = append(order, id)
		}
	}
	report, err := e.runPass(order)
	if err != nil {
		return nil, err
	}
	e.graph.ClearDirty(dirty)
	return report, nil
}

// runPass evaluates the given cells in order, deferring cycle members
// to the convergence loop.
func (e *Engine) runPass(order []string) (*CalcReport, error) {
	report := &CalcReport{}
	e.issues = nil
	inCycle := e.graph.CycleMembers()

	for _, id := range order {
		if _, ok := inCycle[id]; ok {
			continue
		}
		if _, isFormula := e.parsed[id]; !isFormula {
			continue
		}
		v := e.evalCell(id)
		e.storeResult(id, v, report)
	}

	e.convergeCycles(order, inCycle, report)

	report.Issues = e.issues
	report.Warnings = e.warnings
	e.log.Info().
		Int("evaluated", report.Evaluated).
		Int("errors", len(report.ErrorCells)).
		Int("non_converged", len(report.NonConverged)).
		Msg("recalculation pass complete")
	return report, nil
}

// evalCell computes one formula cell's current value.
func (e *Engine) evalCell(id string) models.Value {
	p := e.parsed[id]
	ref, err := models.ParseCellID(id)
	if err != nil {
		return models.Error(models.ErrorRef)
	}
	ctx := e.evalContext(ref.Sheet)

	switch p.Kind {
	case formula.ParsedLiteral:
		return p.Literal
	case formula.ParsedExpression:
		return p.Expr.Eval(ctx).Result()
	case formula.ParsedFallback:
		v, warns := formula.EvalRaw(ctx, p.Raw)
		for _, w := range warns {
			e.warnf("%s: %s", id, w)
		}
		return v
	default:
		return models.Error(models.ErrorValue)
	}
}

func (e *Engine) storeResult(id string, v models.Value, report *CalcReport) {
	ref, err := models.ParseCellID(id)
	if err != nil {
		return
	}
	if err := e.store.SetCell(ref, v); err != nil {
		e.warnf("store result %s: %v", id, err)
		return
	}
	e.graph.SetValue(id, v)
	report.Evaluated++
	if v.IsError() {
		report.ErrorCells = append(report.ErrorCells, id)
	}
	if e.opts.ShouldValidate() {
		e.issues = append(e.issues, e.validator.Check(id, v)...)
	}
}

// convergeCycles resolves circular groups by fixed-point iteration.
// Each iteration computes every member against the previous
// iteration's snapshot, then writes all new values at once, so no
// member ever reads a sibling's partially-updated value.
func (e *Engine) convergeCycles(order []string, inCycle map[string]struct{}, report *CalcReport) {
	var members []string
	for _, id := range order {
		if _, ok := inCycle[id]; !ok {
			continue
		}
		if _, isFormula := e.parsed[id]; isFormula {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return
	}

	epsilon := e.opts.ConvergenceEpsilon()
	limit := e.opts.IterationCap()
	converged := false

	for iter := 0; iter < limit && !converged; iter++ {
		next := make(map[string]models.Value, len(members))
		for _, id := range members {
			next[id] = e.evalCell(id)
		}

		converged = true
		for _, id := range members {
			ref, err := models.ParseCellID(id)
			if err != nil {
				continue
			}
			prev := e.store.GetCell(ref)
			if !withinEpsilon(prev, next[id], epsilon) {
				converged = false
			}
			if err := e.store.SetCell(ref, next[id]); err != nil {
				e.warnf("store result %s: %v", id, err)
			}
			e.graph.SetValue(id, next[id])
		}
	}

	ungrounded := e.ungroundedCycleMembers()
	for _, id := range members {
		ref, err := models.ParseCellID(id)
		if err != nil {
			continue
		}
		v := e.store.GetCell(ref)
		report.Evaluated++
		if v.IsError() {
			report.ErrorCells = append(report.ErrorCells, id)
		}
		if e.opts.ShouldValidate() {
			e.issues = append(e.issues, e.validator.Check(id, v)...)
		}
		_, noInput := ungrounded[id]
		flagged := !converged || noInput
		if n, ok := e.graph.Node(id); ok {
			n.NonConverged = flagged
		}
		switch {
		case noInput:
			report.NonConverged = append(report.NonConverged, id)
			e.warnf("cell %s is in a circular group with no outside input", id)
		case !converged:
			report.NonConverged = append(report.NonConverged, id)
			e.warnf("cell %s did not converge within %d iterations", id, limit)
		}
	}
}

// ungroundedCycleMembers returns the members of every cycle that has
// no precedent outside its own member set. Such a group has nothing
// anchoring its fixed point: whatever stable value iteration lands on
// is an artifact of the starting state, so its members are flagged
// non-converged regardless of the epsilon check.
func (e *Engine) ungroundedCycleMembers() map[string]struct{} {
	out := make(map[string]struct{})
	for _, cycle := range e.graph.Cycles() {
		members := make(map[string]struct{}, len(cycle))
		for _, id := range cycle {
			members[id] = struct{}{}
		}
		grounded := false
		for id := range members {
			n, ok := e.graph.Node(id)
			if !ok {
				continue
			}
			for dep := range n.Deps {
				if _, in := members[dep]; !in {
					grounded = true
					break
				}
			}
			if grounded {
				break
			}
		}
		if !grounded {
			for id := range members {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// withinEpsilon compares successive iteration values: numerically when
// both sides coerce, by display equality otherwise.
func withinEpsilon(prev, next models.Value, epsilon float64) bool {
	pf, pok := prev.AsFloat()
	nf, nok := next.AsFloat()
	if pok && nok {
		return math.Abs(pf-nf) <= epsilon
	}
	return prev.AsString() == next.AsString()
}

func (e *Engine) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.warnings = append(e.warnings, msg)
	e.log.Warn().Msg(msg)
}
