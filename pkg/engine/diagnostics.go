package engine

import (
	"github.com/paintbox/sheetcalc/pkg/engine/formula"
	"github.com/paintbox/sheetcalc/pkg/engine/graph"
	"github.com/paintbox/sheetcalc/pkg/engine/sheet"
	"github.com/paintbox/sheetcalc/pkg/engine/validate"
)

// Diagnostics is a serializable picture of engine state after a
// calculation: the dependency graph, per-sheet statistics and the
// accumulated findings. It detaches fully from live state so it can be
// stored or shipped elsewhere.
type Diagnostics struct {
	BookName   string              `json:"book_name"`
	Graph      *graph.Snapshot     `json:"graph"`
	SheetStats []sheet.Stats       `json:"sheet_stats"`
	NamedDeps  map[string][]string `json:"named_deps,omitempty"`
	Issues     []validate.Issue    `json:"issues,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Diagnostics exports the engine's current calculation state.
func (e *Engine) Diagnostics() (*Diagnostics, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	snap, err := e.graph.Export()
	if err != nil {
		return nil, err
	}
	named := make(map[string][]string, len(e.namedDeps))
	for id, names := range e.namedDeps {
		named[id] = append([]string(nil), names...)
	}
	return &Diagnostics{
		BookName:   e.bookName,
		Graph:      snap,
		SheetStats: e.store.AllStats(),
		NamedDeps:  named,
		Issues:     append([]validate.Issue(nil), e.issues...),
		Warnings:   append([]string(nil), e.warnings...),
	}, nil
}

// RestoreDiagnostics rebuilds the dependency graph from an exported
// snapshot. The sheet store is not touched: restored diagnostics serve
// graph inspection, not resumed calculation.
func (e *Engine) RestoreDiagnostics(d *Diagnostics) error {
	if d == nil || d.Graph == nil {
		return ErrNotLoaded
	}
	g := graph.New()
	if err := g.Import(d.Graph); err != nil {
		return err
	}
	e.graph = g
	e.bookName = d.BookName
	return nil
}

// Stats summarizes the loaded workbook.
type Stats struct {
	BookName     string        `json:"book_name"`
	Sheets       []sheet.Stats `json:"sheets"`
	GraphNodes   int           `json:"graph_nodes"`
	Cycles       int           `json:"cycles"`
	FormulaCells int           `json:"formula_cells"`
	Fallbacks    int           `json:"fallbacks"`
}

// Stats reports store and graph counts for the loaded workbook.
func (e *Engine) Stats() (*Stats, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	fallbacks := 0
	for _, p := range e.parsed {
		if p.Kind == formula.ParsedFallback {
			fallbacks++
		}
	}
	return &Stats{
		BookName:     e.bookName,
		Sheets:       e.store.AllStats(),
		GraphNodes:   e.graph.NodeCount(),
		Cycles:       len(e.graph.Cycles()),
		FormulaCells: len(e.parsed),
		Fallbacks:    fallbacks,
	}, nil
}
