// Package sheet implements the sheet store: per-sheet sparse cell
// storage, named ranges, and read-only statistics. It holds no
// evaluation logic beyond address arithmetic.
package sheet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// ErrSheetNotFound indicates an operation referenced a missing sheet.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrSheetExists indicates a create/rename collided with an existing sheet.
var ErrSheetExists = errors.New("sheet already exists")

// ErrNameNotFound indicates a named-range lookup miss.
var ErrNameNotFound = errors.New("named range not found")

// ErrDimensionMismatch indicates a bulk range write whose data shape
// does not match the target range exactly.
var ErrDimensionMismatch = errors.New("range dimensions do not match data")

// address keys the sparse cell map within one sheet.
type address struct {
	Col int
	Row int
}

// cell couples a stored value with the source formula text it was
// computed from. A plain value cell has Formula == "".
type cell struct {
	Value   models.Value
	Formula string
}

// Sheet holds one named sheet: a sparse address-to-cell mapping plus
// the highest row/column ever written. Bounds grow monotonically and
// never shrink on clear, matching spreadsheet "used range" convention.
type Sheet struct {
	name   string
	cells  map[address]cell
	maxRow int
	maxCol int
}

// Name returns the sheet name.
func (s *Sheet) Name() string { return s.name }

// MaxRow returns the highest row ever written (1-based, 0 if empty).
func (s *Sheet) MaxRow() int { return s.maxRow }

// MaxCol returns the highest column ever written (1-based, 0 if empty).
func (s *Sheet) MaxCol() int { return s.maxCol }

func (s *Sheet) set(col, row int, c cell) {
	s.cells[address{Col: col, Row: row}] = c
	if row > s.maxRow {
		s.maxRow = row
	}
	if col > s.maxCol {
		s.maxCol = col
	}
}

// Stats summarizes one sheet's contents.
type Stats struct {
	// Name is the sheet name.
	Name string `json:"name"`
	// MaxRow is the highest populated row.
	MaxRow int `json:"max_row"`
	// MaxCol is the highest populated column.
	MaxCol int `json:"max_column"`
	// FormulaCells counts cells carrying formula text.
	FormulaCells int `json:"formula_cells"`
	// ValueCells counts plain value cells.
	ValueCells int `json:"value_cells"`
	// ErrorCells counts cells holding a spreadsheet error.
	ErrorCells int `json:"error_cells"`
	// EmptyCells counts explicitly-stored empty cells.
	EmptyCells int `json:"empty_cells"`
}

// Store owns all sheets and the resolved named-range table. It is the
// exclusive owner of cell values; the dependency graph references
// cells by ID only.
type Store struct {
	sheets map[string]*Sheet
	names  map[string][]models.Ref
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sheets: make(map[string]*Sheet),
		names:  make(map[string][]models.Ref),
	}
}

// CreateSheet creates a new empty sheet.
func (st *Store) CreateSheet(name string) (*Sheet, error) {
	if name == "" {
		return nil, fmt.Errorf("create sheet: empty name")
	}
	if _, ok := st.sheets[name]; ok {
		return nil, fmt.Errorf("create sheet %q: %w", name, ErrSheetExists)
	}
	s := &Sheet{name: name, cells: make(map[address]cell)}
	st.sheets[name] = s
	return s, nil
}

// DeleteSheet removes a sheet and all its cells.
func (st *Store) DeleteSheet(name string) error {
	if _, ok := st.sheets[name]; !ok {
		return fmt.Errorf("delete sheet %q: %w", name, ErrSheetNotFound)
	}
	delete(st.sheets, name)
	return nil
}

// RenameSheet renames a sheet. Named ranges pointing at the sheet are
// updated to the new name.
func (st *Store) RenameSheet(oldName, newName string) error {
	s, ok := st.sheets[oldName]
	if !ok {
		return fmt.Errorf("rename sheet %q: %w", oldName, ErrSheetNotFound)
	}
	if _, ok := st.sheets[newName]; ok {
		return fmt.Errorf("rename sheet to %q: %w", newName, ErrSheetExists)
	}
	delete(st.sheets, oldName)
	s.name = newName
	st.sheets[newName] = s
	for name, refs := range st.names {
		for i, r := range refs {
			if r.Sheet == oldName {
				refs[i].Sheet = newName
			}
		}
		st.names[name] = refs
	}
	return nil
}

// Sheet returns a sheet by name.
func (st *Store) Sheet(name string) (*Sheet, bool) {
	s, ok := st.sheets[name]
	return s, ok
}

// SheetNames returns all sheet names in sorted order.
func (st *Store) SheetNames() []string {
	out := make([]string, 0, len(st.sheets))
	for name := range st.sheets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetCell reads a single cell. Unset cells read as the empty value,
// never an error: spreadsheet semantics treat them as blank.
func (st *Store) GetCell(ref models.Ref) models.Value {
	s, ok := st.sheets[ref.Sheet]
	if !ok {
		return models.Empty()
	}
	c, ok := s.cells[address{Col: ref.Col, Row: ref.Row}]
	if !ok {
		return models.Empty()
	}
	return c.Value
}

// GetFormula returns the formula text stored at a cell, if any.
func (st *Store) GetFormula(ref models.Ref) (string, bool) {
	s, ok := st.sheets[ref.Sheet]
	if !ok {
		return "", false
	}
	c, ok := s.cells[address{Col: ref.Col, Row: ref.Row}]
	if !ok || c.Formula == "" {
		return "", false
	}
	return c.Formula, true
}

// SetCell writes a single cell value, growing sheet bounds as needed.
func (st *Store) SetCell(ref models.Ref, v models.Value) error {
	s, ok := st.sheets[ref.Sheet]
	if !ok {
		return fmt.Errorf("set cell %s: %w", ref.ID(), ErrSheetNotFound)
	}
	if ref.Col < 1 || ref.Row < 1 {
		return fmt.Errorf("set cell %s: invalid address", ref.ID())
	}
	prev := s.cells[address{Col: ref.Col, Row: ref.Row}]
	s.set(ref.Col, ref.Row, cell{Value: v, Formula: prev.Formula})
	return nil
}

// SetFormula records a cell's source formula text alongside its value
// so the cell can be re-evaluated later.
func (st *Store) SetFormula(ref models.Ref, formula string) error {
	s, ok := st.sheets[ref.Sheet]
	if !ok {
		return fmt.Errorf("set formula %s: %w", ref.ID(), ErrSheetNotFound)
	}
	prev := s.cells[address{Col: ref.Col, Row: ref.Row}]
	s.set(ref.Col, ref.Row, cell{Value: prev.Value, Formula: formula})
	return nil
}

// ClearCell resets a cell to empty. Sheet bounds are intentionally not
// reduced.
func (st *Store) ClearCell(ref models.Ref) {
	s, ok := st.sheets[ref.Sheet]
	if !ok {
		return
	}
	delete(s.cells, address{Col: ref.Col, Row: ref.Row})
}

// GetRange reads a rectangular range in row-major order. Unset cells
// within the rectangle read as empty values.
func (st *Store) GetRange(rr models.RangeRef) ([][]models.Value, error) {
	if _, ok := st.sheets[rr.Sheet]; !ok {
		return nil, fmt.Errorf("get range %s: %w", rr.String(), ErrSheetNotFound)
	}
	rows := make([][]models.Value, 0, rr.EndRow-rr.StartRow+1)
	for row := rr.StartRow; row <= rr.EndRow; row++ {
		cols := make([]models.Value, 0, rr.EndCol-rr.StartCol+1)
		for col := rr.StartCol; col <= rr.EndCol; col++ {
			cols = append(cols, st.GetCell(models.Ref{Sheet: rr.Sheet, Col: col, Row: row}))
		}
		rows = append(rows, cols)
	}
	return rows, nil
}

// SetRange writes a rectangular range in row-major order. The data
// dimensions must match the range exactly or the call fails without
// writing anything.
func (st *Store) SetRange(rr models.RangeRef, data [][]models.Value) error {
	if _, ok := st.sheets[rr.Sheet]; !ok {
		return fmt.Errorf("set range %s: %w", rr.String(), ErrSheetNotFound)
	}
	wantRows := rr.EndRow - rr.StartRow + 1
	wantCols := rr.EndCol - rr.StartCol + 1
	if len(data) != wantRows {
		return fmt.Errorf("set range %s: want %d rows, got %d: %w",
			rr.String(), wantRows, len(data), ErrDimensionMismatch)
	}
	for i, rowData := range data {
		if len(rowData) != wantCols {
			return fmt.Errorf("set range %s: row %d: want %d columns, got %d: %w",
				rr.String(), i, wantCols, len(rowData), ErrDimensionMismatch)
		}
	}
	for i, rowData := range data {
		for j, v := range rowData {
			ref := models.Ref{Sheet: rr.Sheet, Col: rr.StartCol + j, Row: rr.StartRow + i}
			if err := st.SetCell(ref, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefineName registers a named range covering a single cell.
func (st *Store) DefineName(name string, ref models.Ref) error {
	if name == "" {
		return fmt.Errorf("define name: empty name")
	}
	st.names[name] = []models.Ref{ref}
	return nil
}

// DefineNameRange registers a named range covering a rectangle,
// flattened into every contained cell at registration time. Named
// ranges are resolved once at load, not re-resolved per use.
func (st *Store) DefineNameRange(name string, rr models.RangeRef) error {
	if name == "" {
		return fmt.Errorf("define name: empty name")
	}
	st.names[name] = rr.Cells()
	return nil
}

// ResolveName returns the cells a named range covers.
func (st *Store) ResolveName(name string) ([]models.Ref, error) {
	refs, ok := st.names[name]
	if !ok {
		return nil, fmt.Errorf("resolve name %q: %w", name, ErrNameNotFound)
	}
	return refs, nil
}

// HasName reports whether a named range is registered.
func (st *Store) HasName(name string) bool {
	_, ok := st.names[name]
	return ok
}

// NamedRanges returns all registered names in sorted order.
func (st *Store) NamedRanges() []string {
	out := make([]string, 0, len(st.names))
	for name := range st.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SheetStats computes statistics for one sheet.
func (st *Store) SheetStats(name string) (Stats, error) {
	s, ok := st.sheets[name]
	if !ok {
		return Stats{}, fmt.Errorf("stats for %q: %w", name, ErrSheetNotFound)
	}
	stats := Stats{Name: name, MaxRow: s.maxRow, MaxCol: s.maxCol}
	for _, c := range s.cells {
		switch {
		case c.Formula != "":
			stats.FormulaCells++
			if c.Value.IsError() {
				stats.ErrorCells++
			}
		case c.Value.IsError():
			stats.ErrorCells++
		case c.Value.Kind == models.KindEmpty:
			stats.EmptyCells++
		default:
			stats.ValueCells++
		}
	}
	return stats, nil
}

// AllStats computes statistics for every sheet, sorted by name.
func (st *Store) AllStats() []Stats {
	out := make([]Stats, 0, len(st.sheets))
	for _, name := range st.SheetNames() {
		stats, _ := st.SheetStats(name)
		out = append(out, stats)
	}
	return out
}
