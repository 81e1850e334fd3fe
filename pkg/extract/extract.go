// Package extract reads an xlsx workbook and produces the load
// payload the calculation engine consumes: formula cells with
// categories, literal cell values, named ranges and sheet dimensions.
package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidFormat indicates the input file is not a valid xlsx format.
var ErrInvalidFormat = errors.New("invalid xlsx format")

// Options configures extraction behavior.
type Options struct {
	// IncludeStatic specifies whether literal (non-formula) cell
	// values are extracted. If nil, defaults to true.
	IncludeStatic *bool
	// SheetFilter restricts extraction to the named sheets. Empty
	// means every sheet.
	SheetFilter []string
}

// DefaultOptions returns default extraction options.
func DefaultOptions() Options {
	return Options{}
}

// ShouldIncludeStatic returns whether literal cells are extracted.
func (o Options) ShouldIncludeStatic() bool {
	if o.IncludeStatic != nil {
		return *o.IncludeStatic
	}
	return true
}

func (o Options) wantSheet(name string) bool {
	if len(o.SheetFilter) == 0 {
		return true
	}
	for _, s := range o.SheetFilter {
		if s == name {
			return true
		}
	}
	return false
}

// Extract reads a workbook file into the engine's load payload.
func Extract(path string, opts Options) (*models.WorkbookData, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrFileNotFound
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	defer f.Close()

	data := &models.WorkbookData{
		BookName: filepath.Base(path),
		Sheets:   make(map[string]models.SheetPayload),
	}

	for _, sheetName := range f.GetSheetList() {
		if !opts.wantSheet(sheetName) {
			continue
		}
		payload, count, err := extractSheet(f, sheetName, opts)
		if err != nil {
			return nil, err
		}
		data.Sheets[sheetName] = payload
		data.FormulaCount += count
	}

	for _, dn := range f.GetDefinedName() {
		if nr, ok := parseDefinedName(dn); ok {
			data.NamedRanges = append(data.NamedRanges, nr)
		}
	}
	return data, nil
}

// extractSheet walks one sheet's populated cells, splitting formula
// cells from literal values and tracking the used range.
func extractSheet(f *excelize.File, sheetName string, opts Options) (models.SheetPayload, int, error) {
	payload := models.SheetPayload{}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return payload, 0, err
	}

	for rowIdx, cols := range rows {
		row := rowIdx + 1
		for colIdx, raw := range cols {
			col := colIdx + 1
			axis, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				continue
			}
			formulaText, err := f.GetCellFormula(sheetName, axis)
			if err == nil && formulaText != "" {
				payload.Formulas = append(payload.Formulas, models.FormulaCell{
					Cell:     axis,
					Formula:  "=" + strings.TrimPrefix(formulaText, "="),
					Category: Categorize(formulaText),
					Row:      row,
					Col:      col,
				})
			} else if raw != "" && opts.ShouldIncludeStatic() {
				payload.Cells = append(payload.Cells, models.StaticCell{
					Cell:  axis,
					Value: classifyRaw(raw),
				})
			}
			if raw != "" || (err == nil && formulaText != "") {
				if row > payload.MaxRow {
					payload.MaxRow = row
				}
				if col > payload.MaxCol {
					payload.MaxCol = col
				}
			}
		}
	}
	return payload, len(payload.Formulas), nil
}

// classifyRaw types a displayed cell string.
func classifyRaw(raw string) models.Value {
	if d, err := decimal.NewFromString(raw); err == nil {
		return models.Number(d)
	}
	switch strings.ToUpper(raw) {
	case "TRUE":
		return models.Boolean(true)
	case "FALSE":
		return models.Boolean(false)
	}
	if models.IsErrorCode(raw) {
		return models.Error(models.ErrorCode(raw))
	}
	return models.Text(raw)
}

// parseDefinedName converts an excelize defined name to a named-range
// definition. RefersTo looks like "Sheet1!$A$1" or "'My Sheet'!$A$1:$B$10".
func parseDefinedName(dn excelize.DefinedName) (models.NamedRangeDef, bool) {
	refersTo := strings.TrimPrefix(dn.RefersTo, "=")
	idx := strings.LastIndex(refersTo, "!")
	if idx == -1 {
		return models.NamedRangeDef{}, false
	}
	sheetName := strings.Trim(refersTo[:idx], "'")
	target := strings.ReplaceAll(refersTo[idx+1:], "$", "")

	nr := models.NamedRangeDef{Name: dn.Name, Sheet: sheetName}
	if strings.Contains(target, ":") {
		nr.Range = target
	} else {
		nr.Cell = target
	}
	return nr, true
}
