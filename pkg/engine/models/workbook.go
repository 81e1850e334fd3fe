package models

// FormulaCategory is the pre-classified category attached to every
// extracted formula cell. Classification happens at extraction time;
// the engine carries it through for diagnostics and validation only.
type FormulaCategory string

const (
	CategoryFinancial   FormulaCategory = "financial"
	CategoryLookup      FormulaCategory = "lookup"
	CategoryStatistical FormulaCategory = "statistical"
	CategoryMath        FormulaCategory = "math"
	CategoryLogical     FormulaCategory = "logical"
	CategoryText        FormulaCategory = "text"
	CategoryDateTime    FormulaCategory = "datetime"
	CategoryArithmetic  FormulaCategory = "arithmetic"
	CategoryOther       FormulaCategory = "other"
)

// FormulaCell describes one formula-bearing cell in the load payload.
type FormulaCell struct {
	// Cell is the A1-style address within the sheet.
	Cell string `json:"cell"`
	// Formula is the formula text, with or without the leading "=".
	Formula string `json:"formula"`
	// Category is the pre-classified formula category.
	Category FormulaCategory `json:"category"`
	// Row is the 1-based row index.
	Row int `json:"row"`
	// Col is the 1-based column index.
	Col int `json:"column"`
}

// StaticCell describes a literal (non-formula) cell value in the load
// payload, used for pricing tables and other constants the formulas read.
type StaticCell struct {
	// Cell is the A1-style address within the sheet.
	Cell string `json:"cell"`
	// Value is the literal cell value.
	Value Value `json:"value"`
}

// SheetPayload describes one sheet in the load payload.
type SheetPayload struct {
	// MaxRow is the highest populated row (1-based).
	MaxRow int `json:"max_row"`
	// MaxCol is the highest populated column (1-based).
	MaxCol int `json:"max_column"`
	// Formulas lists every formula-bearing cell on the sheet.
	Formulas []FormulaCell `json:"formulas,omitempty"`
	// Cells lists literal cell values on the sheet.
	Cells []StaticCell `json:"cells,omitempty"`
}

// NamedRangeDef defines one entry of the global named-range table.
// Exactly one of Cell or Range is set.
type NamedRangeDef struct {
	// Name is the user-defined range name.
	Name string `json:"name"`
	// Sheet is the sheet the destination lives on.
	Sheet string `json:"sheet"`
	// Cell is a single-cell destination in A1 notation.
	Cell string `json:"cell,omitempty"`
	// Range is a rectangular destination like "A1:B10".
	Range string `json:"range,omitempty"`
}

// WorkbookData is the structured payload the engine bulk-loads. The
// engine never parses spreadsheet file formats itself; extraction into
// this payload is the extractor's responsibility.
type WorkbookData struct {
	// BookName is the source workbook name.
	BookName string `json:"book_name"`
	// Sheets maps sheet name to its payload.
	Sheets map[string]SheetPayload `json:"sheets"`
	// NamedRanges is the global named-range table.
	NamedRanges []NamedRangeDef `json:"named_ranges,omitempty"`
	// FormulaCount is the total number of formulas across sheets.
	FormulaCount int `json:"formula_count"`
}
