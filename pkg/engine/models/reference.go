package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref identifies a single cell as (sheet, column, row). Column and row
// are 1-based. The absolute flags record the $ markers from the source
// formula; they only matter when a reference is copied between cells
// and are preserved for fidelity.
type Ref struct {
	Sheet  string
	Col    int
	Row    int
	AbsCol bool
	AbsRow bool
}

// ColumnLetters converts a 1-based column number to its base-26 letter
// encoding (1 -> "A", 27 -> "AA").
func ColumnLetters(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// ColumnNumber converts a base-26 column letter encoding to its
// 1-based number ("A" -> 1, "AA" -> 27).
func ColumnNumber(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}
	n := 0
	for _, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column letters %q", letters)
		}
		n = n*26 + int(ch-'A') + 1
	}
	return n, nil
}

// splitSheet splits an optional quoted or bare sheet prefix off a
// reference string, returning the sheet name ("" if absent) and rest.
func splitSheet(s string) (sheet, rest string) {
	idx := strings.LastIndex(s, "!")
	if idx == -1 {
		return "", s
	}
	sheet = s[:idx]
	rest = s[idx+1:]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, rest
}

// parseA1 parses a bare A1-style address (with optional $ markers) into
// column, row and absolute flags.
func parseA1(s string) (col, row int, absCol, absRow bool, err error) {
	if s == "" {
		return 0, 0, false, false, fmt.Errorf("empty cell address")
	}
	i := 0
	if s[i] == '$' {
		absCol = true
		i++
	}
	letterStart := i
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	if i == letterStart {
		return 0, 0, false, false, fmt.Errorf("invalid cell address %q", s)
	}
	col, err = ColumnNumber(s[letterStart:i])
	if err != nil {
		return 0, 0, false, false, err
	}
	if i < len(s) && s[i] == '$' {
		absRow = true
		i++
	}
	rowNum, convErr := strconv.Atoi(s[i:])
	if convErr != nil || rowNum < 1 {
		return 0, 0, false, false, fmt.Errorf("invalid row in cell address %q", s)
	}
	return col, rowNum, absCol, absRow, nil
}

// ParseRef parses a cell reference like "A1", "$B$2" or "Sheet1!C3".
// Unqualified references default to defaultSheet.
func ParseRef(s, defaultSheet string) (Ref, error) {
	sheet, rest := splitSheet(strings.TrimSpace(s))
	if sheet == "" {
		sheet = defaultSheet
	}
	col, row, absCol, absRow, err := parseA1(rest)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Sheet: sheet, Col: col, Row: row, AbsCol: absCol, AbsRow: absRow}, nil
}

// A1 renders the reference in A1 notation without the sheet prefix,
// re-applying $ markers.
func (r Ref) A1() string {
	var b strings.Builder
	if r.AbsCol {
		b.WriteByte('$')
	}
	b.WriteString(ColumnLetters(r.Col))
	if r.AbsRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(r.Row))
	return b.String()
}

// ID returns the canonical node identifier "Sheet!A1" used throughout
// the dependency graph. Absolute flags are dropped; two references to
// the same cell share one ID.
func (r Ref) ID() string {
	return r.Sheet + "!" + ColumnLetters(r.Col) + strconv.Itoa(r.Row)
}

// ParseCellID parses a canonical "Sheet!A1" node identifier.
func ParseCellID(id string) (Ref, error) {
	sheet, rest := splitSheet(id)
	if sheet == "" {
		return Ref{}, fmt.Errorf("cell id %q missing sheet qualifier", id)
	}
	col, row, _, _, err := parseA1(rest)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Sheet: sheet, Col: col, Row: row}, nil
}

// RangeRef identifies a rectangular range of cells on one sheet.
// Bounds are 1-based and inclusive, normalized so Start <= End.
type RangeRef struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRangeRef parses a range reference like "A1:B3" or
// "Sheet1!$A$1:$C$10". Both endpoints must be on the same sheet;
// cross-sheet ranges are rejected.
func ParseRangeRef(s, defaultSheet string) (RangeRef, error) {
	sheet, rest := splitSheet(strings.TrimSpace(s))
	if sheet == "" {
		sheet = defaultSheet
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return RangeRef{}, fmt.Errorf("invalid range %q", s)
	}
	if strings.Contains(parts[1], "!") {
		return RangeRef{}, fmt.Errorf("cross-sheet range %q is not supported", s)
	}
	sc, sr, _, _, err := parseA1(parts[0])
	if err != nil {
		return RangeRef{}, fmt.Errorf("invalid range start in %q: %w", s, err)
	}
	ec, er, _, _, err := parseA1(parts[1])
	if err != nil {
		return RangeRef{}, fmt.Errorf("invalid range end in %q: %w", s, err)
	}
	return RangeRef{
		Sheet:    sheet,
		StartCol: min(sc, ec),
		StartRow: min(sr, er),
		EndCol:   max(sc, ec),
		EndRow:   max(sr, er),
	}, nil
}

// Contains reports whether the range contains the given cell.
func (rr RangeRef) Contains(r Ref) bool {
	return rr.Sheet == r.Sheet &&
		r.Row >= rr.StartRow && r.Row <= rr.EndRow &&
		r.Col >= rr.StartCol && r.Col <= rr.EndCol
}

// Size returns the number of cells in the range.
func (rr RangeRef) Size() int {
	return (rr.EndRow - rr.StartRow + 1) * (rr.EndCol - rr.StartCol + 1)
}

// Cells enumerates every cell in the range in row-major order.
func (rr RangeRef) Cells() []Ref {
	out := make([]Ref, 0, rr.Size())
	for row := rr.StartRow; row <= rr.EndRow; row++ {
		for col := rr.StartCol; col <= rr.EndCol; col++ {
			out = append(out, Ref{Sheet: rr.Sheet, Col: col, Row: row})
		}
	}
	return out
}

// String renders the range as "Sheet!A1:B3".
func (rr RangeRef) String() string {
	return fmt.Sprintf("%s!%s%d:%s%d", rr.Sheet,
		ColumnLetters(rr.StartCol), rr.StartRow,
		ColumnLetters(rr.EndCol), rr.EndRow)
}
