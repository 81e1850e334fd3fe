package formula

import (
	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerLookup() {
	r.Register("VLOOKUP", fnVLookup)
	r.Register("HLOOKUP", fnHLookup)
	r.Register("MATCH", fnMatch)
	r.Register("INDEX", fnIndex)
	r.Register("XLOOKUP", fnXLookup)
	r.Register("CHOOSE", fnChoose)
	r.Register("ROWS", fnRows)
	r.Register("COLUMNS", fnColumns)
}

// fnVLookup searches the first column of a table for a value and
// returns the cell in the given column of the matching row. The
// default approximate mode assumes the first column is sorted
// ascending and takes the largest entry not exceeding the lookup
// value; exact mode misses with not-available.
func fnVLookup(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 4) {
		return errNA()
	}
	needle := args[0].scalar()
	if needle.IsError() {
		return needle
	}
	table := args[1]
	if !table.IsRange || table.Rows == 0 {
		return errValue()
	}
	colIdx, cerr := scalarInt(args[2])
	if cerr.IsError() {
		return cerr
	}
	if colIdx < 1 || colIdx > table.Cols {
		return models.Error(models.ErrorRef)
	}
	approx := true
	if len(args) == 4 {
		a := args[3].scalar()
		if a.IsError() {
			return a
		}
		approx = a.IsTruthy()
	}

	row := lookupVector(needle, func(i int) models.Value { return table.At(i, 0) }, table.Rows, approx)
	if row < 0 {
		return errNA()
	}
	return table.At(row, colIdx-1)
}

func fnHLookup(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 4) {
		return errNA()
	}
	needle := args[0].scalar()
	if needle.IsError() {
		return needle
	}
	table := args[1]
	if !table.IsRange || table.Cols == 0 {
		return errValue()
	}
	rowIdx, rerr := scalarInt(args[2])
	if rerr.IsError() {
		return rerr
	}
	if rowIdx < 1 || rowIdx > table.Rows {
		return models.Error(models.ErrorRef)
	}
	approx := true
	if len(args) == 4 {
		a := args[3].scalar()
		if a.IsError() {
			return a
		}
		approx = a.IsTruthy()
	}

	col := lookupVector(needle, func(i int) models.Value { return table.At(0, i) }, table.Cols, approx)
	if col < 0 {
		return errNA()
	}
	return table.At(rowIdx-1, col)
}

// lookupVector finds the match position in a vector, -1 on miss.
// Approximate mode scans for the last entry ordered at or below the
// needle; exact mode compares for equality.
func lookupVector(needle models.Value, at func(int) models.Value, n int, approx bool) int {
	if approx {
		best := -1
		for i := 0; i < n; i++ {
			cmp := models.Compare(at(i), needle)
			if cmp == 0 {
				return i
			}
			if cmp < 0 {
				best = i
			}
		}
		return best
	}
	for i := 0; i < n; i++ {
		if models.Compare(at(i), needle) == 0 {
			return i
		}
	}
	return -1
}

// fnMatch returns the 1-based position of a value in a vector. Match
// type 1 (default) finds the largest entry at or below the value in an
// ascending vector, 0 exact, -1 the smallest entry at or above in a
// descending vector.
func fnMatch(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 3) {
		return errNA()
	}
	needle := args[0].scalar()
	if needle.IsError() {
		return needle
	}
	vec := args[1].Flatten()
	matchType := 1
	if len(args) == 3 {
		var merr models.Value
		matchType, merr = scalarInt(args[2])
		if merr.IsError() {
			return merr
		}
	}

	switch matchType {
	case 0:
		for i, v := range vec {
			if models.Compare(v, needle) == 0 {
				return models.NumberFromInt(int64(i + 1))
			}
		}
	case 1:
		best := -1
		for i, v := range vec {
			cmp := models.Compare(v, needle)
			if cmp == 0 {
				return models.NumberFromInt(int64(i + 1))
			}
			if cmp < 0 {
				best = i
			}
		}
		if best >= 0 {
			return models.NumberFromInt(int64(best + 1))
		}
	case -1:
		best := -1
		for i, v := range vec {
			cmp := models.Compare(v, needle)
			if cmp == 0 {
				return models.NumberFromInt(int64(i + 1))
			}
			if cmp > 0 {
				best = i
			}
		}
		if best >= 0 {
			return models.NumberFromInt(int64(best + 1))
		}
	default:
		return errValue()
	}
	return errNA()
}

// fnIndex returns the cell at (row, col) within a range, 1-based. A
// zero or omitted coordinate is allowed only when the range collapses
// that axis.
func fnIndex(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 3) {
		return errNA()
	}
	rng := args[0]
	if !rng.IsRange {
		return errValue()
	}
	row, rerr := scalarInt(args[1])
	if rerr.IsError() {
		return rerr
	}
	col := 0
	if len(args) == 3 {
		var cerr models.Value
		col, cerr = scalarInt(args[2])
		if cerr.IsError() {
			return cerr
		}
	}
	// Single-row or single-column ranges accept a lone index.
	if len(args) == 2 && rng.Rows == 1 {
		col, row = row, 1
	}
	if col == 0 {
		if rng.Cols != 1 {
			return models.Error(models.ErrorRef)
		}
		col = 1
	}
	if row == 0 {
		if rng.Rows != 1 {
			return models.Error(models.ErrorRef)
		}
		row = 1
	}
	if row < 1 || row > rng.Rows || col < 1 || col > rng.Cols {
		return models.Error(models.ErrorRef)
	}
	return rng.At(row-1, col-1)
}

// fnXLookup searches a lookup vector and returns the parallel entry of
// a return vector. Match mode 0 is exact, -1 exact-or-next-smaller, 1
// exact-or-next-larger. A miss returns the if-not-found argument when
// given, not-available otherwise.
func fnXLookup(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 5) {
		return errNA()
	}
	needle := args[0].scalar()
	if needle.IsError() {
		return needle
	}
	lookup := args[1].Flatten()
	ret := args[2].Flatten()
	if len(lookup) != len(ret) {
		return errValue()
	}
	matchMode := 0
	if len(args) == 5 {
		var merr models.Value
		matchMode, merr = scalarInt(args[4])
		if merr.IsError() {
			return merr
		}
	}

	idx := -1
	switch matchMode {
	case 0:
		for i, v := range lookup {
			if models.Compare(v, needle) == 0 {
				idx = i
				break
			}
		}
	case -1:
		for i, v := range lookup {
			cmp := models.Compare(v, needle)
			if cmp == 0 {
				idx = i
				break
			}
			if cmp < 0 && (idx == -1 || models.Compare(v, lookup[idx]) > 0) {
				idx = i
			}
		}
	case 1:
		for i, v := range lookup {
			cmp := models.Compare(v, needle)
			if cmp == 0 {
				idx = i
				break
			}
			if cmp > 0 && (idx == -1 || models.Compare(v, lookup[idx]) < 0) {
				idx = i
			}
		}
	default:
		return errValue()
	}

	if idx == -1 {
		if len(args) >= 4 {
			return args[3].scalar()
		}
		return errNA()
	}
	return ret[idx]
}

func fnChoose(ctx *Context, args []Operand) models.Value {
	if len(args) < 2 {
		return errNA()
	}
	idx, errv := scalarInt(args[0])
	if errv.IsError() {
		return errv
	}
	if idx < 1 || idx >= len(args) {
		return errValue()
	}
	return args[idx].scalar()
}

func fnRows(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	if args[0].IsRange {
		return models.NumberFromInt(int64(args[0].Rows))
	}
	return models.NumberFromInt(1)
}

func fnColumns(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	if args[0].IsRange {
		return models.NumberFromInt(int64(args[0].Cols))
	}
	return models.NumberFromInt(1)
}
