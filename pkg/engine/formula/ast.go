// Package formula implements the formula parser, the expression
// evaluator, and the spreadsheet function library. Formula text is
// tokenized with efp (the tokenizer Excel-compatible tooling in this
// space standardizes on) and parsed into an expression tree; formulas
// the grammar cannot structure fall back to a raw representation
// evaluated by text substitution.
package formula

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
	"github.com/paintbox/sheetcalc/pkg/engine/sheet"
)

// Context carries the evaluation state handed to every expression node
// and library function: the sheet store, the sheet the formula lives
// on, the function registry, and the iteration settings used by
// circular-reference resolution.
type Context struct {
	Store   *sheet.Store
	Sheet   string
	Funcs   *Registry
	Epsilon float64
	MaxIter int
	Logger  zerolog.Logger
}

// Clock provides time for NOW/TODAY so tests can pin it.
type Clock interface {
	Now() time.Time
}

// WallClock is the default Clock using system time.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// Operand is an evaluated argument: either a scalar value or an
// expanded range of cell values in row-major order with its rectangle
// shape preserved for the lookup functions.
type Operand struct {
	Value   models.Value
	List    []models.Value
	Rows    int
	Cols    int
	IsRange bool
}

// Scalar wraps a single value as an operand.
func Scalar(v models.Value) Operand { return Operand{Value: v} }

// Flatten returns the operand as a flat list of values: the range
// contents for a range operand, a one-element list otherwise.
func (o Operand) Flatten() []models.Value {
	if o.IsRange {
		return o.List
	}
	return []models.Value{o.Value}
}

// At returns the value at (row, col) within a range operand, 0-based.
func (o Operand) At(row, col int) models.Value {
	return o.List[row*o.Cols+col]
}

// Result collapses an evaluated operand to the single value a cell
// stores.
func (o Operand) Result() models.Value { return o.scalar() }

// scalar collapses the operand to a single value. A one-cell range
// collapses to its cell; a larger range cannot be used as a scalar.
func (o Operand) scalar() models.Value {
	if !o.IsRange {
		return o.Value
	}
	if len(o.List) == 1 {
		return o.List[0]
	}
	return models.Error(models.ErrorValue)
}

// Expr is a node of a parsed formula expression tree.
type Expr interface {
	// Eval evaluates the node. Spreadsheet errors flow through as
	// error-kind values, never as Go errors.
	Eval(ctx *Context) Operand
}

// LiteralExpr is a literal number, text or boolean.
type LiteralExpr struct {
	Val models.Value
}

func (e *LiteralExpr) Eval(ctx *Context) Operand { return Scalar(e.Val) }

// CellExpr reads a single cell. An unset cell evaluates to numeric
// zero, matching spreadsheet semantics.
type CellExpr struct {
	Ref models.Ref
}

func (e *CellExpr) Eval(ctx *Context) Operand {
	v := ctx.Store.GetCell(e.Ref)
	if v.Kind == models.KindEmpty {
		return Scalar(models.Zero())
	}
	return Scalar(v)
}

// RangeExpr reads a rectangular range, expanding it to an ordered
// row-major list of cell values.
type RangeExpr struct {
	Range models.RangeRef
}

func (e *RangeExpr) Eval(ctx *Context) Operand {
	rr := e.Range
	if _, ok := ctx.Store.Sheet(rr.Sheet); !ok {
		return Scalar(models.Error(models.ErrorRef))
	}
	list := make([]models.Value, 0, rr.Size())
	for row := rr.StartRow; row <= rr.EndRow; row++ {
		for col := rr.StartCol; col <= rr.EndCol; col++ {
			list = append(list, ctx.Store.GetCell(models.Ref{Sheet: rr.Sheet, Col: col, Row: row}))
		}
	}
	return Operand{
		IsRange: true,
		List:    list,
		Rows:    rr.EndRow - rr.StartRow + 1,
		Cols:    rr.EndCol - rr.StartCol + 1,
	}
}

// NamedExpr reads a named range, resolved through the store's
// load-time registration.
type NamedExpr struct {
	Name string
}

func (e *NamedExpr) Eval(ctx *Context) Operand {
	refs, err := ctx.Store.ResolveName(e.Name)
	if err != nil {
		return Scalar(models.Error(models.ErrorName))
	}
	if len(refs) == 1 {
		v := ctx.Store.GetCell(refs[0])
		if v.Kind == models.KindEmpty {
			return Scalar(models.Zero())
		}
		return Scalar(v)
	}
	list := make([]models.Value, 0, len(refs))
	for _, r := range refs {
		list = append(list, ctx.Store.GetCell(r))
	}
	// Named multi-cell ranges are flattened at registration, so the
	// shape degrades to a single row here.
	return Operand{IsRange: true, List: list, Rows: 1, Cols: len(list)}
}

// FuncExpr is a function call. Arguments are evaluated eagerly left to
// right, then dispatched to the registry by uppercased name.
type FuncExpr struct {
	Name string
	Args []Expr
}

func (e *FuncExpr) Eval(ctx *Context) Operand {
	args := make([]Operand, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Eval(ctx)
	}
	return ctx.Funcs.Call(ctx, e.Name, args)
}

// UnaryExpr applies a prefix sign or the postfix percent operator.
type UnaryExpr struct {
	Op      string // "-", "+", "%"
	Operand Expr
}

func (e *UnaryExpr) Eval(ctx *Context) Operand {
	v := e.Operand.Eval(ctx).scalar()
	if v.IsError() {
		return Scalar(v)
	}
	n, ok := v.AsNumber()
	if !ok {
		return Scalar(models.Error(models.ErrorValue))
	}
	switch e.Op {
	case "-":
		return Scalar(models.Number(n.Neg()))
	case "+":
		return Scalar(models.Number(n))
	case "%":
		return Scalar(models.Number(n.Div(decimal.NewFromInt(100))))
	}
	return Scalar(models.Error(models.ErrorValue))
}

// BinaryExpr applies an infix operator. Arithmetic runs on
// arbitrary-precision decimals; & concatenates; comparisons order
// numerically when both sides coerce, case-insensitive lexically
// otherwise.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Eval(ctx *Context) Operand {
	lv := e.Left.Eval(ctx).scalar()
	rv := e.Right.Eval(ctx).scalar()
	if lv.IsError() {
		return Scalar(lv)
	}
	if rv.IsError() {
		return Scalar(rv)
	}
	return Scalar(applyBinary(e.Op, lv, rv))
}
