package formula

import (
	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerArray() {
	r.RegisterArray("TRANSPOSE", fnTranspose)
}

// fnTranspose flips a range's rectangle. A scalar passes through.
func fnTranspose(ctx *Context, args []Operand) Operand {
	if !argCount(args, 1, 1) {
		return Scalar(errNA())
	}
	in := args[0]
	if !in.IsRange {
		return in
	}
	out := make([]models.Value, 0, len(in.List))
	for col := 0; col < in.Cols; col++ {
		for row := 0; row < in.Rows; row++ {
			out = append(out, in.At(row, col))
		}
	}
	return Operand{IsRange: true, List: out, Rows: in.Cols, Cols: in.Rows}
}
