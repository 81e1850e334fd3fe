package formula

import (
	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerInfo() {
	r.Register("ISBLANK", kindTest(func(v models.Value) bool {
		return v.Kind == models.KindEmpty
	}))
	r.Register("ISNUMBER", kindTest(func(v models.Value) bool {
		return v.Kind == models.KindNumber || v.Kind == models.KindTime
	}))
	r.Register("ISTEXT", kindTest(func(v models.Value) bool {
		return v.Kind == models.KindText
	}))
	r.Register("ISLOGICAL", kindTest(func(v models.Value) bool {
		return v.Kind == models.KindBool
	}))
	r.Register("ISERROR", kindTest(func(v models.Value) bool {
		return v.IsError()
	}))
	r.Register("ISERR", kindTest(func(v models.Value) bool {
		return v.IsError() && v.Err != models.ErrorNA
	}))
	r.Register("ISNA", kindTest(func(v models.Value) bool {
		return v.Kind == models.KindError && v.Err == models.ErrorNA
	}))
	r.Register("NA", func(ctx *Context, args []Operand) models.Value {
		return errNA()
	})
}

// kindTest builds the IS* predicates. They inspect the raw operand,
// never propagating an error argument.
func kindTest(pred func(models.Value) bool) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		var v models.Value
		if args[0].IsRange && len(args[0].List) == 1 {
			v = args[0].List[0]
		} else if args[0].IsRange {
			return errValue()
		} else {
			v = args[0].Value
		}
		return models.Boolean(pred(v))
	}
}
