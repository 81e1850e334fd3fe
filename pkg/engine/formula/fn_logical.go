package formula

import (
	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerLogical() {
	r.Register("TRUE", func(ctx *Context, args []Operand) models.Value {
		return models.Boolean(true)
	})
	r.Register("FALSE", func(ctx *Context, args []Operand) models.Value {
		return models.Boolean(false)
	})

	r.Register("IF", func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 2, 3) {
			return errNA()
		}
		cond := args[0].scalar()
		if cond.IsError() {
			return cond
		}
		if cond.IsTruthy() {
			return args[1].scalar()
		}
		if len(args) == 3 {
			return args[2].scalar()
		}
		return models.Boolean(false)
	})

	r.Register("IFS", func(ctx *Context, args []Operand) models.Value {
		if len(args) < 2 || len(args)%2 != 0 {
			return errNA()
		}
		for i := 0; i < len(args); i += 2 {
			cond := args[i].scalar()
			if cond.IsError() {
				return cond
			}
			if cond.IsTruthy() {
				return args[i+1].scalar()
			}
		}
		return errNA()
	})

	r.Register("SWITCH", func(ctx *Context, args []Operand) models.Value {
		if len(args) < 3 {
			return errNA()
		}
		subject := args[0].scalar()
		if subject.IsError() {
			return subject
		}
		rest := args[1:]
		for len(rest) >= 2 {
			if models.Compare(subject, rest[0].scalar()) == 0 {
				return rest[1].scalar()
			}
			rest = rest[2:]
		}
		// Odd trailing argument is the default branch.
		if len(rest) == 1 {
			return rest[0].scalar()
		}
		return errNA()
	})

	r.Register("IFERROR", func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 2, 2) {
			return errNA()
		}
		v := args[0].scalar()
		if v.IsError() {
			return args[1].scalar()
		}
		return v
	})

	r.Register("IFNA", func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 2, 2) {
			return errNA()
		}
		v := args[0].scalar()
		if v.Kind == models.KindError && v.Err == models.ErrorNA {
			return args[1].scalar()
		}
		return v
	})

	r.Register("AND", func(ctx *Context, args []Operand) models.Value {
		bools, errv := collectBools(args)
		if errv.IsError() {
			return errv
		}
		if len(bools) == 0 {
			return errValue()
		}
		for _, b := range bools {
			if !b {
				return models.Boolean(false)
			}
		}
		return models.Boolean(true)
	})

	r.Register("OR", func(ctx *Context, args []Operand) models.Value {
		bools, errv := collectBools(args)
		if errv.IsError() {
			return errv
		}
		if len(bools) == 0 {
			return errValue()
		}
		for _, b := range bools {
			if b {
				return models.Boolean(true)
			}
		}
		return models.Boolean(false)
	})

	r.Register("XOR", func(ctx *Context, args []Operand) models.Value {
		bools, errv := collectBools(args)
		if errv.IsError() {
			return errv
		}
		if len(bools) == 0 {
			return errValue()
		}
		odd := false
		for _, b := range bools {
			if b {
				odd = !odd
			}
		}
		return models.Boolean(odd)
	})

	r.Register("NOT", func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		v := args[0].scalar()
		if v.IsError() {
			return v
		}
		return models.Boolean(!v.IsTruthy())
	})
}
