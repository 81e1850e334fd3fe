package formula

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerMath() {
	r.Register("SUM", fnSum)
	r.Register("PRODUCT", fnProduct)
	r.Register("SUMPRODUCT", fnSumProduct)
	r.Register("SUMIF", fnSumIf)
	r.Register("SUMIFS", fnSumIfs)
	r.Register("ABS", numeric1(func(n decimal.Decimal) models.Value {
		return models.Number(n.Abs())
	}))
	r.Register("SIGN", numeric1(func(n decimal.Decimal) models.Value {
		return models.NumberFromInt(int64(n.Sign()))
	}))
	r.Register("INT", numeric1(func(n decimal.Decimal) models.Value {
		return models.Number(n.RoundFloor(0))
	}))
	r.Register("TRUNC", fnTrunc)
	r.Register("ROUND", fnRound)
	r.Register("ROUNDUP", fnRoundUp)
	r.Register("ROUNDDOWN", fnRoundDown)
	r.Register("MOD", fnMod)
	r.Register("SQRT", fnSqrt)
	r.Register("POWER", fnPower)
	r.Register("EXP", float1(math.Exp))
	r.Register("LN", fnLn)
	r.Register("LOG", fnLog)
	r.Register("LOG10", fnLog10)
	r.Register("PI", func(ctx *Context, args []Operand) models.Value {
		return models.NumberFromFloat(math.Pi)
	})
	r.Register("CEILING", fnCeiling)
	r.Register("FLOOR", fnFloor)
	r.Register("MIN", fnMin)
	r.Register("MAX", fnMax)
}

// numeric1 adapts a one-decimal-argument function.
func numeric1(f func(decimal.Decimal) models.Value) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		n, errv := scalarNum(args[0])
		if errv.IsError() {
			return errv
		}
		return f(n)
	}
}

// float1 adapts a one-float-argument function whose reference behavior
// is binary floating point.
func float1(f func(float64) float64) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		x, errv := scalarFloat(args[0])
		if errv.IsError() {
			return errv
		}
		res := f(x)
		if math.IsNaN(res) || math.IsInf(res, 0) {
			return errNum()
		}
		return models.NumberFromFloat(res)
	}
}

// fnSum totals every numeric input. An all-blank input sums to zero.
func fnSum(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	total := decimal.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return models.Number(total)
}

func fnProduct(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	if len(nums) == 0 {
		return models.Zero()
	}
	total := decimal.NewFromInt(1)
	for _, n := range nums {
		total = total.Mul(n)
	}
	return models.Number(total)
}

// fnSumProduct multiplies same-shaped arrays element-wise and totals
// the products; non-numeric entries contribute zero.
func fnSumProduct(ctx *Context, args []Operand) models.Value {
	if len(args) == 0 {
		return errNA()
	}
	if errv, found := firstError(args); found {
		return errv
	}
	lists := make([][]models.Value, len(args))
	size := -1
	for i, a := range args {
		lists[i] = a.Flatten()
		if size == -1 {
			size = len(lists[i])
		} else if len(lists[i]) != size {
			return errValue()
		}
	}
	total := decimal.Zero
	for idx := 0; idx < size; idx++ {
		prod := decimal.NewFromInt(1)
		for _, list := range lists {
			n, ok := list[idx].StrictNumber()
			if !ok {
				n = decimal.Zero
			}
			prod = prod.Mul(n)
		}
		total = total.Add(prod)
	}
	return models.Number(total)
}

// fnSumIf sums the values of sumRange (or the test range itself)
// wherever the criterion matches.
func fnSumIf(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 3) {
		return errNA()
	}
	test := args[0].Flatten()
	crit := compileCriterion(args[1].scalar())
	sum := test
	if len(args) == 3 {
		sum = args[2].Flatten()
		if len(sum) != len(test) {
			return errValue()
		}
	}
	total := decimal.Zero
	for i, v := range test {
		if !crit.matches(v) {
			continue
		}
		if n, ok := sum[i].StrictNumber(); ok {
			total = total.Add(n)
		}
	}
	return models.Number(total)
}

func fnSumIfs(ctx *Context, args []Operand) models.Value {
	if len(args) < 3 {
		return errNA()
	}
	sum := args[0].Flatten()
	ranges, crits, size, ok := criteriaPairs(args[1:])
	if !ok || size != len(sum) {
		return errValue()
	}
	total := decimal.Zero
	for i := range sum {
		matched := true
		for j, rng := range ranges {
			if !crits[j].matches(rng.Flatten()[i]) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if n, ok := sum[i].StrictNumber(); ok {
			total = total.Add(n)
		}
	}
	return models.Number(total)
}

func fnTrunc(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	places := 0
	if len(args) == 2 {
		var perr models.Value
		places, perr = scalarInt(args[1])
		if perr.IsError() {
			return perr
		}
	}
	return models.Number(n.Truncate(int32(places)))
}

// fnRound rounds half away from zero, the spreadsheet convention.
func fnRound(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	places, perr := scalarInt(args[1])
	if perr.IsError() {
		return perr
	}
	return models.Number(n.Round(int32(places)))
}

func fnRoundUp(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	places, perr := scalarInt(args[1])
	if perr.IsError() {
		return perr
	}
	return models.Number(n.RoundUp(int32(places)))
}

func fnRoundDown(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	places, perr := scalarInt(args[1])
	if perr.IsError() {
		return perr
	}
	return models.Number(n.RoundDown(int32(places)))
}

// fnMod matches the spreadsheet MOD, whose result takes the sign of
// the divisor: n - d*FLOOR(n/d).
func fnMod(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	d, derr := scalarNum(args[1])
	if derr.IsError() {
		return derr
	}
	if d.IsZero() {
		return errDiv0()
	}
	q := n.DivRound(d, 18).RoundFloor(0)
	return models.Number(n.Sub(d.Mul(q)))
}

func fnSqrt(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	x, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	if x < 0 {
		return errNum()
	}
	return models.NumberFromFloat(math.Sqrt(x))
}

func fnPower(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	base := args[0].scalar()
	exp := args[1].scalar()
	if base.IsError() {
		return base
	}
	if exp.IsError() {
		return exp
	}
	return applyBinary("^", base, exp)
}

func fnLn(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	x, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	if x <= 0 {
		return errNum()
	}
	return models.NumberFromFloat(math.Log(x))
}

// fnLog takes an optional base argument, defaulting to 10.
func fnLog(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	x, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	base := 10.0
	if len(args) == 2 {
		var berr models.Value
		base, berr = scalarFloat(args[1])
		if berr.IsError() {
			return berr
		}
	}
	if x <= 0 || base <= 0 || base == 1 {
		return errNum()
	}
	return models.NumberFromFloat(math.Log(x) / math.Log(base))
}

func fnLog10(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	x, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	if x <= 0 {
		return errNum()
	}
	return models.NumberFromFloat(math.Log10(x))
}

// fnCeiling rounds up to the nearest multiple of significance.
// Mismatched signs fail; a zero significance yields zero.
func fnCeiling(ctx *Context, args []Operand) models.Value {
	return roundToMultiple(args, true)
}

func fnFloor(ctx *Context, args []Operand) models.Value {
	return roundToMultiple(args, false)
}

func roundToMultiple(args []Operand, up bool) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	n, errv := scalarNum(args[0])
	if errv.IsError() {
		return errv
	}
	sig := decimal.NewFromInt(1)
	if len(args) == 2 {
		var serr models.Value
		sig, serr = scalarNum(args[1])
		if serr.IsError() {
			return serr
		}
	}
	if sig.IsZero() {
		return models.Zero()
	}
	if n.Sign()*sig.Sign() < 0 {
		return errNum()
	}
	q := n.DivRound(sig, 18)
	if up {
		q = q.RoundCeil(0)
	} else {
		q = q.RoundFloor(0)
	}
	return models.Number(q.Mul(sig))
}

func fnMin(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	if len(nums) == 0 {
		return models.Zero()
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n.Cmp(best) < 0 {
			best = n
		}
	}
	return models.Number(best)
}

func fnMax(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	if len(nums) == 0 {
		return models.Zero()
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n.Cmp(best) > 0 {
			best = n
		}
	}
	return models.Number(best)
}
