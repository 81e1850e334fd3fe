package formula

import (
	"math"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// Iteration settings for the Newton-Raphson solvers in RATE and IRR.
const (
	solverIterCap = 100
	solverEpsilon = 1e-10
)

func (r *Registry) registerFinancial() {
	r.Register("PMT", fnPmt)
	r.Register("PV", fnPv)
	r.Register("FV", fnFv)
	r.Register("NPER", fnNper)
	r.Register("RATE", fnRate)
	r.Register("IRR", fnIrr)
	r.Register("NPV", fnNpv)
	r.Register("IPMT", fnIpmt)
	r.Register("PPMT", fnPpmt)
}

// pmtValue is the periodic payment for a loan. Zero rate degenerates
// to straight-line amortization.
func pmtValue(rate, nper, pv, fv float64, beginning bool) (float64, bool) {
	if nper == 0 {
		return 0, false
	}
	if rate == 0 {
		return -(pv + fv) / nper, true
	}
	f := math.Pow(1+rate, nper)
	when := 1.0
	if beginning {
		when = 1 + rate
	}
	denom := when * (f - 1)
	if denom == 0 {
		return 0, false
	}
	return -(pv*f + fv) * rate / denom, true
}

// fvValue is the balance after nper periods of payments.
func fvValue(rate, nper, pmt, pv float64, beginning bool) float64 {
	if rate == 0 {
		return -(pv + pmt*nper)
	}
	f := math.Pow(1+rate, nper)
	when := 1.0
	if beginning {
		when = 1 + rate
	}
	return -(pv*f + pmt*when*(f-1)/rate)
}

// tvmArgs unpacks the common (rate, a, b, [c], [type]) layout of the
// time-value-of-money functions.
func tvmArgs(args []Operand, min, max int) ([]float64, models.Value, bool) {
	if !argCount(args, min, max) {
		return nil, errNA(), false
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, errv := scalarFloat(a)
		if errv.IsError() {
			return nil, errv, false
		}
		out[i] = f
	}
	return out, models.Value{}, true
}

func fnPmt(ctx *Context, args []Operand) models.Value {
	vals, errv, ok := tvmArgs(args, 3, 5)
	if !ok {
		return errv
	}
	rate, nper, pv := vals[0], vals[1], vals[2]
	fv, beginning := optFvType(vals)
	p, ok := pmtValue(rate, nper, pv, fv, beginning)
	if !ok {
		return errNum()
	}
	return models.NumberFromFloat(p)
}

func fnPv(ctx *Context, args []Operand) models.Value {
	vals, errv, ok := tvmArgs(args, 3, 5)
	if !ok {
		return errv
	}
	rate, nper, pmt := vals[0], vals[1], vals[2]
	fv, beginning := optFvType(vals)
	if rate == 0 {
		return models.NumberFromFloat(-(fv + pmt*nper))
	}
	f := math.Pow(1+rate, nper)
	when := 1.0
	if beginning {
		when = 1 + rate
	}
	return models.NumberFromFloat(-(fv + pmt*when*(f-1)/rate) / f)
}

func fnFv(ctx *Context, args []Operand) models.Value {
	vals, errv, ok := tvmArgs(args, 3, 5)
	if !ok {
		return errv
	}
	rate, nper, pmt := vals[0], vals[1], vals[2]
	pv := 0.0
	beginning := false
	if len(vals) >= 4 {
		pv = vals[3]
	}
	if len(vals) == 5 {
		beginning = vals[4] != 0
	}
	return models.NumberFromFloat(fvValue(rate, nper, pmt, pv, beginning))
}

func fnNper(ctx *Context, args []Operand) models.Value {
	vals, errv, ok := tvmArgs(args, 3, 5)
	if !ok {
		return errv
	}
	rate, pmt, pv := vals[0], vals[1], vals[2]
	fv, beginning := optFvType(vals)
	if rate == 0 {
		if pmt == 0 {
			return errDiv0()
		}
		return models.NumberFromFloat(-(pv + fv) / pmt)
	}
	when := 1.0
	if beginning {
		when = 1 + rate
	}
	num := pmt*when - fv*rate
	denom := pmt*when + pv*rate
	if denom == 0 || num/denom <= 0 {
		return errNum()
	}
	return models.NumberFromFloat(math.Log(num/denom) / math.Log(1+rate))
}

// optFvType reads the optional fv and type slots of a 3-5 argument
// time-value call.
func optFvType(vals []float64) (fv float64, beginning bool) {
	if len(vals) >= 4 {
		fv = vals[3]
	}
	if len(vals) == 5 {
		beginning = vals[4] != 0
	}
	return fv, beginning
}

// fnRate solves for the periodic interest rate by Newton-Raphson with
// a numeric derivative, failing with numeric-overflow when the
// iteration cap passes without convergence.
func fnRate(ctx *Context, args []Operand) models.Value {
	vals, errv, ok := tvmArgs(args, 3, 6)
	if !ok {
		return errv
	}
	nper, pmt, pv := vals[0], vals[1], vals[2]
	fv := 0.0
	beginning := false
	guess := 0.1
	if len(vals) >= 4 {
		fv = vals[3]
	}
	if len(vals) >= 5 {
		beginning = vals[4] != 0
	}
	if len(vals) == 6 {
		guess = vals[5]
	}

	balance := func(rate float64) float64 {
		if rate == 0 {
			return pv + pmt*nper + fv
		}
		f := math.Pow(1+rate, nper)
		when := 1.0
		if beginning {
			when = 1 + rate
		}
		return pv*f + pmt*when*(f-1)/rate + fv
	}

	rate := guess
	for i := 0; i < solverIterCap; i++ {
		y := balance(rate)
		if math.Abs(y) < solverEpsilon {
			return models.NumberFromFloat(rate)
		}
		const h = 1e-7
		dy := (balance(rate+h) - y) / h
		if dy == 0 || math.IsNaN(dy) {
			return errNum()
		}
		next := rate - y/dy
		if math.Abs(next-rate) < solverEpsilon {
			return models.NumberFromFloat(next)
		}
		rate = next
	}
	return errNum()
}

// fnIrr solves the internal rate of return of a cash-flow series; the
// series needs at least one inflow and one outflow.
func fnIrr(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	flows, errv := collectFloats(args[:1])
	if errv.IsError() {
		return errv
	}
	guess := 0.1
	if len(args) == 2 {
		var gerr models.Value
		guess, gerr = scalarFloat(args[1])
		if gerr.IsError() {
			return gerr
		}
	}
	hasPos, hasNeg := false, false
	for _, f := range flows {
		if f > 0 {
			hasPos = true
		}
		if f < 0 {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return errNum()
	}

	rate := guess
	for i := 0; i < solverIterCap; i++ {
		npv := 0.0
		deriv := 0.0
		for t, f := range flows {
			d := math.Pow(1+rate, float64(t))
			npv += f / d
			if t > 0 {
				deriv -= float64(t) * f / (d * (1 + rate))
			}
		}
		if math.Abs(npv) < solverEpsilon {
			return models.NumberFromFloat(rate)
		}
		if deriv == 0 || math.IsNaN(deriv) {
			return errNum()
		}
		next := rate - npv/deriv
		if next <= -1 {
			next = (rate - 1) / 2
		}
		if math.Abs(next-rate) < solverEpsilon {
			return models.NumberFromFloat(next)
		}
		rate = next
	}
	return errNum()
}

// fnNpv discounts a series of future cash flows, the first one period
// out.
func fnNpv(ctx *Context, args []Operand) models.Value {
	if len(args) < 2 {
		return errNA()
	}
	rate, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	if rate == -1 {
		return errDiv0()
	}
	flows, ferr := collectFloats(args[1:])
	if ferr.IsError() {
		return ferr
	}
	total := 0.0
	for i, f := range flows {
		total += f / math.Pow(1+rate, float64(i+1))
	}
	return models.NumberFromFloat(total)
}

// fnIpmt is the interest portion of a given period's payment: the
// prior balance times the rate.
func fnIpmt(ctx *Context, args []Operand) models.Value {
	ip, _, errv := splitPayment(args)
	if errv.IsError() {
		return errv
	}
	return models.NumberFromFloat(ip)
}

func fnPpmt(ctx *Context, args []Operand) models.Value {
	_, pp, errv := splitPayment(args)
	if errv.IsError() {
		return errv
	}
	return models.NumberFromFloat(pp)
}

func splitPayment(args []Operand) (ipmt, ppmt float64, errv models.Value) {
	vals, errv, ok := tvmArgs(args, 4, 6)
	if !ok {
		return 0, 0, errv
	}
	rate, per, nper, pv := vals[0], vals[1], vals[2], vals[3]
	fv := 0.0
	beginning := false
	if len(vals) >= 5 {
		fv = vals[4]
	}
	if len(vals) == 6 {
		beginning = vals[5] != 0
	}
	if per < 1 || per > nper {
		return 0, 0, errNum()
	}
	pmt, ok := pmtValue(rate, nper, pv, fv, beginning)
	if !ok {
		return 0, 0, errNum()
	}
	if rate == 0 {
		return 0, pmt, models.Value{}
	}
	if beginning && per == 1 {
		return 0, pmt, models.Value{}
	}
	ip := fvValue(rate, per-1, pmt, pv, beginning) * rate
	if beginning {
		ip /= 1 + rate
	}
	return ip, pmt - ip, models.Value{}
}
