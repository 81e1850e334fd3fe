package formula

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// applyBinary applies an infix operator to two scalar values.
// Arithmetic uses decimals throughout; ^ falls back to float math only
// for non-integer exponents, where binary floating point is what the
// reference workbook computes with anyway.
func applyBinary(op string, l, r models.Value) models.Value {
	switch op {
	case "+", "-", "*", "/", "^", "%":
		ln, lok := l.AsNumber()
		rn, rok := r.AsNumber()
		if !lok || !rok {
			return models.Error(models.ErrorValue)
		}
		switch op {
		case "+":
			return models.Number(ln.Add(rn))
		case "-":
			return models.Number(ln.Sub(rn))
		case "*":
			return models.Number(ln.Mul(rn))
		case "/":
			if rn.IsZero() {
				return models.Error(models.ErrorDiv0)
			}
			return models.Number(ln.DivRound(rn, 18))
		case "%":
			if rn.IsZero() {
				return models.Error(models.ErrorDiv0)
			}
			return models.Number(ln.Mod(rn))
		case "^":
			if rn.IsInteger() {
				return models.Number(ln.Pow(rn))
			}
			lf, _ := ln.Float64()
			rf, _ := rn.Float64()
			res := math.Pow(lf, rf)
			if math.IsNaN(res) || math.IsInf(res, 0) {
				return models.Error(models.ErrorNum)
			}
			return models.NumberFromFloat(res)
		}
	case "&":
		return models.Text(l.AsString() + r.AsString())
	case "=", "<>", "<", "<=", ">", ">=":
		cmp := models.Compare(l, r)
		switch op {
		case "=":
			return models.Boolean(cmp == 0)
		case "<>":
			return models.Boolean(cmp != 0)
		case "<":
			return models.Boolean(cmp < 0)
		case "<=":
			return models.Boolean(cmp <= 0)
		case ">":
			return models.Boolean(cmp > 0)
		case ">=":
			return models.Boolean(cmp >= 0)
		}
	}
	return models.Error(models.ErrorValue)
}

// criterion is a compiled SUMIF/COUNTIF-style criteria string.
type criterion struct {
	op      string
	number  decimal.Decimal
	numeric bool
	text    string
	pattern *regexp.Regexp
}

// compileCriterion parses a criteria argument: an optional comparison
// operator prefix (">", ">=", "<", "<=", "<>", "=") followed by a
// number or text, or a bare value. Text criteria support the * and ?
// wildcards, translated to anchored case-insensitive matching.
func compileCriterion(v models.Value) criterion {
	if v.Kind != models.KindText {
		if n, ok := v.StrictNumber(); ok {
			return criterion{op: "=", number: n, numeric: true}
		}
		if v.Kind == models.KindBool {
			return criterion{op: "=", text: v.AsString()}
		}
		return criterion{op: "=", numeric: true, number: decimal.Zero}
	}

	s := v.Text
	op := "="
	for _, prefix := range []string{">=", "<=", "<>", ">", "<", "="} {
		if strings.HasPrefix(s, prefix) {
			op = prefix
			s = s[len(prefix):]
			break
		}
	}

	if n, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
		return criterion{op: op, number: n, numeric: true}
	}

	c := criterion{op: op, text: s}
	if op == "=" || op == "<>" {
		if strings.ContainsAny(s, "*?") {
			var b strings.Builder
			b.WriteString("(?i)^")
			for _, ch := range s {
				switch ch {
				case '*':
					b.WriteString(".*")
				case '?':
					b.WriteString(".")
				default:
					b.WriteString(regexp.QuoteMeta(string(ch)))
				}
			}
			b.WriteString("$")
			if re, err := regexp.Compile(b.String()); err == nil {
				c.pattern = re
			}
		}
	}
	return c
}

// matches reports whether a cell value satisfies the criterion.
func (c criterion) matches(v models.Value) bool {
	if c.numeric {
		n, ok := v.StrictNumber()
		if !ok {
			// "=0" style criteria also match blank cells.
			if v.IsBlank() && c.op == "=" && c.number.IsZero() {
				return true
			}
			return false
		}
		cmp := n.Cmp(c.number)
		switch c.op {
		case "=":
			return cmp == 0
		case "<>":
			return cmp != 0
		case ">":
			return cmp > 0
		case ">=":
			return cmp >= 0
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		}
		return false
	}

	s := v.AsString()
	if c.pattern != nil {
		hit := c.pattern.MatchString(s)
		if c.op == "<>" {
			return !hit
		}
		return hit
	}
	cmp := strings.Compare(strings.ToLower(s), strings.ToLower(c.text))
	switch c.op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}
