package formula

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerText() {
	r.Register("LEFT", fnLeft)
	r.Register("RIGHT", fnRight)
	r.Register("MID", fnMid)
	r.Register("LEN", fnLen)
	r.Register("UPPER", text1(strings.ToUpper))
	r.Register("LOWER", text1(strings.ToLower))
	r.Register("PROPER", text1(properCase))
	r.Register("TRIM", text1(trimCollapse))
	r.Register("CONCATENATE", fnConcatenate)
	r.Register("CONCAT", fnConcat)
	r.Register("TEXTJOIN", fnTextJoin)
	r.Register("SUBSTITUTE", fnSubstitute)
	r.Register("REPLACE", fnReplace)
	r.Register("FIND", findFn(false))
	r.Register("SEARCH", findFn(true))
	r.Register("REPT", fnRept)
	r.Register("EXACT", fnExact)
	r.Register("VALUE", fnValue)
	r.Register("TEXT", fnText)
	r.Register("CHAR", fnChar)
	r.Register("CODE", fnCode)
}

func text1(f func(string) string) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 1, 1) {
			return errNA()
		}
		s, errv := scalarText(args[0])
		if errv.IsError() {
			return errv
		}
		return models.Text(f(s))
	}
}

// properCase uppercases the first letter of every word.
func properCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, ch := range s {
		if unicode.IsLetter(ch) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(ch))
			} else {
				b.WriteRune(unicode.ToUpper(ch))
			}
			prevLetter = true
		} else {
			b.WriteRune(ch)
			prevLetter = false
		}
	}
	return b.String()
}

// trimCollapse strips leading/trailing spaces and collapses internal
// runs to a single space, the spreadsheet TRIM.
func trimCollapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fnLeft(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	n := 1
	if len(args) == 2 {
		var nerr models.Value
		n, nerr = scalarInt(args[1])
		if nerr.IsError() {
			return nerr
		}
	}
	if n < 0 {
		return errValue()
	}
	runes := []rune(s)
	if n > len(runes) {
		n = len(runes)
	}
	return models.Text(string(runes[:n]))
}

func fnRight(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 2) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	n := 1
	if len(args) == 2 {
		var nerr models.Value
		n, nerr = scalarInt(args[1])
		if nerr.IsError() {
			return nerr
		}
	}
	if n < 0 {
		return errValue()
	}
	runes := []rune(s)
	if n > len(runes) {
		n = len(runes)
	}
	return models.Text(string(runes[len(runes)-n:]))
}

func fnMid(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 3) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	start, serr := scalarInt(args[1])
	if serr.IsError() {
		return serr
	}
	length, lerr := scalarInt(args[2])
	if lerr.IsError() {
		return lerr
	}
	if start < 1 || length < 0 {
		return errValue()
	}
	runes := []rune(s)
	if start > len(runes) {
		return models.Text("")
	}
	end := start - 1 + length
	if end > len(runes) {
		end = len(runes)
	}
	return models.Text(string(runes[start-1 : end]))
}

func fnLen(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	return models.NumberFromInt(int64(len([]rune(s))))
}

// fnConcatenate joins scalar arguments only.
func fnConcatenate(ctx *Context, args []Operand) models.Value {
	var b strings.Builder
	for _, a := range args {
		s, errv := scalarText(a)
		if errv.IsError() {
			return errv
		}
		b.WriteString(s)
	}
	return models.Text(b.String())
}

// fnConcat also flattens range arguments.
func fnConcat(ctx *Context, args []Operand) models.Value {
	var b strings.Builder
	for _, a := range args {
		for _, v := range a.Flatten() {
			if v.IsError() {
				return v
			}
			if v.IsBlank() {
				continue
			}
			b.WriteString(v.AsString())
		}
	}
	return models.Text(b.String())
}

func fnTextJoin(ctx *Context, args []Operand) models.Value {
	if len(args) < 3 {
		return errNA()
	}
	delim, derr := scalarText(args[0])
	if derr.IsError() {
		return derr
	}
	ignore := args[1].scalar()
	if ignore.IsError() {
		return ignore
	}
	ignoreEmpty := ignore.IsTruthy()

	var parts []string
	for _, a := range args[2:] {
		for _, v := range a.Flatten() {
			if v.IsError() {
				return v
			}
			s := ""
			if !v.IsBlank() {
				s = v.AsString()
			}
			if ignoreEmpty && s == "" {
				continue
			}
			parts = append(parts, s)
		}
	}
	return models.Text(strings.Join(parts, delim))
}

// fnSubstitute replaces occurrences of old text, all of them or only
// the Nth when an instance number is given.
func fnSubstitute(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 3, 4) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	old, oerr := scalarText(args[1])
	if oerr.IsError() {
		return oerr
	}
	replacement, rerr := scalarText(args[2])
	if rerr.IsError() {
		return rerr
	}
	if old == "" {
		return models.Text(s)
	}
	if len(args) == 3 {
		return models.Text(strings.ReplaceAll(s, old, replacement))
	}
	instance, ierr := scalarInt(args[3])
	if ierr.IsError() {
		return ierr
	}
	if instance < 1 {
		return errValue()
	}
	idx := 0
	for count := 0; ; count++ {
		pos := strings.Index(s[idx:], old)
		if pos == -1 {
			return models.Text(s)
		}
		idx += pos
		if count+1 == instance {
			return models.Text(s[:idx] + replacement + s[idx+len(old):])
		}
		idx += len(old)
	}
}

// fnReplace overwrites a 1-based character span with new text.
func fnReplace(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 4, 4) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	start, serr := scalarInt(args[1])
	if serr.IsError() {
		return serr
	}
	count, cerr := scalarInt(args[2])
	if cerr.IsError() {
		return cerr
	}
	replacement, rerr := scalarText(args[3])
	if rerr.IsError() {
		return rerr
	}
	if start < 1 || count < 0 {
		return errValue()
	}
	runes := []rune(s)
	if start > len(runes)+1 {
		start = len(runes) + 1
	}
	end := start - 1 + count
	if end > len(runes) {
		end = len(runes)
	}
	return models.Text(string(runes[:start-1]) + replacement + string(runes[end:]))
}

// findFn builds FIND (case-sensitive) and SEARCH (case-insensitive).
// Both return the 1-based position or invalid-value on a miss.
func findFn(caseless bool) Func {
	return func(ctx *Context, args []Operand) models.Value {
		if !argCount(args, 2, 3) {
			return errNA()
		}
		needle, nerr := scalarText(args[0])
		if nerr.IsError() {
			return nerr
		}
		hay, herr := scalarText(args[1])
		if herr.IsError() {
			return herr
		}
		start := 1
		if len(args) == 3 {
			var serr models.Value
			start, serr = scalarInt(args[2])
			if serr.IsError() {
				return serr
			}
		}
		hayRunes := []rune(hay)
		if start < 1 || start > len(hayRunes)+1 {
			return errValue()
		}
		sub := string(hayRunes[start-1:])
		if caseless {
			sub = strings.ToLower(sub)
			needle = strings.ToLower(needle)
		}
		pos := strings.Index(sub, needle)
		if pos == -1 {
			return errValue()
		}
		// Position is in runes, not bytes.
		return models.NumberFromInt(int64(start + len([]rune(sub[:pos]))))
	}
}

func fnRept(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	n, nerr := scalarInt(args[1])
	if nerr.IsError() {
		return nerr
	}
	if n < 0 {
		return errValue()
	}
	if len(s)*n > 32767 {
		return errValue()
	}
	return models.Text(strings.Repeat(s, n))
}

// fnExact compares case-sensitively, unlike the = operator.
func fnExact(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	a, aerr := scalarText(args[0])
	if aerr.IsError() {
		return aerr
	}
	b, berr := scalarText(args[1])
	if berr.IsError() {
		return berr
	}
	return models.Boolean(a == b)
}

func fnValue(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	v := args[0].scalar()
	if v.IsError() {
		return v
	}
	if v.Kind == models.KindNumber || v.Kind == models.KindTime {
		return v
	}
	s := strings.TrimSpace(v.AsString())
	s = strings.ReplaceAll(s, ",", "")
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "$")
	n, err := decimal.NewFromString(s)
	if err != nil {
		return errValue()
	}
	if percent {
		n = n.Div(decimal.NewFromInt(100))
	}
	return models.Number(n)
}

// fnText formats a number with a small supported subset of format
// codes: "0"-style decimal patterns with optional thousands separator
// and a trailing percent sign. Unrecognized formats return the plain
// display string.
func fnText(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	v := args[0].scalar()
	if v.IsError() {
		return v
	}
	format, ferr := scalarText(args[1])
	if ferr.IsError() {
		return ferr
	}
	n, ok := v.AsNumber()
	if !ok {
		return models.Text(v.AsString())
	}
	return models.Text(formatNumber(n, format))
}

func formatNumber(n decimal.Decimal, format string) string {
	percent := strings.HasSuffix(format, "%")
	if percent {
		format = strings.TrimSuffix(format, "%")
		n = n.Mul(decimal.NewFromInt(100))
	}
	thousands := strings.Contains(format, ",")
	format = strings.ReplaceAll(format, ",", "")

	places := 0
	if dot := strings.Index(format, "."); dot != -1 {
		places = len(format) - dot - 1
	}
	s := n.Round(int32(places)).StringFixed(int32(places))

	if thousands {
		neg := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		intPart := s
		frac := ""
		if dot := strings.Index(s, "."); dot != -1 {
			intPart, frac = s[:dot], s[dot:]
		}
		var groups []string
		for len(intPart) > 3 {
			groups = append([]string{intPart[len(intPart)-3:]}, groups...)
			intPart = intPart[:len(intPart)-3]
		}
		groups = append([]string{intPart}, groups...)
		s = strings.Join(groups, ",") + frac
		if neg {
			s = "-" + s
		}
	}
	if percent {
		s += "%"
	}
	return s
}

func fnChar(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	n, errv := scalarInt(args[0])
	if errv.IsError() {
		return errv
	}
	if n < 1 || n > 255 {
		return errValue()
	}
	return models.Text(string(rune(n)))
}

func fnCode(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 1, 1) {
		return errNA()
	}
	s, errv := scalarText(args[0])
	if errv.IsError() {
		return errv
	}
	if s == "" {
		return errValue()
	}
	return models.NumberFromInt(int64([]rune(s)[0]))
}
