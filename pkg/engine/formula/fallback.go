package formula

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// cellTokenRe matches A1-style references in raw formula text. The
// trailing check in substituteRefs drops matches that are really
// function names (LOG10, ATAN2) rather than cells.
var cellTokenRe = regexp.MustCompile(`\$?[A-Za-z]{1,3}\$?[0-9]+`)

// EvalRaw evaluates a fallback formula by substituting the current
// value of every recognized cell reference into the text and handing
// the result to a general expression evaluator. Unresolvable
// references substitute as zero. Warnings describe every substitution
// so callers can flag the result as approximate.
func EvalRaw(ctx *Context, raw *RawFormula) (models.Value, []string) {
	body := strings.TrimPrefix(strings.TrimSpace(raw.Text), "=")
	body, warnings := substituteRefs(ctx, body)

	program, err := expr.Compile(body, expr.AsFloat64())
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("fallback compile failed: %v", err))
		return models.Error(models.ErrorValue), warnings
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("fallback evaluation failed: %v", err))
		return models.Error(models.ErrorValue), warnings
	}
	f, ok := out.(float64)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("fallback produced %T, expected a number", out))
		return models.Error(models.ErrorValue), warnings
	}
	return models.NumberFromFloat(f), warnings
}

// substituteRefs replaces each cell reference in the text with its
// current numeric value, longest references first so "AB12" is not
// clobbered by a prior "B12" rewrite.
func substituteRefs(ctx *Context, body string) (string, []string) {
	matches := cellTokenRe.FindAllStringIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	type sub struct {
		start, end int
		text       string
		warning    string
	}
	var subs []sub
	for _, m := range matches {
		token := body[m[0]:m[1]]
		// A match directly followed by "(" is a function call, not a
		// reference (LOG10(...), ATAN2(...)).
		rest := strings.TrimLeft(body[m[1]:], " ")
		if strings.HasPrefix(rest, "(") {
			continue
		}
		ref, err := models.ParseRef(token, ctx.Sheet)
		if err != nil {
			continue
		}
		v := ctx.Store.GetCell(ref)
		num, ok := v.AsFloat()
		if !ok || v.IsError() {
			subs = append(subs, sub{
				start: m[0], end: m[1], text: "0",
				warning: fmt.Sprintf("reference %s substituted as 0 in fallback", ref.ID()),
			})
			continue
		}
		subs = append(subs, sub{
			start: m[0], end: m[1],
			text:    fmt.Sprintf("%g", num),
			warning: fmt.Sprintf("reference %s substituted by value in fallback", ref.ID()),
		})
	}
	if len(subs) == 0 {
		return body, nil
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].start < subs[j].start })
	var b strings.Builder
	var warnings []string
	last := 0
	for _, s := range subs {
		b.WriteString(body[last:s.start])
		b.WriteString(s.text)
		warnings = append(warnings, s.warning)
		last = s.end
	}
	b.WriteString(body[last:])
	return b.String(), warnings
}
