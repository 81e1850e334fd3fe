package formula

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/efp"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// ErrSyntax indicates formula text that fails the cheap syntax
// pre-check (unbalanced parentheses, empty body).
var ErrSyntax = errors.New("formula syntax error")

// maxRangeCells bounds how many cells a single range reference may
// expand to. Ranges are always expanded eagerly, never lazily
// infinite.
const maxRangeCells = 65536

// SheetContext tells the parser which sheet a formula belongs to and
// how to resolve names and sheet bounds it cannot know itself.
type SheetContext struct {
	// Sheet is the sheet the formula lives on; unqualified references
	// default to it.
	Sheet string
	// HasName reports whether an identifier is a registered named range.
	HasName func(name string) bool
	// Bounds returns a sheet's used range (max column, max row) so
	// whole-column references can be clamped. May be nil.
	Bounds func(sheet string) (maxCol, maxRow int)
}

func (sc SheetContext) hasName(name string) bool {
	return sc.HasName != nil && sc.HasName(name)
}

func (sc SheetContext) bounds(sheetName string) (int, int) {
	if sc.Bounds == nil {
		return 0, 0
	}
	return sc.Bounds(sheetName)
}

// DepKind distinguishes cell dependencies from the synthetic
// dependencies recorded for named ranges.
type DepKind uint8

const (
	DepCell DepKind = iota
	DepNamedRange
)

// Dep is one extracted dependency: a cell node ID for DepCell, the
// range name for DepNamedRange.
type Dep struct {
	Kind DepKind
	ID   string
}

// ResultKind tags the outcome of parsing one formula.
type ResultKind uint8

const (
	// ParsedLiteral means the text had no cell references or function
	// calls and reduced to a plain value.
	ParsedLiteral ResultKind = iota
	// ParsedExpression means the text parsed into an expression tree.
	ParsedExpression
	// ParsedFallback means the grammar could not structure the text;
	// the raw representation is evaluated by text substitution.
	ParsedFallback
	// ParsedError means the text failed the syntax pre-check.
	ParsedError
)

// Parsed is the tagged parse result. Exactly one of Literal, Expr,
// Raw or Err is meaningful, selected by Kind; Deps accompanies the
// expression and fallback variants.
type Parsed struct {
	Kind    ResultKind
	Literal models.Value
	Expr    Expr
	Raw     *RawFormula
	Deps    []Dep
	Err     error
}

// RawFormula is the best-effort fallback representation of a formula
// the structured parser could not handle: the raw text, the function
// names invoked, the operator tokens present, and the cell references
// recognized for substitution.
type RawFormula struct {
	Text      string
	Functions []string
	Operators []string
	Refs      []models.Ref
}

// ValidateSyntax is the cheap syntax pre-check: the body must be
// non-empty and parentheses must balance. It is exposed separately for
// diagnostics and does not attempt a full parse.
func ValidateSyntax(text string) error {
	body := strings.TrimPrefix(strings.TrimSpace(text), "=")
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("empty formula: %w", ErrSyntax)
	}
	depth := 0
	inString := false
	for _, ch := range body {
		switch {
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced parentheses: %w", ErrSyntax)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses: %w", ErrSyntax)
	}
	return nil
}

// Parse converts formula text (with or without the leading "=") into
// its tagged parse result. Text without the marker is classified as a
// literal. Marked text is tokenized and parsed into an expression
// tree; when the grammar cannot structure it, Parse still succeeds
// with the fallback representation.
func Parse(text string, sc SheetContext) *Parsed {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "=") {
		return &Parsed{Kind: ParsedLiteral, Literal: classifyLiteral(trimmed)}
	}
	if err := ValidateSyntax(trimmed); err != nil {
		return &Parsed{Kind: ParsedError, Err: err}
	}
	body := strings.TrimPrefix(trimmed, "=")

	tokens := tokenize(body)
	deps := extractDeps(tokens, sc)

	p := &parser{toks: tokens, sc: sc}
	expr, err := p.parseExpression()
	if err == nil && p.pos < len(p.toks) {
		err = fmt.Errorf("unexpected token %q after expression", p.toks[p.pos].TValue)
	}
	if err != nil {
		return &Parsed{
			Kind: ParsedFallback,
			Raw:  buildRaw(trimmed, tokens, sc),
			Deps: deps,
		}
	}

	if !hasRefsOrCalls(expr) {
		v := expr.Eval(&Context{}).scalar()
		return &Parsed{Kind: ParsedLiteral, Literal: v}
	}
	return &Parsed{Kind: ParsedExpression, Expr: expr, Deps: deps}
}

// classifyLiteral turns unmarked cell text into a typed value.
func classifyLiteral(s string) models.Value {
	if s == "" {
		return models.Empty()
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return models.Number(d)
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return models.Boolean(true)
	case "FALSE":
		return models.Boolean(false)
	}
	if models.IsErrorCode(s) {
		return models.Error(models.ErrorCode(s))
	}
	return models.Text(s)
}

// tokenize runs efp over the formula body and drops whitespace and
// noop tokens.
func tokenize(body string) []efp.Token {
	ps := efp.ExcelParser()
	all := ps.Parse(body)
	out := make([]efp.Token, 0, len(all))
	for _, t := range all {
		if t.TType == efp.TokenTypeWhitespace || t.TType == efp.TokenTypeNoop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// columnOnlyRe matches whole-column range endpoints like "A" or "$BC".
var columnOnlyRe = regexp.MustCompile(`^\$?[A-Za-z]{1,3}$`)

// parseRangeToken resolves a range operand token to a concrete
// rectangle. Whole-column ranges ("A:A") are clamped to the sheet's
// used range; expansion beyond maxRangeCells is refused.
func parseRangeToken(s string, sc SheetContext) (models.RangeRef, error) {
	sheetName, rest, err := splitSheetPrefix(s, sc.Sheet)
	if err != nil {
		return models.RangeRef{}, err
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return models.RangeRef{}, fmt.Errorf("invalid range %q", s)
	}
	if columnOnlyRe.MatchString(parts[0]) && columnOnlyRe.MatchString(parts[1]) {
		startCol, err := models.ColumnNumber(strings.TrimPrefix(parts[0], "$"))
		if err != nil {
			return models.RangeRef{}, err
		}
		endCol, err := models.ColumnNumber(strings.TrimPrefix(parts[1], "$"))
		if err != nil {
			return models.RangeRef{}, err
		}
		_, maxRow := sc.bounds(sheetName)
		if maxRow < 1 {
			maxRow = 1
		}
		rr := models.RangeRef{
			Sheet:    sheetName,
			StartCol: min(startCol, endCol),
			StartRow: 1,
			EndCol:   max(startCol, endCol),
			EndRow:   maxRow,
		}
		if rr.Size() > maxRangeCells {
			return models.RangeRef{}, fmt.Errorf("range %q expands to %d cells", s, rr.Size())
		}
		return rr, nil
	}
	rr, err := models.ParseRangeRef(sheetName+"!"+rest, sheetName)
	if err != nil {
		return models.RangeRef{}, err
	}
	if rr.Size() > maxRangeCells {
		return models.RangeRef{}, fmt.Errorf("range %q expands to %d cells", s, rr.Size())
	}
	return rr, nil
}

// splitSheetPrefix splits an optional sheet qualifier off a reference,
// rejecting qualifiers on both endpoints (cross-sheet ranges).
func splitSheetPrefix(s, defaultSheet string) (sheetName, rest string, err error) {
	idx := strings.LastIndex(s, "!")
	if idx == -1 {
		return defaultSheet, s, nil
	}
	name := s[:idx]
	rest = s[idx+1:]
	if strings.Contains(rest, "!") {
		return "", "", fmt.Errorf("cross-sheet range %q is not supported", s)
	}
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") && len(name) >= 2 {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name, rest, nil
}

// extractDeps walks the token stream independently of tree parsing,
// finding single-cell references, range references expanded into every
// contained cell, and bare identifiers that match a known named range.
// Oversized ranges degrade to their two corner cells.
func extractDeps(tokens []efp.Token, sc SheetContext) []Dep {
	seen := make(map[string]struct{})
	var deps []Dep
	add := func(d Dep) {
		key := fmt.Sprintf("%d:%s", d.Kind, d.ID)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		deps = append(deps, d)
	}

	for _, t := range tokens {
		if t.TType != efp.TokenTypeOperand || t.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref := t.TValue
		if strings.Contains(ref, ":") {
			rr, err := parseRangeToken(ref, sc)
			if err != nil {
				// Degrade to the corner cells so the graph still sees
				// the cross-edge even when expansion is refused.
				sheetName, rest, serr := splitSheetPrefix(ref, sc.Sheet)
				if serr != nil {
					continue
				}
				for _, corner := range strings.SplitN(rest, ":", 2) {
					if r, rerr := models.ParseRef(corner, sheetName); rerr == nil {
						r.Sheet = sheetName
						add(Dep{Kind: DepCell, ID: r.ID()})
					}
				}
				continue
			}
			for _, c := range rr.Cells() {
				add(Dep{Kind: DepCell, ID: c.ID()})
			}
			continue
		}
		if r, err := models.ParseRef(ref, sc.Sheet); err == nil {
			add(Dep{Kind: DepCell, ID: r.ID()})
			continue
		}
		name := strings.TrimPrefix(ref, "$")
		if sc.hasName(name) {
			add(Dep{Kind: DepNamedRange, ID: name})
		}
	}
	return deps
}

// buildRaw assembles the fallback representation from the token
// stream: raw text, a best-effort list of function names invoked, the
// operator tokens present, and the recognizable cell references.
func buildRaw(text string, tokens []efp.Token, sc SheetContext) *RawFormula {
	raw := &RawFormula{Text: text}
	seenFn := make(map[string]struct{})
	for _, t := range tokens {
		switch t.TType {
		case efp.TokenTypeFunction:
			if t.TSubType == efp.TokenSubTypeStart {
				name := strings.ToUpper(t.TValue)
				if _, ok := seenFn[name]; !ok {
					seenFn[name] = struct{}{}
					raw.Functions = append(raw.Functions, name)
				}
			}
		case efp.TokenTypeOperatorInfix, efp.TokenTypeOperatorPrefix, efp.TokenTypeOperatorPostfix:
			raw.Operators = append(raw.Operators, t.TValue)
		case efp.TokenTypeOperand:
			if t.TSubType == efp.TokenSubTypeRange && !strings.Contains(t.TValue, ":") {
				if r, err := models.ParseRef(t.TValue, sc.Sheet); err == nil {
					raw.Refs = append(raw.Refs, r)
				}
			}
		}
	}
	return raw
}

// hasRefsOrCalls reports whether an expression tree contains any cell,
// range or named-range reference or function call. Trees without them
// reduce to literals at parse time.
func hasRefsOrCalls(e Expr) bool {
	switch n := e.(type) {
	case *CellExpr, *RangeExpr, *NamedExpr, *FuncExpr:
		return true
	case *UnaryExpr:
		return hasRefsOrCalls(n.Operand)
	case *BinaryExpr:
		return hasRefsOrCalls(n.Left) || hasRefsOrCalls(n.Right)
	}
	return false
}

// parser is a recursive-descent parser over the efp token stream.
// Precedence, lowest to highest: comparison, concatenation, additive,
// multiplicative, power, unary prefix, postfix percent, primary.
type parser struct {
	toks []efp.Token
	pos  int
	sc   SheetContext
}

func (p *parser) peek() (efp.Token, bool) {
	if p.pos >= len(p.toks) {
		return efp.Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) infix(values ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.TType != efp.TokenTypeOperatorInfix {
		return "", false
	}
	for _, v := range values {
		if t.TValue == v {
			return v, true
		}
	}
	return "", false
}

func (p *parser) parseExpression() (Expr, error) {
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.infix("=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseConcat() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.infix("&"); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "&", Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.infix("+", "-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.infix("*", "/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

// parsePower is right-associative.
func (p *parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.infix("^"); !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: "^", Left: left, Right: right}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	t, ok := p.peek()
	if ok && t.TType == efp.TokenTypeOperatorPrefix && (t.TValue == "-" || t.TValue == "+") {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: t.TValue, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok && t.TType == efp.TokenTypeOperatorPostfix && t.TValue == "%" {
		p.pos++
		return &UnaryExpr{Op: "%", Operand: node}, nil
	}
	return node, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of formula")
	}

	switch t.TType {
	case efp.TokenTypeOperand:
		p.pos++
		return p.parseOperand(t)

	case efp.TokenTypeFunction:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, fmt.Errorf("unexpected function stop")
		}
		return p.parseFunction(t)

	case efp.TokenTypeSubexpression:
		if t.TSubType != efp.TokenSubTypeStart {
			return nil, fmt.Errorf("unexpected subexpression stop")
		}
		p.pos++
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		end, ok := p.peek()
		if !ok || end.TType != efp.TokenTypeSubexpression || end.TSubType != efp.TokenSubTypeStop {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q", t.TValue)
}

func (p *parser) parseOperand(t efp.Token) (Expr, error) {
	switch t.TSubType {
	case efp.TokenSubTypeNumber:
		d, err := decimal.NewFromString(t.TValue)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.TValue)
		}
		return &LiteralExpr{Val: models.Number(d)}, nil

	case efp.TokenSubTypeText:
		return &LiteralExpr{Val: models.Text(t.TValue)}, nil

	case efp.TokenSubTypeLogical:
		return &LiteralExpr{Val: models.Boolean(strings.EqualFold(t.TValue, "TRUE"))}, nil

	case efp.TokenSubTypeError:
		if models.IsErrorCode(t.TValue) {
			return &LiteralExpr{Val: models.Error(models.ErrorCode(t.TValue))}, nil
		}
		return nil, fmt.Errorf("unknown error literal %q", t.TValue)

	case efp.TokenSubTypeRange:
		if strings.Contains(t.TValue, ":") {
			rr, err := parseRangeToken(t.TValue, p.sc)
			if err != nil {
				return nil, err
			}
			return &RangeExpr{Range: rr}, nil
		}
		if r, err := models.ParseRef(t.TValue, p.sc.Sheet); err == nil {
			return &CellExpr{Ref: r}, nil
		}
		// Bare identifier: a named range, resolved at evaluation so an
		// unknown name surfaces as #NAME? rather than a parse failure.
		return &NamedExpr{Name: strings.TrimPrefix(t.TValue, "$")}, nil
	}
	return nil, fmt.Errorf("unsupported operand %q (%s)", t.TValue, t.TSubType)
}

func (p *parser) parseFunction(start efp.Token) (Expr, error) {
	name := strings.ToUpper(strings.TrimSuffix(start.TValue, "("))
	p.pos++

	fn := &FuncExpr{Name: name}
	// Empty argument list: Start immediately followed by Stop.
	if t, ok := p.peek(); ok && t.TType == efp.TokenTypeFunction && t.TSubType == efp.TokenSubTypeStop {
		p.pos++
		return fn, nil
	}

	for {
		if t, ok := p.peek(); ok && t.TType == efp.TokenTypeArgument {
			// Elided argument like IF(a,,b).
			fn.Args = append(fn.Args, &LiteralExpr{Val: models.Empty()})
			p.pos++
			continue
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)

		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated call to %s", name)
		}
		switch {
		case t.TType == efp.TokenTypeArgument:
			p.pos++
		case t.TType == efp.TokenTypeFunction && t.TSubType == efp.TokenSubTypeStop:
			p.pos++
			return fn, nil
		default:
			return nil, fmt.Errorf("unexpected token %q in call to %s", t.TValue, name)
		}
	}
}
