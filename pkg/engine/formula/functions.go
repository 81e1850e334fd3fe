package formula

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// Func is one spreadsheet function: evaluation context plus
// already-evaluated arguments in, a single value out. Spreadsheet
// errors are returned as error-kind values.
type Func func(ctx *Context, args []Operand) models.Value

// ArrayFunc is a function whose result keeps a rectangle shape, used
// by the array category.
type ArrayFunc func(ctx *Context, args []Operand) Operand

// Registry is the name-indexed function library, populated once at
// construction. Lookup is by uppercased name.
type Registry struct {
	funcs      map[string]Func
	arrayFuncs map[string]ArrayFunc
	clock      Clock
}

// NewRegistry builds the registry with the full function library
// registered. A nil clock defaults to wall time.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = WallClock{}
	}
	r := &Registry{
		funcs:      make(map[string]Func),
		arrayFuncs: make(map[string]ArrayFunc),
		clock:      clock,
	}
	r.registerLogical()
	r.registerMath()
	r.registerStatistical()
	r.registerLookup()
	r.registerText()
	r.registerFinancial()
	r.registerDateTime()
	r.registerInfo()
	r.registerArray()
	return r
}

// Register adds or replaces a function under the given name.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[strings.ToUpper(name)] = fn
}

// RegisterArray adds or replaces an array-result function.
func (r *Registry) RegisterArray(name string, fn ArrayFunc) {
	r.arrayFuncs[strings.ToUpper(name)] = fn
}

// Has reports whether a function name is registered.
func (r *Registry) Has(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := r.funcs[upper]; ok {
		return true
	}
	_, ok := r.arrayFuncs[upper]
	return ok
}

// Names returns every registered function name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs)+len(r.arrayFuncs))
	for name := range r.funcs {
		names = append(names, name)
	}
	for name := range r.arrayFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches by uppercased name. An unregistered name evaluates
// to the invalid-name error rather than failing the pass.
func (r *Registry) Call(ctx *Context, name string, args []Operand) Operand {
	upper := strings.ToUpper(name)
	if fn, ok := r.arrayFuncs[upper]; ok {
		return fn(ctx, args)
	}
	fn, ok := r.funcs[upper]
	if !ok {
		return Scalar(models.Error(models.ErrorName))
	}
	return Scalar(fn(ctx, args))
}

// errNA and friends save a little typing in argument checks.
func errNA() models.Value    { return models.Error(models.ErrorNA) }
func errValue() models.Value { return models.Error(models.ErrorValue) }
func errNum() models.Value   { return models.Error(models.ErrorNum) }
func errDiv0() models.Value  { return models.Error(models.ErrorDiv0) }

// argCount checks the argument count against [min, max]; max -1 means
// unbounded.
func argCount(args []Operand, min, max int) bool {
	if len(args) < min {
		return false
	}
	return max < 0 || len(args) <= max
}

// firstError returns the first error value present in any argument,
// scanning ranges element by element.
func firstError(args []Operand) (models.Value, bool) {
	for _, a := range args {
		for _, v := range a.Flatten() {
			if v.IsError() {
				return v, true
			}
		}
	}
	return models.Value{}, false
}

// scalarNum coerces an operand to a decimal. The second return is the
// error value to propagate when coercion fails.
func scalarNum(o Operand) (decimal.Decimal, models.Value) {
	v := o.scalar()
	if v.IsError() {
		return decimal.Zero, v
	}
	n, ok := v.AsNumber()
	if !ok {
		return decimal.Zero, errValue()
	}
	return n, models.Value{}
}

// scalarFloat coerces an operand to a float64 for the functions whose
// reference behavior is binary floating point.
func scalarFloat(o Operand) (float64, models.Value) {
	v := o.scalar()
	if v.IsError() {
		return 0, v
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, errValue()
	}
	return f, models.Value{}
}

// scalarInt coerces an operand to an int, truncating toward zero.
func scalarInt(o Operand) (int, models.Value) {
	n, errv := scalarNum(o)
	if errv.IsError() {
		return 0, errv
	}
	return int(n.IntPart()), models.Value{}
}

// scalarText coerces an operand to its display string.
func scalarText(o Operand) (string, models.Value) {
	v := o.scalar()
	if v.IsError() {
		return "", v
	}
	return v.AsString(), models.Value{}
}

// collectNumbers gathers numeric inputs with aggregation coercion
// rules: inside ranges only genuine numbers count and text, booleans
// and blanks are skipped; scalar arguments are coerced, with blanks
// skipped. Errors propagate from either position.
func collectNumbers(args []Operand) ([]decimal.Decimal, models.Value) {
	var out []decimal.Decimal
	for _, a := range args {
		if a.IsRange {
			for _, v := range a.List {
				if v.IsError() {
					return nil, v
				}
				if n, ok := v.StrictNumber(); ok {
					out = append(out, n)
				}
			}
			continue
		}
		v := a.Value
		if v.IsError() {
			return nil, v
		}
		if v.IsBlank() {
			continue
		}
		n, ok := v.AsNumber()
		if !ok {
			return nil, errValue()
		}
		out = append(out, n)
	}
	return out, models.Value{}
}

// collectFloats is collectNumbers for the float-backed statistics.
func collectFloats(args []Operand) ([]float64, models.Value) {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return nil, errv
	}
	out := make([]float64, len(nums))
	for i, n := range nums {
		out[i], _ = n.Float64()
	}
	return out, models.Value{}
}

// collectBools gathers boolean inputs for AND/OR/XOR: booleans and
// numbers coerce, text and blanks inside ranges are skipped, scalar
// text must spell a logical value.
func collectBools(args []Operand) ([]bool, models.Value) {
	var out []bool
	for _, a := range args {
		if a.IsRange {
			for _, v := range a.List {
				if v.IsError() {
					return nil, v
				}
				switch v.Kind {
				case models.KindBool:
					out = append(out, v.Bool)
				case models.KindNumber:
					out = append(out, !v.Num.IsZero())
				}
			}
			continue
		}
		v := a.Value
		if v.IsError() {
			return nil, v
		}
		switch v.Kind {
		case models.KindBool:
			out = append(out, v.Bool)
		case models.KindNumber:
			out = append(out, !v.Num.IsZero())
		case models.KindText:
			switch strings.ToUpper(v.Text) {
			case "TRUE":
				out = append(out, true)
			case "FALSE":
				out = append(out, false)
			default:
				return nil, errValue()
			}
		case models.KindEmpty:
		default:
			return nil, errValue()
		}
	}
	return out, models.Value{}
}

// criteriaPairs validates the (range, criteria) argument pairs shared
// by the multi-criteria aggregations and compiles each criterion. All
// ranges must have the same cell count.
func criteriaPairs(args []Operand) (ranges []Operand, crits []criterion, size int, ok bool) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, nil, 0, false
	}
	size = -1
	for i := 0; i < len(args); i += 2 {
		r := args[i]
		n := len(r.Flatten())
		if size == -1 {
			size = n
		} else if n != size {
			return nil, nil, 0, false
		}
		ranges = append(ranges, r)
		crits = append(crits, compileCriterion(args[i+1].scalar()))
	}
	return ranges, crits, size, true
}
