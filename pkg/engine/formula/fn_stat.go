package formula

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func (r *Registry) registerStatistical() {
	r.Register("AVERAGE", fnAverage)
	r.Register("AVERAGEA", fnAverageA)
	r.Register("AVERAGEIF", fnAverageIf)
	r.Register("AVERAGEIFS", fnAverageIfs)
	r.Register("COUNT", fnCount)
	r.Register("COUNTA", fnCountA)
	r.Register("COUNTBLANK", fnCountBlank)
	r.Register("COUNTIF", fnCountIf)
	r.Register("COUNTIFS", fnCountIfs)
	r.Register("MEDIAN", fnMedian)
	r.Register("MODE", fnMode)
	r.Register("STDEV", varianceFn(true, true))
	r.Register("STDEVP", varianceFn(false, true))
	r.Register("VAR", varianceFn(true, false))
	r.Register("VARP", varianceFn(false, false))
	r.Register("LARGE", fnLarge)
	r.Register("SMALL", fnSmall)
	r.Register("RANK", fnRank)
}

// fnAverage averages numeric inputs; no numeric input at all is a
// divide-by-zero, never null.
func fnAverage(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	if len(nums) == 0 {
		return errDiv0()
	}
	total := decimal.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return models.Number(total.DivRound(decimal.NewFromInt(int64(len(nums))), 18))
}

// fnAverageA counts text as zero and booleans as 0/1, skipping only
// blanks.
func fnAverageA(ctx *Context, args []Operand) models.Value {
	total := decimal.Zero
	count := 0
	for _, a := range args {
		for _, v := range a.Flatten() {
			if v.IsError() {
				return v
			}
			if v.IsBlank() {
				continue
			}
			count++
			switch v.Kind {
			case models.KindBool:
				if v.Bool {
					total = total.Add(decimal.NewFromInt(1))
				}
			case models.KindText:
				// zero contribution
			default:
				if n, ok := v.AsNumber(); ok {
					total = total.Add(n)
				}
			}
		}
	}
	if count == 0 {
		return errDiv0()
	}
	return models.Number(total.DivRound(decimal.NewFromInt(int64(count)), 18))
}

func fnAverageIf(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 3) {
		return errNA()
	}
	test := args[0].Flatten()
	crit := compileCriterion(args[1].scalar())
	avg := test
	if len(args) == 3 {
		avg = args[2].Flatten()
		if len(avg) != len(test) {
			return errValue()
		}
	}
	total := decimal.Zero
	count := 0
	for i, v := range test {
		if !crit.matches(v) {
			continue
		}
		if n, ok := avg[i].StrictNumber(); ok {
			total = total.Add(n)
			count++
		}
	}
	if count == 0 {
		return errDiv0()
	}
	return models.Number(total.DivRound(decimal.NewFromInt(int64(count)), 18))
}

func fnAverageIfs(ctx *Context, args []Operand) models.Value {
	if len(args) < 3 {
		return errNA()
	}
	avg := args[0].Flatten()
	ranges, crits, size, ok := criteriaPairs(args[1:])
	if !ok || size != len(avg) {
		return errValue()
	}
	total := decimal.Zero
	count := 0
	for i := range avg {
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
		if n, ok := avg[i].StrictNumber(); ok {
			total = total.Add(n)
			count++
		}
	}
	if count == 0 {
		return errDiv0()
	}
	return models.Number(total.DivRound(decimal.NewFromInt(int64(count)), 18))
}

// fnCount counts only genuinely numeric entries.
func fnCount(ctx *Context, args []Operand) models.Value {
	count := 0
	for _, a := range args {
		for _, v := range a.Flatten() {
			if _, ok := v.StrictNumber(); ok {
				count++
			}
		}
	}
	return models.NumberFromInt(int64(count))
}

// fnCountA counts anything non-blank, errors included.
func fnCountA(ctx *Context, args []Operand) models.Value {
	count := 0
	for _, a := range args {
		for _, v := range a.Flatten() {
			if !v.IsBlank() {
				count++
			}
		}
	}
	return models.NumberFromInt(int64(count))
}

func fnCountBlank(ctx *Context, args []Operand) models.Value {
	count := 0
	for _, a := range args {
		for _, v := range a.Flatten() {
			if v.IsBlank() || (v.Kind == models.KindText && v.Text == "") {
				count++
			}
		}
	}
	return models.NumberFromInt(int64(count))
}

func fnCountIf(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	crit := compileCriterion(args[1].scalar())
	count := 0
	for _, v := range args[0].Flatten() {
		if crit.matches(v) {
			count++
		}
	}
	return models.NumberFromInt(int64(count))
}

func fnCountIfs(ctx *Context, args []Operand) models.Value {
	ranges, crits, size, ok := criteriaPairs(args)
	if !ok {
		return errValue()
	}
	count := 0
	for i := 0; i < size; i++ {
		matched := true
		for j, rng := range ranges {
			if !crits[j].matches(rng.Flatten()[i]) {
				matched = false
				break
			}
		}
		if matched {
			count++
		}
	}
	return models.NumberFromInt(int64(count))
}

func fnMedian(ctx *Context, args []Operand) models.Value {
	nums, errv := collectFloats(args)
	if errv.IsError() {
		return errv
	}
	if len(nums) == 0 {
		return errNum()
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return models.NumberFromFloat(nums[mid])
	}
	return models.NumberFromFloat((nums[mid-1] + nums[mid]) / 2)
}

// fnMode returns the most frequent numeric value, preferring the first
// to reach its final count; no repeated value is not-available.
func fnMode(ctx *Context, args []Operand) models.Value {
	nums, errv := collectNumbers(args)
	if errv.IsError() {
		return errv
	}
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, n := range nums {
		key := n.String()
		counts[key]++
		if _, ok := firstSeen[key]; !ok {
			firstSeen[key] = i
		}
	}
	bestCount := 1
	bestIdx := -1
	for key, c := range counts {
		if c <= bestCount {
			continue
		}
		bestCount = c
		bestIdx = firstSeen[key]
	}
	// Ties resolve to the value encountered first.
	for key, c := range counts {
		if c == bestCount && bestIdx >= 0 && firstSeen[key] < bestIdx {
			bestIdx = firstSeen[key]
		}
	}
	if bestIdx == -1 {
		return errNA()
	}
	return models.Number(nums[bestIdx])
}

// varianceFn builds the four variance functions. Sample statistics
// need at least two points, population at least one, else
// divide-by-zero.
func varianceFn(sample, sqrtResult bool) Func {
	return func(ctx *Context, args []Operand) models.Value {
		nums, errv := collectFloats(args)
		if errv.IsError() {
			return errv
		}
		minPoints := 1
		if sample {
			minPoints = 2
		}
		if len(nums) < minPoints {
			return errDiv0()
		}
		mean := 0.0
		for _, x := range nums {
			mean += x
		}
		mean /= float64(len(nums))
		ss := 0.0
		for _, x := range nums {
			d := x - mean
			ss += d * d
		}
		div := float64(len(nums))
		if sample {
			div = float64(len(nums) - 1)
		}
		v := ss / div
		if sqrtResult {
			v = math.Sqrt(v)
		}
		return models.NumberFromFloat(v)
	}
}

func fnLarge(ctx *Context, args []Operand) models.Value {
	return kthValue(args, false)
}

func fnSmall(ctx *Context, args []Operand) models.Value {
	return kthValue(args, true)
}

func kthValue(args []Operand, ascending bool) models.Value {
	if !argCount(args, 2, 2) {
		return errNA()
	}
	nums, errv := collectFloats(args[:1])
	if errv.IsError() {
		return errv
	}
	k, kerr := scalarInt(args[1])
	if kerr.IsError() {
		return kerr
	}
	if k < 1 || k > len(nums) {
		return errNum()
	}
	sort.Float64s(nums)
	if ascending {
		return models.NumberFromFloat(nums[k-1])
	}
	return models.NumberFromFloat(nums[len(nums)-k])
}

// fnRank ranks a number within a set, descending by default; ties
// share the best rank.
func fnRank(ctx *Context, args []Operand) models.Value {
	if !argCount(args, 2, 3) {
		return errNA()
	}
	target, errv := scalarFloat(args[0])
	if errv.IsError() {
		return errv
	}
	nums, nerr := collectFloats(args[1:2])
	if nerr.IsError() {
		return nerr
	}
	ascending := false
	if len(args) == 3 {
		order, oerr := scalarInt(args[2])
		if oerr.IsError() {
			return oerr
		}
		ascending = order != 0
	}
	found := false
	rank := 1
	for _, x := range nums {
		if x == target {
			found = true
			continue
		}
		if ascending && x < target {
			rank++
		}
		if !ascending && x > target {
			rank++
		}
	}
	if !found {
		return errNA()
	}
	return models.NumberFromInt(int64(rank))
}
