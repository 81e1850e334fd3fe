package extract

import (
	"regexp"
	"strings"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// categoryKeywords orders the classifier's checks; the first category
// whose keyword appears in the formula wins.
var categoryKeywords = []struct {
	category models.FormulaCategory
	funcs    []string
}{
	{models.CategoryFinancial, []string{"PMT", "PV", "FV", "RATE", "NPV", "IRR"}},
	{models.CategoryLookup, []string{"VLOOKUP", "HLOOKUP", "INDEX", "MATCH", "XLOOKUP"}},
	{models.CategoryStatistical, []string{"AVERAGE", "STDEV", "VAR", "MEDIAN", "MODE"}},
	{models.CategoryMath, []string{"SUM", "PRODUCT", "SQRT", "POWER", "LOG"}},
	{models.CategoryLogical, []string{"IF", "AND", "OR", "NOT", "XOR"}},
	{models.CategoryText, []string{"CONCATENATE", "LEFT", "RIGHT", "MID", "LEN"}},
	{models.CategoryDateTime, []string{"DATE", "TIME", "NOW", "TODAY", "YEAR", "MONTH"}},
}

var arithmeticRe = regexp.MustCompile(`^[=+\-*/()\d\s$A-Z]+$`)

// Categorize classifies a formula by its primary function, checking
// categories in precedence order.
func Categorize(formulaText string) models.FormulaCategory {
	upper := strings.ToUpper(formulaText)
	for _, ck := range categoryKeywords {
		for _, fn := range ck.funcs {
			if strings.Contains(upper, fn) {
				return ck.category
			}
		}
	}
	if arithmeticRe.MatchString(upper) {
		return models.CategoryArithmetic
	}
	return models.CategoryOther
}
