package extract

import (
	"testing"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func TestCategorize(t *testing.T) {
	cases := []struct {
		formula string
		want    models.FormulaCategory
	}{
		{"=PMT(B1/12,B2,-B3)", models.CategoryFinancial},
		{"=VLOOKUP(A2,Costs!A:B,2,FALSE)", models.CategoryLookup},
		{"=AVERAGE(C1:C10)", models.CategoryStatistical},
		{"=SUM(A1:A5)", models.CategoryMath},
		{"=IF(A1>0,1,0)", models.CategoryLogical},
		{"=LEFT(B2,3)", models.CategoryText},
		{"=TODAY()", models.CategoryDateTime},
		{"=A1+A2*2", models.CategoryArithmetic},
		{"=FOO(A1,2)", models.CategoryOther},
	}
	for _, c := range cases {
		if got := Categorize(c.formula); got != c.want {
			t.Errorf("Categorize(%s) = %s, want %s", c.formula, got, c.want)
		}
	}
}

func TestCategorizePrecedence(t *testing.T) {
	// A formula mixing categories takes the highest-precedence match:
	// financial beats lookup beats math.
	if got := Categorize("=NPV(0.1,A1:A5)+SUM(B1:B5)"); got != models.CategoryFinancial {
		t.Errorf("mixed formula = %s, want financial", got)
	}
	if got := Categorize("=INDEX(A:A,MATCH(1,B:B,0))+SUM(C:C)"); got != models.CategoryLookup {
		t.Errorf("lookup+math = %s, want lookup", got)
	}
}
