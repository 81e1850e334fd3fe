package formula

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
	"github.com/paintbox/sheetcalc/pkg/engine/sheet"
)

// fixedClock pins NOW/TODAY for the date tests.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// testStore builds a store with one sheet of sample data:
//
//	A1=20  B1=5    C1="apple"
//	A2=30  B2=15   C2="banana"
//	A3=    B3=25   C3="apricot"
func testStore(t *testing.T) *sheet.Store {
	t.Helper()
	st := sheet.NewStore()
	if _, err := st.CreateSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	set := func(addr string, v models.Value) {
		ref, err := models.ParseRef(addr, "Sheet1")
		if err != nil {
			t.Fatal(err)
		}
		if err := st.SetCell(ref, v); err != nil {
			t.Fatal(err)
		}
	}
	set("A1", models.NumberFromInt(20))
	set("A2", models.NumberFromInt(30))
	set("B1", models.NumberFromInt(5))
	set("B2", models.NumberFromInt(15))
	set("B3", models.NumberFromInt(25))
	set("C1", models.Text("apple"))
	set("C2", models.Text("banana"))
	set("C3", models.Text("apricot"))
	return st
}

func evalText(t *testing.T, st *sheet.Store, text string) models.Value {
	t.Helper()
	sc := SheetContext{
		Sheet:   "Sheet1",
		HasName: st.HasName,
		Bounds: func(name string) (int, int) {
			s, ok := st.Sheet(name)
			if !ok {
				return 0, 0
			}
			return s.MaxCol(), s.MaxRow()
		},
	}
	p := Parse(text, sc)
	switch p.Kind {
	case ParsedLiteral:
		return p.Literal
	case ParsedExpression:
		ctx := &Context{
			Store: st,
			Sheet: "Sheet1",
			Funcs: NewRegistry(fixedClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}),
		}
		return p.Expr.Eval(ctx).Result()
	default:
		t.Fatalf("Parse(%q) kind = %v", text, p.Kind)
		return models.Value{}
	}
}

func assertNumber(t *testing.T, st *sheet.Store, text, want string) {
	t.Helper()
	v := evalText(t, st, text)
	n, ok := v.AsNumber()
	if !ok {
		t.Fatalf("%s = %s, want number %s", text, v.AsString(), want)
	}
	wantD, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatal(err)
	}
	if n.Sub(wantD).Abs().GreaterThan(decimal.New(1, -6)) {
		t.Errorf("%s = %s, want %s", text, n.String(), want)
	}
}

func assertError(t *testing.T, st *sheet.Store, text string, want models.ErrorCode) {
	t.Helper()
	v := evalText(t, st, text)
	if v.Kind != models.KindError || v.Err != want {
		t.Errorf("%s = %s, want %s", text, v.AsString(), want)
	}
}

func assertString(t *testing.T, st *sheet.Store, text, want string) {
	t.Helper()
	if got := evalText(t, st, text).AsString(); got != want {
		t.Errorf("%s = %q, want %q", text, got, want)
	}
}

func TestSumAndAverage(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=A1+A2", "50")
	assertNumber(t, st, "=SUM(A1:A3)", "50")
	assertNumber(t, st, "=SUM(D1:D5)", "0")
	assertNumber(t, st, "=AVERAGE(A1:A3)", "25")
	assertError(t, st, "=AVERAGE(D1:D5)", models.ErrorDiv0)
	assertNumber(t, st, "=SUM(B1:B3,100)", "145")
}

func TestCountFunctions(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=COUNT(A1:A3)", "2")
	assertNumber(t, st, "=COUNT(C1:C3)", "0")
	assertNumber(t, st, "=COUNTA(A1:C3)", "8")
	assertNumber(t, st, "=COUNTBLANK(A1:A3)", "1")
}

func TestCriteriaFunctions(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=COUNTIF(B1:B3,\">10\")", "2")
	assertNumber(t, st, "=SUMIF(B1:B3,\">10\")", "40")
	assertNumber(t, st, "=SUMIF(B1:B3,\">10\",A1:A3)", "30")
	assertNumber(t, st, "=COUNTIF(C1:C3,\"ap*\")", "2")
	assertNumber(t, st, "=COUNTIF(C1:C3,\"?anana\")", "1")
	assertNumber(t, st, "=COUNTIF(C1:C3,\"<>apple\")", "2")
	assertNumber(t, st, "=AVERAGEIF(B1:B3,\">10\")", "20")
	assertNumber(t, st, "=SUMIFS(A1:A3,B1:B3,\">10\",B1:B3,\"<20\")", "30")
}

func TestLogicalFunctions(t *testing.T) {
	st := testStore(t)
	assertString(t, st, "=IF(A1>10,\"big\",\"small\")", "big")
	assertString(t, st, "=IF(B1>10,\"big\",\"small\")", "small")
	assertString(t, st, "=AND(A1>10,A2>10)", "TRUE")
	assertString(t, st, "=OR(B1>10,A1>100)", "FALSE")
	assertString(t, st, "=NOT(TRUE)", "FALSE")
	assertNumber(t, st, "=IFERROR(1/0,-1)", "-1")
	assertString(t, st, "=IFS(A1>100,\"huge\",A1>10,\"big\")", "big")
	assertString(t, st, "=SWITCH(A1,10,\"ten\",20,\"twenty\",\"other\")", "twenty")
}

func TestLookupFunctions(t *testing.T) {
	st := testStore(t)
	// Table B1:C3, first column 5/15/25.
	assertString(t, st, "=VLOOKUP(15,B1:C3,2,FALSE)", "banana")
	assertError(t, st, "=VLOOKUP(16,B1:C3,2,FALSE)", models.ErrorNA)
	// Approximate: largest entry not exceeding 20 is 15.
	assertString(t, st, "=VLOOKUP(20,B1:C3,2)", "banana")
	assertNumber(t, st, "=MATCH(25,B1:B3,0)", "3")
	assertString(t, st, "=INDEX(C1:C3,3)", "apricot")
	assertString(t, st, "=INDEX(B1:C3,2,2)", "banana")
	assertString(t, st, "=XLOOKUP(15,B1:B3,C1:C3)", "banana")
	assertString(t, st, "=XLOOKUP(16,B1:B3,C1:C3,\"none\")", "none")
	assertString(t, st, "=CHOOSE(2,\"a\",\"b\",\"c\")", "b")
}

func TestTextFunctions(t *testing.T) {
	st := testStore(t)
	assertString(t, st, "=LEFT(C1,3)", "app")
	assertString(t, st, "=RIGHT(C2,4)", "nana")
	assertString(t, st, "=MID(C2,2,3)", "ana")
	assertNumber(t, st, "=LEN(C1)", "5")
	assertString(t, st, "=UPPER(C1)", "APPLE")
	assertString(t, st, "=CONCATENATE(C1,\"-\",C2)", "apple-banana")
	assertString(t, st, "=SUBSTITUTE(C2,\"an\",\"AN\",2)", "banANa")
	assertNumber(t, st, "=FIND(\"ppl\",C1)", "2")
	assertError(t, st, "=FIND(\"PPL\",C1)", models.ErrorValue)
	assertNumber(t, st, "=SEARCH(\"PPL\",C1)", "2")
	assertString(t, st, "=TRIM(\"  a   b  \")", "a b")
	assertString(t, st, "=TEXTJOIN(\",\",TRUE,C1:C3)", "apple,banana,apricot")
	assertNumber(t, st, "=VALUE(\"1,250.50\")", "1250.5")
	assertString(t, st, "=TEXT(1234.5,\"#,##0.00\")", "1,234.50")
}

func TestMathFunctions(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=ROUND(2.345,2)", "2.35")
	assertNumber(t, st, "=ROUNDUP(2.341,2)", "2.35")
	assertNumber(t, st, "=ROUNDDOWN(2.349,2)", "2.34")
	assertNumber(t, st, "=INT(-1.5)", "-2")
	assertNumber(t, st, "=TRUNC(-1.5)", "-1")
	assertNumber(t, st, "=MOD(-3,2)", "1")
	assertNumber(t, st, "=ABS(-7)", "7")
	assertNumber(t, st, "=SQRT(144)", "12")
	assertError(t, st, "=SQRT(-1)", models.ErrorNum)
	assertNumber(t, st, "=POWER(2,10)", "1024")
	assertNumber(t, st, "=CEILING(2.1,0.5)", "2.5")
	assertNumber(t, st, "=FLOOR(2.9,0.5)", "2.5")
	assertNumber(t, st, "=MIN(B1:B3)", "5")
	assertNumber(t, st, "=MAX(B1:B3,A1:A2)", "30")
	assertNumber(t, st, "=SUMPRODUCT(A1:A2,B1:B2)", "550")
	assertError(t, st, "=1/0", models.ErrorDiv0)
	assertError(t, st, "=MOD(5,0)", models.ErrorDiv0)
}

func TestStatisticalFunctions(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=MEDIAN(B1:B3)", "15")
	assertNumber(t, st, "=STDEV(B1:B3)", "10")
	assertNumber(t, st, "=VAR(B1:B3)", "100")
	assertError(t, st, "=STDEV(A1)", models.ErrorDiv0)
	assertError(t, st, "=VAR(A1)", models.ErrorDiv0)
	assertNumber(t, st, "=STDEVP(B1:B3)", "8.164965809")
	assertNumber(t, st, "=LARGE(B1:B3,1)", "25")
	assertNumber(t, st, "=SMALL(B1:B3,2)", "15")
	assertNumber(t, st, "=RANK(15,B1:B3)", "2")
}

func TestFinancialFunctions(t *testing.T) {
	st := testStore(t)
	// Zero-rate special case: straight-line payment.
	assertNumber(t, st, "=PMT(0,12,-1200)", "100")
	assertNumber(t, st, "=FV(0,10,-100)", "1000")
	assertNumber(t, st, "=NPER(0,-100,1200)", "12")
	// 60 payments at 0.5% monthly on 10k principal.
	assertNumber(t, st, "=PMT(0.005,60,10000)", "-193.328015")
	assertNumber(t, st, "=NPV(0.1,100,100)", "173.553719")
	assertError(t, st, "=IRR(B1:B3)", models.ErrorNum)
	// Split payment halves reassemble the full payment.
	v := evalText(t, st, "=IPMT(0.005,1,60,10000)")
	if n, ok := v.AsNumber(); !ok || n.Sub(decimal.NewFromInt(-50)).Abs().GreaterThan(decimal.New(1, -6)) {
		t.Errorf("IPMT first period = %s, want -50", v.AsString())
	}
}

func TestDateFunctions(t *testing.T) {
	st := testStore(t)
	assertNumber(t, st, "=YEAR(DATE(2024,3,15))", "2024")
	assertNumber(t, st, "=MONTH(DATE(2024,3,15))", "3")
	assertNumber(t, st, "=DAY(EOMONTH(DATE(2024,2,1),0))", "29")
	assertNumber(t, st, "=DAY(EDATE(DATE(2024,1,31),1))", "29")
	assertNumber(t, st, "=DAYS(DATE(2024,3,15),DATE(2024,3,1))", "14")
	assertNumber(t, st, "=WEEKDAY(DATE(2024,3,15))", "6")
	assertNumber(t, st, "=YEAR(TODAY())", "2026")
}

func TestInfoFunctions(t *testing.T) {
	st := testStore(t)
	assertString(t, st, "=ISNUMBER(A1)", "TRUE")
	assertString(t, st, "=ISTEXT(C1)", "TRUE")
	assertString(t, st, "=ISERROR(1/0)", "TRUE")
	assertString(t, st, "=ISNA(NA())", "TRUE")
	assertString(t, st, "=ISERR(NA())", "FALSE")
}

func TestUnknownFunctionIsNameError(t *testing.T) {
	st := testStore(t)
	assertError(t, st, "=NOSUCHFUNC(1)", models.ErrorName)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(nil)
	names := r.Names()
	if len(names) < 90 {
		t.Errorf("registry has %d functions, expected the full library", len(names))
	}
	for _, name := range []string{"SUM", "VLOOKUP", "PMT", "TRANSPOSE"} {
		if !r.Has(name) {
			t.Errorf("registry missing %s", name)
		}
	}
	for i := 1; i < len(names); i++ {
		if strings.Compare(names[i-1], names[i]) >= 0 {
			t.Fatalf("names not sorted at %d: %s >= %s", i, names[i-1], names[i])
		}
	}
}
