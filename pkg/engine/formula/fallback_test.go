package formula

import (
	"testing"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
	"github.com/paintbox/sheetcalc/pkg/engine/sheet"
)

func fallbackContext(t *testing.T) *Context {
	t.Helper()
	st := sheet.NewStore()
	if _, err := st.CreateSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	set := func(id string, v models.Value) {
		ref, err := models.ParseCellID(id)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.SetCell(ref, v); err != nil {
			t.Fatal(err)
		}
	}
	set("Sheet1!A1", models.NumberFromInt(6))
	set("Sheet1!B2", models.NumberFromInt(4))
	set("Sheet1!C1", models.Text("label"))
	return &Context{Store: st, Sheet: "Sheet1"}
}

func TestEvalRawSubstitutesReferences(t *testing.T) {
	ctx := fallbackContext(t)
	raw := &RawFormula{Text: "=A1 + B2 * 2"}

	v, warnings := EvalRaw(ctx, raw)
	f, ok := v.AsFloat()
	if !ok || f != 14 {
		t.Fatalf("EvalRaw = %v, want 14", v)
	}
	// Every substitution is reported.
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want 2 substitution notes", warnings)
	}
}

func TestEvalRawNonNumericRefSubstitutesZero(t *testing.T) {
	ctx := fallbackContext(t)
	raw := &RawFormula{Text: "=C1 + 5"}

	v, warnings := EvalRaw(ctx, raw)
	if f, ok := v.AsFloat(); !ok || f != 5 {
		t.Fatalf("EvalRaw = %v, want 5", v)
	}
	found := false
	for _, w := range warnings {
		if w == "reference Sheet1!C1 substituted as 0 in fallback" {
			found = true
		}
	}
	if !found {
		t.Errorf("no zero-substitution warning in %v", warnings)
	}
}

func TestSubstituteRefsSkipsFunctionNames(t *testing.T) {
	ctx := fallbackContext(t)
	// LOG10 resembles a cell address but is followed by a call.
	body, warnings := substituteRefs(ctx, "LOG10(100) + A1")
	if body != "LOG10(100) + 6" {
		t.Errorf("body = %q", body)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want only the A1 substitution", warnings)
	}
}

func TestEvalRawCompileFailure(t *testing.T) {
	ctx := fallbackContext(t)
	raw := &RawFormula{Text: "=1 +* 2"}

	v, warnings := EvalRaw(ctx, raw)
	if !v.IsError() || v.Err != models.ErrorValue {
		t.Fatalf("EvalRaw = %v, want #VALUE!", v)
	}
	if len(warnings) == 0 {
		t.Error("compile failure produced no warning")
	}
}
