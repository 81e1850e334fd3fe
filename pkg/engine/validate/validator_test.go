package validate

import (
	"testing"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func TestCheckExpectedNumericTolerance(t *testing.T) {
	v := New()

	if issues := v.CheckExpected("Sheet1!A1",
		models.NumberFromFloat(1.0000000000001),
		models.NumberFromInt(1)); len(issues) != 0 {
		t.Errorf("within tolerance flagged: %v", issues)
	}

	issues := v.CheckExpected("Sheet1!A1",
		models.NumberFromFloat(1.01), models.NumberFromInt(1))
	if len(issues) != 1 || issues[0].Rule != "expected-match" {
		t.Fatalf("issues = %v, want one expected-match", issues)
	}
	if issues[0].Severity != SeverityError {
		t.Errorf("severity = %s, want error", issues[0].Severity)
	}
}

func TestRelativeTolerance(t *testing.T) {
	v := New()
	v.SetTolerance(1e-10, 1e-3)

	// Large magnitudes pass on the relative check even when the absolute
	// difference is big.
	got := models.NumberFromFloat(1000000.5)
	want := models.NumberFromInt(1000000)
	if issues := v.CheckExpected("Sheet1!B1", got, want); len(issues) != 0 {
		t.Errorf("relative tolerance not applied: %v", issues)
	}
}

func TestErrorCodesCompareExactly(t *testing.T) {
	v := New()

	if issues := v.CheckExpected("Sheet1!C1",
		models.Error(models.ErrorNA), models.Error(models.ErrorNA)); len(issues) != 0 {
		t.Errorf("matching errors flagged: %v", issues)
	}

	issues := v.CheckExpected("Sheet1!C1",
		models.Error(models.ErrorDiv0), models.Error(models.ErrorNA))
	if len(issues) != 1 {
		t.Fatalf("mismatched errors: %v", issues)
	}

	// An error where a number was expected is always a mismatch, never a
	// tolerance question.
	if issues := v.CheckExpected("Sheet1!C2",
		models.Error(models.ErrorValue), models.Zero()); len(issues) != 1 {
		t.Errorf("error-vs-number: %v", issues)
	}
}

func TestTextComparison(t *testing.T) {
	v := New()
	if issues := v.CheckExpected("Sheet1!D1",
		models.Text("hello"), models.Text("hello")); len(issues) != 0 {
		t.Errorf("equal text flagged: %v", issues)
	}
	if issues := v.CheckExpected("Sheet1!D1",
		models.Text("hello"), models.Text("world")); len(issues) != 1 {
		t.Errorf("unequal text: %v", issues)
	}
}

func TestBuiltinLookupRefRule(t *testing.T) {
	v := New()
	issues := v.Check("Sheet1!E1", models.Error(models.ErrorRef))
	if len(issues) != 1 || issues[0].Rule != "lookup-ref-error" {
		t.Fatalf("issues = %v", issues)
	}
	if issues[0].Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", issues[0].Severity)
	}
}

func TestPluggableRule(t *testing.T) {
	v := New()
	v.AddRule("no-negatives", func(cellID string, got models.Value) *Issue {
		if n, ok := got.AsFloat(); ok && n < 0 {
			return &Issue{Severity: SeverityWarning, Message: "negative result"}
		}
		return nil
	})
	v.AddRule("blank-sum", RuleNumericZeroBlankSum)

	issues := v.Check("Sheet1!F1", models.NumberFromInt(-5))
	if len(issues) != 1 || issues[0].Rule != "no-negatives" {
		t.Fatalf("custom rule: %v", issues)
	}
	if issues := v.Check("Sheet1!F2", models.Empty()); len(issues) != 1 {
		t.Errorf("blank-sum rule: %v", issues)
	}
	if issues := v.Check("Sheet1!F3", models.NumberFromInt(3)); len(issues) != 0 {
		t.Errorf("clean value flagged: %v", issues)
	}
}
