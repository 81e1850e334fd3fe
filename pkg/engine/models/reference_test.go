package models

import "testing"

func TestColumnLetters(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, c := range cases {
		if got := ColumnLetters(c.n); got != c.want {
			t.Errorf("ColumnLetters(%d) = %s, want %s", c.n, got, c.want)
		}
		back, err := ColumnNumber(c.want)
		if err != nil {
			t.Fatalf("ColumnNumber(%s): %v", c.want, err)
		}
		if back != c.n {
			t.Errorf("ColumnNumber(%s) = %d, want %d", c.want, back, c.n)
		}
	}

	if _, err := ColumnNumber("A1"); err == nil {
		t.Error("ColumnNumber accepted digits")
	}
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		in        string
		sheet     string
		col, row  int
		absC, abR bool
	}{
		{"A1", "Sheet1", 1, 1, false, false},
		{"$B$2", "Sheet1", 2, 2, true, true},
		{"Sheet2!C3", "Sheet2", 3, 3, false, false},
		{"'Cost Basis'!D4", "Cost Basis", 4, 4, false, false},
		{"AA100", "Sheet1", 27, 100, false, false},
	}
	for _, c := range cases {
		ref, err := ParseRef(c.in, "Sheet1")
		if err != nil {
			t.Fatalf("ParseRef(%q): %v", c.in, err)
		}
		if ref.Sheet != c.sheet || ref.Col != c.col || ref.Row != c.row {
			t.Errorf("ParseRef(%q) = %+v", c.in, ref)
		}
		if ref.AbsCol != c.absC || ref.AbsRow != c.abR {
			t.Errorf("ParseRef(%q) abs flags = %v,%v", c.in, ref.AbsCol, ref.AbsRow)
		}
	}

	for _, bad := range []string{"", "1A", "A0", "A"} {
		if _, err := ParseRef(bad, "Sheet1"); err == nil {
			t.Errorf("ParseRef(%q) accepted invalid input", bad)
		}
	}
}

func TestCellIDRoundTrip(t *testing.T) {
	ref, err := ParseRef("'My Sheet'!B7", "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseCellID(ref.ID())
	if err != nil {
		t.Fatal(err)
	}
	if back.Sheet != "My Sheet" || back.Col != 2 || back.Row != 7 {
		t.Errorf("round trip = %+v", back)
	}
}

func TestRangeCellsRowMajor(t *testing.T) {
	rr, err := ParseRangeRef("A1:B2", "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if rr.Size() != 4 {
		t.Fatalf("Size = %d, want 4", rr.Size())
	}
	want := []string{"Sheet1!A1", "Sheet1!B1", "Sheet1!A2", "Sheet1!B2"}
	cells := rr.Cells()
	for i, ref := range cells {
		if ref.ID() != want[i] {
			t.Errorf("Cells[%d] = %s, want %s", i, ref.ID(), want[i])
		}
	}
}

func TestRangeNormalization(t *testing.T) {
	// Reversed corners normalize to top-left / bottom-right.
	rr, err := ParseRangeRef("B2:A1", "Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if rr.StartCol != 1 || rr.StartRow != 1 || rr.EndCol != 2 || rr.EndRow != 2 {
		t.Errorf("normalized range = %+v", rr)
	}
	if !rr.Contains(Ref{Sheet: "Sheet1", Col: 2, Row: 1}) {
		t.Error("Contains(B1) = false")
	}
	if rr.Contains(Ref{Sheet: "Other", Col: 1, Row: 1}) {
		t.Error("Contains matched a different sheet")
	}
}
