package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func chainWorkbook() *models.WorkbookData {
	return &models.WorkbookData{
		BookName: "chain",
		Sheets: map[string]models.SheetPayload{
			"Sheet1": {
				Cells: []models.StaticCell{
					{Cell: "A1", Value: models.NumberFromInt(20)},
					{Cell: "A2", Value: models.NumberFromInt(30)},
				},
				Formulas: []models.FormulaCell{
					{Cell: "A3", Formula: "=A1+A2"},
					{Cell: "A4", Formula: "=A3*2"},
				},
			},
		},
	}
}

func loadChain(t *testing.T) *Engine {
	t.Helper()
	e := New(DefaultOptions())
	if err := e.LoadWorkbook(chainWorkbook()); err != nil {
		t.Fatal(err)
	}
	return e
}

func cellFloat(t *testing.T, e *Engine, id string) float64 {
	t.Helper()
	ref, err := models.ParseCellID(id)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := e.Store().GetCell(ref).AsFloat()
	if !ok {
		t.Fatalf("cell %s is not numeric: %v", id, e.Store().GetCell(ref))
	}
	return f
}

func TestLoadAndRecalculate(t *testing.T) {
	e := loadChain(t)
	report, err := e.Recalculate()
	if err != nil {
		t.Fatal(err)
	}
	if report.Evaluated != 2 {
		t.Errorf("Evaluated = %d, want 2", report.Evaluated)
	}
	if len(report.ErrorCells) != 0 {
		t.Errorf("ErrorCells = %v", report.ErrorCells)
	}
	if got := cellFloat(t, e, "Sheet1!A3"); got != 50 {
		t.Errorf("A3 = %v, want 50", got)
	}
	if got := cellFloat(t, e, "Sheet1!A4"); got != 100 {
		t.Errorf("A4 = %v, want 100", got)
	}
}

func TestRecalculateBeforeLoad(t *testing.T) {
	e := New(DefaultOptions())
	if _, err := e.Recalculate(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Recalculate = %v, want ErrNotLoaded", err)
	}
	if _, err := e.ApplyEdits(nil); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("ApplyEdits = %v, want ErrNotLoaded", err)
	}
	if _, err := e.Diagnostics(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Diagnostics = %v, want ErrNotLoaded", err)
	}
}

func TestApplyEditsRecomputesOnlyAffected(t *testing.T) {
	e := loadChain(t)
	if _, err := e.Recalculate(); err != nil {
		t.Fatal(err)
	}

	report, err := e.ApplyEdits(map[string]models.Value{
		"Sheet1!A1": models.NumberFromInt(40),
	})
	if err != nil {
		t.Fatal(err)
	}
	// Both downstream formulas recompute, nothing else.
	if report.Evaluated != 2 {
		t.Errorf("Evaluated = %d, want 2", report.Evaluated)
	}
	if got := cellFloat(t, e, "Sheet1!A3"); got != 70 {
		t.Errorf("A3 = %v, want 70", got)
	}
	if got := cellFloat(t, e, "Sheet1!A4"); got != 140 {
		t.Errorf("A4 = %v, want 140", got)
	}

	// An edit to a leaf with no dependents recomputes nothing.
	report, err = e.ApplyEdits(map[string]models.Value{
		"Sheet1!Z1": models.NumberFromInt(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Evaluated != 0 {
		t.Errorf("leaf edit Evaluated = %d, want 0", report.Evaluated)
	}
}

func TestCircularReferenceConverges(t *testing.T) {
	e := New(DefaultOptions())
	data := &models.WorkbookData{
		BookName: "circular",
		Sheets: map[string]models.SheetPayload{
			"Sheet1": {
				Cells: []models.StaticCell{
					{Cell: "C1", Value: models.NumberFromInt(10)},
				},
				Formulas: []models.FormulaCell{
					{Cell: "B1", Formula: "=B2*0.5"},
					{Cell: "B2", Formula: "=B1*0.5+C1"},
				},
			},
		},
	}
	if err := e.LoadWorkbook(data); err != nil {
		t.Fatal(err)
	}
	report, err := e.Recalculate()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.NonConverged) != 0 {
		t.Fatalf("NonConverged = %v", report.NonConverged)
	}
	// Fixed point: B2 = B2/4 + 10.
	if got := cellFloat(t, e, "Sheet1!B2"); math.Abs(got-40.0/3) > 1e-6 {
		t.Errorf("B2 = %v, want %v", got, 40.0/3)
	}
	if got := cellFloat(t, e, "Sheet1!B1"); math.Abs(got-20.0/3) > 1e-6 {
		t.Errorf("B1 = %v, want %v", got, 20.0/3)
	}
}

func TestUngroundedCycleFlagsNonConverged(t *testing.T) {
	e := New(DefaultOptions())
	data := &models.WorkbookData{
		BookName: "identity-cycle",
		Sheets: map[string]models.SheetPayload{
			"S": {
				Formulas: []models.FormulaCell{
					{Cell: "A1", Formula: "=B1"},
					{Cell: "B1", Formula: "=A1"},
				},
			},
		},
	}
	if err := e.LoadWorkbook(data); err != nil {
		t.Fatal(err)
	}
	if got := len(e.Graph().Cycles()); got != 1 {
		t.Fatalf("Cycles = %d, want 1", got)
	}

	report, err := e.Recalculate()
	if err != nil {
		t.Fatal(err)
	}
	// Nothing outside the loop anchors a fixed point: iteration lands on
	// a stable value immediately, but both cells must still be flagged.
	if len(report.NonConverged) != 2 {
		t.Fatalf("NonConverged = %v, want both members", report.NonConverged)
	}
	for _, id := range []string{"S!A1", "S!B1"} {
		n, ok := e.Graph().Node(id)
		if !ok || !n.NonConverged {
			t.Errorf("node %s not flagged non-converged", id)
		}
	}
	if len(report.Warnings) == 0 {
		t.Error("no warning for the ungrounded circular group")
	}
}

func TestCircularReferenceNonConvergence(t *testing.T) {
	e := New(Options{MaxIterations: 5})
	data := &models.WorkbookData{
		BookName: "diverging",
		Sheets: map[string]models.SheetPayload{
			"Sheet1": {
				Formulas: []models.FormulaCell{
					{Cell: "C1", Formula: "=C2+1"},
					{Cell: "C2", Formula: "=C1+1"},
				},
			},
		},
	}
	if err := e.LoadWorkbook(data); err != nil {
		t.Fatal(err)
	}
	report, err := e.Recalculate()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.NonConverged) != 2 {
		t.Errorf("NonConverged = %v, want both cycle members", report.NonConverged)
	}
	if len(report.Warnings) == 0 {
		t.Error("no warnings for non-convergence")
	}
}

func TestMalformedFormulaWarnsAndLoads(t *testing.T) {
	e := New(DefaultOptions())
	data := chainWorkbook()
	payload := data.Sheets["Sheet1"]
	payload.Formulas = append(payload.Formulas, models.FormulaCell{Cell: "A5", Formula: "=SUM((A1"})
	data.Sheets["Sheet1"] = payload

	if err := e.LoadWorkbook(data); err != nil {
		t.Fatalf("malformed formula aborted load: %v", err)
	}
	report, err := e.Recalculate()
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Warnings) == 0 {
		t.Error("no warning recorded for malformed formula")
	}
	// The healthy formulas still compute.
	if got := cellFloat(t, e, "Sheet1!A3"); got != 50 {
		t.Errorf("A3 = %v, want 50", got)
	}
}

func TestNamedRangeDependency(t *testing.T) {
	e := New(DefaultOptions())
	data := &models.WorkbookData{
		BookName: "named",
		Sheets: map[string]models.SheetPayload{
			"Sheet1": {
				Cells: []models.StaticCell{
					{Cell: "A1", Value: models.NumberFromFloat(0.08)},
					{Cell: "B1", Value: models.NumberFromInt(100)},
				},
				Formulas: []models.FormulaCell{
					{Cell: "B2", Formula: "=B1*TaxRate"},
				},
			},
		},
		NamedRanges: []models.NamedRangeDef{
			{Name: "TaxRate", Sheet: "Sheet1", Cell: "A1"},
		},
	}
	if err := e.LoadWorkbook(data); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Recalculate(); err != nil {
		t.Fatal(err)
	}
	if got := cellFloat(t, e, "Sheet1!B2"); math.Abs(got-8) > 1e-9 {
		t.Errorf("B2 = %v, want 8", got)
	}

	// Editing the cell behind the name propagates through the graph.
	if _, err := e.ApplyEdits(map[string]models.Value{
		"Sheet1!A1": models.NumberFromFloat(0.1),
	}); err != nil {
		t.Fatal(err)
	}
	if got := cellFloat(t, e, "Sheet1!B2"); math.Abs(got-10) > 1e-9 {
		t.Errorf("B2 after edit = %v, want 10", got)
	}
}

func estimateWorkbook() *models.WorkbookData {
	return &models.WorkbookData{
		BookName: "estimator",
		Sheets: map[string]models.SheetPayload{
			"Pricing": {
				Cells: []models.StaticCell{
					{Cell: "B1", Value: models.Zero()}, // exterior sqft
					{Cell: "B2", Value: models.Zero()}, // tax rate
				},
				// B3 subtotal at $2 per coated sqft, B4 tax, B5 total,
				// B6 labor hours, B7 paint gallons.
				Formulas: []models.FormulaCell{
					{Cell: "B3", Formula: "=B1*2"},
					{Cell: "B4", Formula: "=B3*B2"},
					{Cell: "B5", Formula: "=B3+B4"},
					{Cell: "B6", Formula: "=B1/150"},
					{Cell: "B7", Formula: "=B1/350"},
				},
			},
		},
	}
}

func TestCalculateEstimate(t *testing.T) {
	e := New(DefaultOptions())
	if err := e.LoadWorkbook(estimateWorkbook()); err != nil {
		t.Fatal(err)
	}

	cm := CellMap{
		Inputs: map[string]string{
			InputExteriorArea: "Pricing!B1",
			InputTaxRate:      "Pricing!B2",
		},
		Outputs: map[string]string{
			OutputSubtotal:     "Pricing!B3",
			OutputTax:          "Pricing!B4",
			OutputTotal:        "Pricing!B5",
			OutputLaborHours:   "Pricing!B6",
			OutputPaintGallons: "Pricing!B7",
		},
	}
	input := models.EstimateInput{
		ClientName: "J. Renner",
		TaxRate:    0.1,
		Measurements: []models.Measurement{
			// Two coats over a 10x8 wall: 160 coated sqft.
			{Type: models.MeasurementExterior, Length: 10, Height: 8, Coats: 2},
		},
	}

	result, err := e.CalculateEstimate(input, cm)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(result.Subtotal-320) > 1e-9 {
		t.Errorf("Subtotal = %v, want 320", result.Subtotal)
	}
	if math.Abs(result.Tax-32) > 1e-9 {
		t.Errorf("Tax = %v, want 32", result.Tax)
	}
	if math.Abs(result.Total-352) > 1e-9 {
		t.Errorf("Total = %v, want 352", result.Total)
	}
	if result.LaborHours <= 0 || result.PaintGallons <= 0 {
		t.Errorf("derived quantities = %v hours, %v gallons", result.LaborHours, result.PaintGallons)
	}
	if result.Input.ClientName != "J. Renner" {
		t.Error("input not echoed on result")
	}
}

func TestCalculateEstimateRecalculatesIndependentOutputs(t *testing.T) {
	e := New(DefaultOptions())
	data := &models.WorkbookData{
		BookName: "flat-rate",
		Sheets: map[string]models.SheetPayload{
			"P": {
				Cells: []models.StaticCell{
					{Cell: "A9", Value: models.NumberFromInt(7)},
					{Cell: "B1", Value: models.Zero()},
				},
				Formulas: []models.FormulaCell{
					{Cell: "B3", Formula: "=B1*2"},
					// Flat-rate hours, independent of every mapped input.
					{Cell: "B6", Formula: "=A9*3"},
				},
			},
		},
	}
	if err := e.LoadWorkbook(data); err != nil {
		t.Fatal(err)
	}

	cm := CellMap{
		Inputs: map[string]string{InputExteriorArea: "P!B1"},
		Outputs: map[string]string{
			OutputSubtotal:   "P!B3",
			OutputLaborHours: "P!B6",
		},
	}
	result, err := e.CalculateEstimate(models.EstimateInput{
		Measurements: []models.Measurement{
			{Type: models.MeasurementExterior, Length: 5, Height: 4},
		},
	}, cm)
	if err != nil {
		t.Fatal(err)
	}
	// A fresh engine has never evaluated B6; the calculation must run a
	// full pass rather than only the input-reachable cells.
	if math.Abs(result.LaborHours-21) > 1e-9 {
		t.Errorf("LaborHours = %v, want 21", result.LaborHours)
	}
	if math.Abs(result.Subtotal-40) > 1e-9 {
		t.Errorf("Subtotal = %v, want 40", result.Subtotal)
	}
}

func TestCalculateEstimateMissingOutput(t *testing.T) {
	e := New(DefaultOptions())
	if err := e.LoadWorkbook(estimateWorkbook()); err != nil {
		t.Fatal(err)
	}
	cm := CellMap{
		Inputs:  map[string]string{InputExteriorArea: "Pricing!B1"},
		Outputs: map[string]string{OutputSubtotal: "Pricing!B3"},
	}
	result, err := e.CalculateEstimate(models.EstimateInput{
		Measurements: []models.Measurement{
			{Type: models.MeasurementExterior, Length: 5, Height: 4},
		},
	}, cm)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 0 {
		t.Errorf("unmapped total = %v, want 0", result.Total)
	}
	if len(result.Warnings) == 0 {
		t.Error("missing output mappings produced no warnings")
	}
}

func TestDiagnosticsExportRestore(t *testing.T) {
	e := loadChain(t)
	if _, err := e.Recalculate(); err != nil {
		t.Fatal(err)
	}

	diag, err := e.Diagnostics()
	if err != nil {
		t.Fatal(err)
	}
	if diag.BookName != "chain" {
		t.Errorf("BookName = %s", diag.BookName)
	}
	if diag.Graph == nil || len(diag.SheetStats) != 1 {
		t.Fatalf("diagnostics incomplete: %+v", diag)
	}

	fresh := New(DefaultOptions())
	if err := fresh.RestoreDiagnostics(diag); err != nil {
		t.Fatal(err)
	}
	if fresh.Graph().NodeCount() != e.Graph().NodeCount() {
		t.Errorf("restored graph has %d nodes, want %d",
			fresh.Graph().NodeCount(), e.Graph().NodeCount())
	}
}

func TestStats(t *testing.T) {
	e := loadChain(t)
	stats, err := e.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.FormulaCells != 2 {
		t.Errorf("FormulaCells = %d, want 2", stats.FormulaCells)
	}
	if stats.Cycles != 0 {
		t.Errorf("Cycles = %d, want 0", stats.Cycles)
	}
	if stats.GraphNodes == 0 {
		t.Error("GraphNodes = 0")
	}
}
