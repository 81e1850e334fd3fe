package engine

import (
	"fmt"
	"sort"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// CellMap names the workbook cells an estimate calculation writes its
// inputs to and reads its outputs from. Keys are the fixed field names
// below; values are fully qualified cell IDs ("Sheet!A1").
type CellMap struct {
	// Inputs maps input field names to cells: exterior_area,
	// interior_area, cabinet_count, gutter_length, holiday_count,
	// tax_rate, tier.
	Inputs map[string]string `json:"inputs"`
	// Outputs maps output field names to cells: subtotal, tax, total,
	// labor_hours, paint_gallons.
	Outputs map[string]string `json:"outputs"`
}

// Input field names.
const (
	InputExteriorArea = "exterior_area"
	InputInteriorArea = "interior_area"
	InputCabinetCount = "cabinet_count"
	InputGutterLength = "gutter_length"
	InputHolidayCount = "holiday_count"
	InputTaxRate      = "tax_rate"
	InputTier         = "tier"
)

// Output field names.
const (
	OutputSubtotal     = "subtotal"
	OutputTax          = "tax"
	OutputTotal        = "total"
	OutputLaborHours   = "labor_hours"
	OutputPaintGallons = "paint_gallons"
)

// measurementQuantity treats a zero quantity as one item.
func measurementQuantity(m models.Measurement) float64 {
	if m.Quantity == 0 {
		return 1
	}
	return m.Quantity
}

// measurementCoats treats zero coats as the workbook's tier default of
// a single coat.
func measurementCoats(m models.Measurement) float64 {
	if m.Coats == 0 {
		return 1
	}
	return m.Coats
}

// aggregateMeasurements reduces a measurement list to the scalar
// inputs the workbook expects: coated square footage for wall
// surfaces, linear feet for gutters, item counts for cabinets and
// holiday installs.
func aggregateMeasurements(ms []models.Measurement) map[string]float64 {
	agg := map[string]float64{
		InputExteriorArea: 0,
		InputInteriorArea: 0,
		InputCabinetCount: 0,
		InputGutterLength: 0,
		InputHolidayCount: 0,
	}
	for _, m := range ms {
		qty := measurementQuantity(m)
		switch m.Type {
		case models.MeasurementExterior:
			agg[InputExteriorArea] += m.Length * m.Height * qty * measurementCoats(m)
		case models.MeasurementInterior:
			agg[InputInteriorArea] += m.Length * m.Height * qty * measurementCoats(m)
		case models.MeasurementCabinet:
			agg[InputCabinetCount] += qty
		case models.MeasurementGutter:
			agg[InputGutterLength] += m.Length * qty
		case models.MeasurementHoliday:
			agg[InputHolidayCount] += qty
		}
	}
	return agg
}

// CalculateEstimate writes an estimate's aggregated inputs into the
// workbook, runs a full recalculation and reads the derived totals
// back out. An output cell that cannot be resolved yields zero
// for that field, with a warning carried on the result: the inputs are
// echoed back alongside, so the zero is never silent data loss.
func (e *Engine) CalculateEstimate(input models.EstimateInput, cm CellMap) (*models.EstimateResult, error) {
	if !e.loaded {
		return nil, ErrNotLoaded
	}

	result := &models.EstimateResult{Input: input}
	agg := aggregateMeasurements(input.Measurements)
	agg[InputTaxRate] = input.TaxRate

	edits := make(map[string]models.Value)
	fields := make([]string, 0, len(agg))
	for field := range agg {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		cellID, ok := cm.Inputs[field]
		if !ok {
			continue
		}
		edits[cellID] = models.NumberFromFloat(agg[field])
	}
	if cellID, ok := cm.Inputs[InputTier]; ok && input.Tier != "" {
		edits[cellID] = models.Text(string(input.Tier))
	}

	for cellID, v := range edits {
		ref, err := models.ParseCellID(cellID)
		if err != nil {
			return nil, fmt.Errorf("estimate input cell %s: %w", cellID, err)
		}
		if err := e.store.SetCell(ref, v); err != nil {
			return nil, fmt.Errorf("estimate input cell %s: %w", cellID, err)
		}
	}

	// A full pass, not an incremental one: output cells that do not
	// depend on any mapped input still need current values.
	report, err := e.Recalculate()
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, report.Warnings...)

	result.Subtotal = e.readOutput(cm, OutputSubtotal, result)
	result.Tax = e.readOutput(cm, OutputTax, result)
	result.Total = e.readOutput(cm, OutputTotal, result)
	result.LaborHours = e.readOutput(cm, OutputLaborHours, result)
	result.PaintGallons = e.readOutput(cm, OutputPaintGallons, result)
	return result, nil
}

// readOutput resolves one output field to a number, falling back to
// zero with a warning when the cell is missing or non-numeric.
func (e *Engine) readOutput(cm CellMap, field string, result *models.EstimateResult) float64 {
	cellID, ok := cm.Outputs[field]
	if !ok {
		result.Warnings = append(result.Warnings, "no output cell mapped for "+field)
		return 0
	}
	ref, err := models.ParseCellID(cellID)
	if err != nil {
		result.Warnings = append(result.Warnings, "invalid output cell for "+field+": "+cellID)
		return 0
	}
	v := e.store.GetCell(ref)
	f, ok := v.AsFloat()
	if !ok {
		result.Warnings = append(result.Warnings, "output cell "+cellID+" for "+field+" is not numeric, using zero")
		return 0
	}
	return f
}
