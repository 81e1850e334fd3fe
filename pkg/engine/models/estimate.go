package models

// MeasurementType classifies a surface measurement on an estimate.
type MeasurementType string

const (
	MeasurementExterior MeasurementType = "exterior"
	MeasurementInterior MeasurementType = "interior"
	MeasurementCabinet  MeasurementType = "cabinet"
	MeasurementGutter   MeasurementType = "gutter"
	MeasurementHoliday  MeasurementType = "holiday"
)

// Measurement is one measured surface on an estimate. Length and
// Height are in feet; Quantity counts repeated items (doors, cabinet
// faces, gutter runs).
type Measurement struct {
	// Type classifies the surface.
	Type MeasurementType `json:"type"`
	// Label is a free-form description ("south wall", "kitchen uppers").
	Label string `json:"label,omitempty"`
	// Length is the surface length in feet.
	Length float64 `json:"length"`
	// Height is the surface height in feet.
	Height float64 `json:"height"`
	// Quantity counts repeated items; zero means one.
	Quantity float64 `json:"quantity,omitempty"`
	// Coats is the number of paint coats; zero means the tier default.
	Coats float64 `json:"coats,omitempty"`
}

// PricingTier selects the rate package applied to an estimate.
type PricingTier string

const (
	TierGood   PricingTier = "good"
	TierBetter PricingTier = "better"
	TierBest   PricingTier = "best"
)

// EstimateInput is the external-facing calculation request record.
// It is constructed by the caller, consumed once per calculation
// request, and immutable during that request.
type EstimateInput struct {
	// ClientName is the client's display name.
	ClientName string `json:"client_name"`
	// Address is the job-site address.
	Address string `json:"address,omitempty"`
	// Phone is the client's phone number.
	Phone string `json:"phone,omitempty"`
	// Email is the client's email address.
	Email string `json:"email,omitempty"`
	// Measurements is the ordered list of measured surfaces.
	Measurements []Measurement `json:"measurements"`
	// Tier is the selected pricing tier.
	Tier PricingTier `json:"tier"`
	// TaxRate is the sales-tax rate as a fraction (0.0825 for 8.25%).
	TaxRate float64 `json:"tax_rate"`
}

// EstimateResult carries the derived totals read back from the
// workbook after a full recalculation. Numeric fields default to zero
// when the corresponding output cell could not be resolved; the inputs
// are echoed back so a zero is never silent data loss.
type EstimateResult struct {
	// Input echoes the request this result was computed from.
	Input EstimateInput `json:"input"`
	// Subtotal is the pre-tax price.
	Subtotal float64 `json:"subtotal"`
	// Tax is the sales-tax amount.
	Tax float64 `json:"tax"`
	// Total is the final price including tax.
	Total float64 `json:"total"`
	// LaborHours is the estimated labor in hours.
	LaborHours float64 `json:"labor_hours"`
	// PaintGallons is the estimated paint volume in gallons.
	PaintGallons float64 `json:"paint_gallons"`
	// Warnings lists advisory issues raised during calculation.
	Warnings []string `json:"warnings,omitempty"`
}
