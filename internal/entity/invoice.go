package entity

// InvoiceItem is one product or service line on the invoice.
type InvoiceItem struct {
	Descripcion    string  `json:"descripcion"`
	Cantidad       float64 `json:"cantidad"`
	PrecioUnitario float64 `json:"precio_unitario"`
	Subtotal       float64 `json:"subtotal"`
}

// Detraccion is the Peruvian tax withholding block, present only when the
// invoice states it explicitly.
type Detraccion struct {
	Porcentaje float64 `json:"porcentaje"`
	Monto      float64 `json:"monto"`
}

// InvoiceFields is the structured record parsed from the model response.
// Field names follow SUNAT invoice terminology; absent fields stay nil so
// "not on the document" is distinguishable from zero.
type InvoiceFields struct {
	CodigoCliente      *string       `json:"codigo_cliente"`       // RUC (11 digits) or DNI (8 digits)
	RazonSocialCliente *string       `json:"razon_social_cliente"` // customer legal name, verbatim
	DireccionCliente   *string       `json:"direccion_cliente"`    // street address, uppercase
	Distrito           *string       `json:"distrito"`             // customer district, uppercase
	Items              []InvoiceItem `json:"items"`
	FormaPago          *string       `json:"forma_pago"` // CONTADO/CREDITO/TARJETA/...
	Moneda             *string       `json:"moneda"`     // ISO code: PEN or USD
	Subtotal           *float64      `json:"subtotal"`
	IGV                *float64      `json:"igv"`
	Total              *float64      `json:"total"`
	Detraccion         *Detraccion   `json:"detraccion"`
}

// RequiredKeys are the top-level keys the model must emit (possibly null).
// A response missing any of them is a schema mismatch.
var RequiredKeys = []string{
	"codigo_cliente",
	"razon_social_cliente",
	"items",
	"forma_pago",
	"moneda",
	"subtotal",
	"igv",
	"total",
}

// CompletenessScore is the ratio of populated top-level fields. Detraccion
// is excluded: most invoices legitimately have none.
func (f *InvoiceFields) CompletenessScore() float64 {
	present := 0
	total := 10
	for _, ok := range []bool{
		f.CodigoCliente != nil,
		f.RazonSocialCliente != nil,
		f.DireccionCliente != nil,
		f.Distrito != nil,
		len(f.Items) > 0,
		f.FormaPago != nil,
		f.Moneda != nil,
		f.Subtotal != nil,
		f.IGV != nil,
		f.Total != nil,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / float64(total)
}

// ConfidenceScore is a heuristic over field presence and arithmetic
// consistency of the monetary block. It is not a model probability.
func (f *InvoiceFields) ConfidenceScore() float64 {
	score := f.CompletenessScore() * 0.7
	if f.TotalsConsistent(0.01) {
		score += 0.3
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// TotalsConsistent reports whether subtotal + igv equals total within the
// given tolerance. Missing amounts count as inconsistent.
func (f *InvoiceFields) TotalsConsistent(tolerance float64) bool {
	if f.Subtotal == nil || f.IGV == nil || f.Total == nil {
		return false
	}
	diff := *f.Subtotal + *f.IGV - *f.Total
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
