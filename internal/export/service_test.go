package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

func sampleFields() *entity.InvoiceFields {
	codigo := "20123456789"
	razon := "ACME PERU S.A.C."
	moneda := "PEN"
	sub, igv, total := 100.0, 18.0, 118.0
	return &entity.InvoiceFields{
		CodigoCliente:      &codigo,
		RazonSocialCliente: &razon,
		Moneda:             &moneda,
		Subtotal:           &sub,
		IGV:                &igv,
		Total:              &total,
		Items: []entity.InvoiceItem{
			{Descripcion: "SERVICIO DE TRANSPORTE", Cantidad: 2, PrecioUnitario: 50, Subtotal: 100},
		},
		Detraccion: &entity.Detraccion{Porcentaje: 12, Monto: 14.16},
	}
}

func TestRenderInvoiceXLSX(t *testing.T) {
	svc := NewService(nil)

	data, err := svc.RenderInvoiceXLSX(sampleFields(), "factura.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Contains(t, f.GetSheetList(), "Factura")

	ruc, err := f.GetCellValue("Factura", "B5")
	require.NoError(t, err)
	assert.Equal(t, "20123456789", ruc)

	desc, err := f.GetCellValue("Factura", "A13")
	require.NoError(t, err)
	assert.Equal(t, "SERVICIO DE TRANSPORTE", desc)
}

func TestRenderInvoiceXLSXSparseFields(t *testing.T) {
	svc := NewService(nil)

	// Nothing but a total; every nil field is simply left blank.
	total := 118.0
	data, err := svc.RenderInvoiceXLSX(&entity.InvoiceFields{Total: &total}, "f.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderInvoiceXLSXNilFields(t *testing.T) {
	_, err := NewService(nil).RenderInvoiceXLSX(nil, "f.pdf")
	assert.Error(t, err)
}
