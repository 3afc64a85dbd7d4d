// Package export renders processed invoices as XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

// Service produces XLSX bytes for a single processed invoice.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RenderInvoiceXLSX builds a workbook with a header block, the customer
// fields, the line-item table, and the totals/withholding block.
func (s *Service) RenderInvoiceXLSX(fields *entity.InvoiceFields, filename string) ([]byte, error) {
	if fields == nil {
		return nil, fmt.Errorf("nil invoice fields")
	}
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Factura"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	writeOpt := func(col, row int, label string, v any) {
		write(col, row, label)
		switch t := v.(type) {
		case *string:
			if t != nil {
				write(col+1, row, *t)
			}
		case *float64:
			if t != nil {
				write(col+1, row, *t)
			}
		default:
			write(col+1, row, v)
		}
	}

	// Header block
	write(1, 1, "Processed invoice")
	writeOpt(1, 2, "Source file", filename)
	writeOpt(1, 3, "Exported at", time.Now().UTC().Format("2006-01-02 15:04:05"))

	// Customer block
	writeOpt(1, 5, "Customer code (RUC/DNI)", fields.CodigoCliente)
	writeOpt(1, 6, "Customer name", fields.RazonSocialCliente)
	writeOpt(1, 7, "Address", fields.DireccionCliente)
	writeOpt(1, 8, "District", fields.Distrito)
	writeOpt(1, 9, "Payment", fields.FormaPago)
	writeOpt(1, 10, "Currency", fields.Moneda)

	// Item table
	headerRow := 12
	for i, h := range []string{"Description", "Quantity", "Unit price", "Subtotal"} {
		write(i+1, headerRow, h)
	}
	row := headerRow + 1
	for _, item := range fields.Items {
		write(1, row, item.Descripcion)
		write(2, row, item.Cantidad)
		write(3, row, item.PrecioUnitario)
		write(4, row, item.Subtotal)
		row++
	}

	// Totals block
	row++
	writeOpt(3, row, "Subtotal", fields.Subtotal)
	row++
	writeOpt(3, row, "IGV", fields.IGV)
	row++
	writeOpt(3, row, "Total", fields.Total)
	if fields.Detraccion != nil {
		row++
		writeOpt(3, row, "Detraccion %", fields.Detraccion.Porcentaje)
		row++
		writeOpt(3, row, "Detraccion amount", fields.Detraccion.Monto)
	}

	_ = f.SetColWidth(sheet, "A", "A", 42)
	_ = f.SetColWidth(sheet, "B", "B", 24)
	_ = f.SetColWidth(sheet, "C", "D", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"filename", filename,
		"items", len(fields.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
