package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

// ErrInvoiceNotFound is returned when the requested invoice id is unknown.
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceRow is one persisted invoice header.
type InvoiceRow struct {
	ID                 int64      `json:"id"`
	CodigoFactura      string     `json:"codigo_factura"`
	FechaEmision       time.Time  `json:"fecha_emision"`
	CodigoCliente      *string    `json:"codigo_cliente"`
	RazonSocialCliente *string    `json:"razon_social_cliente"`
	Moneda             *string    `json:"moneda"`
	Total              *float64   `json:"total"`
	ArchivoPDF         *string    `json:"archivo_pdf_path"`
	CreatedAt          time.Time  `json:"created_at"`
}

// InvoiceDetail is a full invoice with its line items.
type InvoiceDetail struct {
	InvoiceRow
	DireccionCliente     *string              `json:"direccion_cliente"`
	Distrito             *string              `json:"distrito"`
	FormaPago            *string              `json:"forma_pago"`
	Subtotal             *float64             `json:"subtotal"`
	IGV                  *float64             `json:"igv"`
	DetraccionPorcentaje *float64             `json:"detraccion_porcentaje"`
	DetraccionMonto      *float64             `json:"detraccion_monto"`
	Items                []entity.InvoiceItem `json:"items"`
}

// CurrencyBreakdown aggregates the persisted invoices of one currency.
type CurrencyBreakdown struct {
	Moneda   string  `json:"moneda"`
	Facturas int64   `json:"facturas"`
	Monto    float64 `json:"monto_total"`
}

// InvoiceStats is the aggregate view served by the stats endpoint.
type InvoiceStats struct {
	TotalFacturas int64               `json:"total_facturas"`
	TotalItems    int64               `json:"total_items"`
	MontoTotal    float64             `json:"monto_total"`
	PorMoneda     []CurrencyBreakdown `json:"por_moneda"`
}

// InvoiceRepository persists confirmed invoices.
type InvoiceRepository interface {
	Save(ctx context.Context, fields *entity.InvoiceFields, filename string) (int64, error)
	List(ctx context.Context, limit, offset int) ([]InvoiceRow, error)
	GetByID(ctx context.Context, id int64) (*InvoiceDetail, error)
	Stats(ctx context.Context) (*InvoiceStats, error)
}

type invoiceRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewInvoiceRepository(pool *pgxpool.Pool, log *slog.Logger) InvoiceRepository {
	if log == nil {
		log = slog.Default()
	}
	return &invoiceRepo{pool: pool, log: log}
}

// Save writes the invoice header and its items in one transaction.
func (r *invoiceRepo) Save(ctx context.Context, fields *entity.InvoiceFields, filename string) (int64, error) {
	if fields == nil {
		return 0, common.WrapError(common.ErrInvalidInput, "nil invoice")
	}

	codigo := "FACT-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])

	var detPct, detMonto *float64
	if fields.Detraccion != nil {
		detPct = &fields.Detraccion.Porcentaje
		detMonto = &fields.Detraccion.Monto
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("marshal raw invoice: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO facturas (
	codigo_factura, fecha_emision,
	codigo_cliente, razon_social_cliente, direccion_cliente, distrito,
	forma_pago, moneda, subtotal, igv, total,
	detraccion_porcentaje, detraccion_monto,
	archivo_pdf_path, estado, datos_raw
) VALUES (
	$1, CURRENT_DATE, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'procesada', $14
) RETURNING id`,
		codigo,
		fields.CodigoCliente,
		fields.RazonSocialCliente,
		fields.DireccionCliente,
		fields.Distrito,
		fields.FormaPago,
		fields.Moneda,
		fields.Subtotal,
		fields.IGV,
		fields.Total,
		detPct,
		detMonto,
		nullable(filename),
		raw,
	).Scan(&id)
	if err != nil {
		r.log.Error("insert factura failed", "error", err)
		return 0, fmt.Errorf("insert factura: %w", err)
	}

	for _, item := range fields.Items {
		if _, err := tx.Exec(ctx, `
INSERT INTO factura_items (factura_id, descripcion, cantidad, precio_unitario, subtotal)
VALUES ($1, $2, $3, $4, $5)`,
			id, item.Descripcion, item.Cantidad, item.PrecioUnitario, item.Subtotal,
		); err != nil {
			r.log.Error("insert factura item failed", "factura_id", id, "error", err)
			return 0, fmt.Errorf("insert item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("invoice saved", "factura_id", id, "codigo", codigo, "items", len(fields.Items))
	return id, nil
}

func (r *invoiceRepo) List(ctx context.Context, limit, offset int) ([]InvoiceRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, codigo_factura, fecha_emision, codigo_cliente, razon_social_cliente,
       moneda, total, archivo_pdf_path, created_at
FROM facturas
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query facturas: %w", err)
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var inv InvoiceRow
		if err := rows.Scan(
			&inv.ID, &inv.CodigoFactura, &inv.FechaEmision, &inv.CodigoCliente,
			&inv.RazonSocialCliente, &inv.Moneda, &inv.Total, &inv.ArchivoPDF, &inv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invoiceRepo) GetByID(ctx context.Context, id int64) (*InvoiceDetail, error) {
	var d InvoiceDetail
	err := r.pool.QueryRow(ctx, `
SELECT id, codigo_factura, fecha_emision, codigo_cliente, razon_social_cliente,
       direccion_cliente, distrito, forma_pago, moneda, subtotal, igv, total,
       detraccion_porcentaje, detraccion_monto, archivo_pdf_path, created_at
FROM facturas WHERE id = $1`, id).Scan(
		&d.ID, &d.CodigoFactura, &d.FechaEmision, &d.CodigoCliente, &d.RazonSocialCliente,
		&d.DireccionCliente, &d.Distrito, &d.FormaPago, &d.Moneda, &d.Subtotal, &d.IGV,
		&d.Total, &d.DetraccionPorcentaje, &d.DetraccionMonto, &d.ArchivoPDF, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query factura: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT descripcion, cantidad, precio_unitario, subtotal
FROM factura_items WHERE factura_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item entity.InvoiceItem
		if err := rows.Scan(&item.Descripcion, &item.Cantidad, &item.PrecioUnitario, &item.Subtotal); err != nil {
			return nil, err
		}
		d.Items = append(d.Items, item)
	}
	return &d, rows.Err()
}

// Stats aggregates the persisted invoices: totals plus a per-currency
// breakdown, most frequent currency first.
func (r *invoiceRepo) Stats(ctx context.Context) (*InvoiceStats, error) {
	var s InvoiceStats
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(total), 0),
       (SELECT COUNT(*) FROM factura_items)
FROM facturas`).Scan(&s.TotalFacturas, &s.MontoTotal, &s.TotalItems)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT COALESCE(moneda, 'SIN_MONEDA'), COUNT(*), COALESCE(SUM(total), 0)
FROM facturas
GROUP BY moneda
ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query stats by currency: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CurrencyBreakdown
		if err := rows.Scan(&c.Moneda, &c.Facturas, &c.Monto); err != nil {
			return nil, err
		}
		s.PorMoneda = append(s.PorMoneda, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
