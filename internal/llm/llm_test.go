package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
	"codigo_cliente": "20123456789",
	"razon_social_cliente": "ACME PERU S.A.C.",
	"direccion_cliente": "AV. AREQUIPA 1234",
	"distrito": "MIRAFLORES",
	"items": [
		{"descripcion": "SERVICIO DE TRANSPORTE", "cantidad": 1, "precio_unitario": 100, "subtotal": 100}
	],
	"forma_pago": "CONTADO",
	"moneda": "PEN",
	"subtotal": 100,
	"igv": 18,
	"total": 118,
	"detraccion": null
}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\": 1}\n```\n  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestCheckRequiredKeys(t *testing.T) {
	missing, err := CheckRequiredKeys([]byte(validResponse))
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Null values satisfy the contract; absence does not.
	missing, err = CheckRequiredKeys([]byte(`{"codigo_cliente": null, "total": null}`))
	require.NoError(t, err)
	assert.Contains(t, missing, "items")
	assert.Contains(t, missing, "igv")
	assert.NotContains(t, missing, "codigo_cliente")

	_, err = CheckRequiredKeys([]byte(`not json`))
	assert.Error(t, err)
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(validResponse)))

	// "Unknown" is always an explicit null, never an omitted key.
	allNull := `{
		"codigo_cliente": null, "razon_social_cliente": null, "direccion_cliente": null,
		"distrito": null, "items": [], "forma_pago": null, "moneda": null,
		"subtotal": null, "igv": null, "total": null, "detraccion": null
	}`
	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(allNull)))

	t.Run("rejects missing key", func(t *testing.T) {
		bad := strings.Replace(validResponse, `"total": 118,`, "", 1)
		assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(bad)))
	})

	t.Run("rejects wrong type", func(t *testing.T) {
		bad := strings.Replace(validResponse, `"total": 118`, `"total": "118"`, 1)
		assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(bad)))
	})

	t.Run("rejects unknown key", func(t *testing.T) {
		bad := strings.Replace(validResponse, `"total": 118,`, `"total": 118, "extra": 1,`, 1)
		assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(bad)))
	})

	t.Run("rejects item missing a field", func(t *testing.T) {
		bad := strings.Replace(validResponse, `"cantidad": 1, `, "", 1)
		assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(bad)))
	})

	t.Run("accepts detraccion object", func(t *testing.T) {
		ok := strings.Replace(validResponse, `"detraccion": null`,
			`"detraccion": {"porcentaje": 12, "monto": 14.16}`, 1)
		assert.NoError(t, ValidateJSONAgainstSchema(schema, []byte(ok)))
	})
}

func TestBuildPrompts(t *testing.T) {
	system, user := BuildPrompts("FACTURA ELECTRONICA F001-123\nTOTAL: 118.00")

	assert.Contains(t, system, "Peruvian invoices")
	assert.Contains(t, user, "STRICT RULES")
	assert.Contains(t, user, "codigo_cliente")
	assert.Contains(t, user, "detraccion")
	assert.Contains(t, user, "FACTURA ELECTRONICA F001-123")
	// Invoice text goes last so a truncated prompt loses data, not rules.
	assert.Less(t, strings.Index(user, "STRICT RULES"), strings.Index(user, "F001-123"))
}
