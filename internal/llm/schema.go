package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured output constraint and
// also use it locally to validate the response.
func BuildInvoiceJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"descripcion":     map[string]any{"type": "string", "minLength": 1},
			"cantidad":        amountProp(),
			"precio_unitario": amountProp(),
			"subtotal":        amountProp(),
		},
		"required": []string{"descripcion", "cantidad", "precio_unitario", "subtotal"},
	}

	detraccion := map[string]any{
		"type": []string{"object", "null"},
		"properties": map[string]any{
			"porcentaje": amountProp(),
			"monto":      amountProp(),
		},
		"required": []string{"porcentaje", "monto"},
	}

	props := map[string]any{
		"codigo_cliente":       nullableString(),
		"razon_social_cliente": nullableString(),
		"direccion_cliente":    nullableString(),
		"distrito":             nullableString(),
		"items": map[string]any{
			"type":  "array",
			"items": item,
		},
		"forma_pago": nullableString(),
		"moneda":     nullableString(),
		"subtotal":   nullableAmount(),
		"igv":        nullableAmount(),
		"total":      nullableAmount(),
		"detraccion": detraccion,
	}

	// Every top-level key must be present; "unknown" is expressed as null,
	// never by omission.
	required := []string{
		"codigo_cliente",
		"razon_social_cliente",
		"direccion_cliente",
		"distrito",
		"items",
		"forma_pago",
		"moneda",
		"subtotal",
		"igv",
		"total",
		"detraccion",
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func amountProp() map[string]any {
	return map[string]any{"type": "number"}
}

func nullableAmount() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}
