package llm

import (
	"strconv"
	"strings"
)

// The extraction contract is fixed: Peruvian invoice fields, Spanish keys,
// strict JSON. Changing key names here breaks entity.InvoiceFields.

const systemPrompt = "You are an expert accountant specialized in extracting data from " +
	"Peruvian invoices (facturas). Analyze the invoice text and return the " +
	"requested fields as a single valid JSON object. Respond ONLY with JSON, " +
	"no markdown, no extra commentary."

// BuildPrompts returns the system and user prompts for one extraction.
func BuildPrompts(cleanedText string) (system, user string) {
	rules := []string{
		"Extract ONLY information explicitly present in the text.",
		"Never invent, infer, or reformat data.",
		"If a field is not present, use null.",
		"Amounts are numbers with up to 2 decimals (e.g. 1500.00).",
		"Strings keep the text exactly as it appears on the invoice.",
	}

	structure := []string{
		"- codigo_cliente: customer RUC (11 digits) or DNI (8 digits). String or null.",
		"- razon_social_cliente: exact customer legal name. String or null.",
		"- direccion_cliente: full customer address without district or region, UPPERCASE, no commas or parentheses. String or null.",
		"- distrito: customer district, UPPERCASE. String or null.",
		"- items: array of line items, each with descripcion (string), cantidad (number), precio_unitario (number), subtotal (number).",
		"- forma_pago: payment condition (CONTADO/CREDITO/TARJETA/EFECTIVO/TRANSFERENCIA/YAPE/PLIN). String or null.",
		"- moneda: ISO currency code (PEN for soles, USD for dollars). String or null.",
		"- subtotal: pre-tax subtotal. Number or null.",
		"- igv: IGV tax amount (18%). Number or null.",
		"- total: total payable. Number or null.",
		"- detraccion: object with porcentaje (number) and monto (number), only when the withholding is explicitly stated; otherwise null.",
	}

	var b strings.Builder
	b.WriteString("Analyze the following Peruvian invoice text and extract the data as JSON.\n\n")
	b.WriteString("STRICT RULES:\n")
	for i, r := range rules {
		b.WriteString(strconv.Itoa(i+1) + ". " + r + "\n")
	}
	b.WriteString("\nJSON STRUCTURE:\n")
	for _, s := range structure {
		b.WriteString(s + "\n")
	}
	b.WriteString("\nINVOICE TEXT:\n---\n")
	b.WriteString(cleanedText)
	b.WriteString("\n---\n\nRespond only with the JSON object:")
	return systemPrompt, b.String()
}
