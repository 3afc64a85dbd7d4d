package llm

import (
	"context"

	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

// ExtractRequest carries everything the field extractor needs.
type ExtractRequest struct {
	CleanedText string
	Filename    string // hint only, never parsed for amounts
}

// Usage reports what the completion call consumed.
type Usage struct {
	TotalTokens int
}

// FieldExtractor is the interface the LLM stage depends on.
type FieldExtractor interface {
	// ExtractFields returns the parsed invoice record, usage accounting,
	// and the raw JSON content for auditing.
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.InvoiceFields, Usage, []byte, error)
}
