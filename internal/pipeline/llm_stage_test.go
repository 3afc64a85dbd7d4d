package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
	"github.com/factura-labs/invoice-pipeline/internal/llm"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// fakeExtractor is a scripted llm.FieldExtractor.
type fakeExtractor struct {
	fields entity.InvoiceFields
	usage  llm.Usage
	raw    []byte
	err    error

	block bool // wait for ctx cancellation instead of answering
}

func (f *fakeExtractor) ExtractFields(ctx context.Context, _ llm.ExtractRequest) (entity.InvoiceFields, llm.Usage, []byte, error) {
	if f.block {
		<-ctx.Done()
		return entity.InvoiceFields{}, llm.Usage{}, nil, ctx.Err()
	}
	if f.err != nil {
		return entity.InvoiceFields{}, llm.Usage{}, nil, f.err
	}
	return f.fields, f.usage, f.raw, nil
}

func llmReadyState(cleaned string) state.PipelineState {
	st := state.New(uuid.New(), "/tmp/f.pdf", "f.pdf", 0)
	_ = st.AdvanceStage(constants.StageExtraction)
	_ = st.AdvanceStage(constants.StageCleaning)
	_ = st.AdvanceStage(constants.StageLLM)
	st.TextContent.RawText = cleaned
	st.TextContent.CleanedText = cleaned
	return st
}

func completedFields() entity.InvoiceFields {
	codigo := "20123456789"
	moneda := "PEN"
	sub, igv, total := 100.0, 18.0, 118.0
	return entity.InvoiceFields{
		CodigoCliente: &codigo,
		Moneda:        &moneda,
		Subtotal:      &sub,
		IGV:           &igv,
		Total:         &total,
		Items: []entity.InvoiceItem{
			{Descripcion: "SERVICIO", Cantidad: 1, PrecioUnitario: 100, Subtotal: 100},
		},
	}
}

func TestLLMStageSuccess(t *testing.T) {
	ext := &fakeExtractor{
		fields: completedFields(),
		usage:  llm.Usage{TotalTokens: 1200},
		raw:    []byte(`{"total": 118}`),
	}
	stage := NewLLMStage(ext, "gpt-4o-mini", time.Second, nil)

	out, err := stage.Run(context.Background(), llmReadyState("FACTURA TOTAL: 118.00"))
	require.NoError(t, err)

	assert.Equal(t, constants.StatusCompleted, out.Control.Status)
	assert.Equal(t, constants.StageDone, out.Control.Stage)
	require.NotNil(t, out.ExtractedData)
	assert.Equal(t, 1200, out.Metrics.TokensUsed)
	assert.InDelta(t, 1200.0/1000*0.00015, out.Metrics.CostEstimate, 1e-9)
	assert.Equal(t, "gpt-4o-mini", out.Metrics.LLMModel)
	assert.Greater(t, out.Quality.CompletenessScore, 0.0)
	assert.Greater(t, out.Quality.ConfidenceScore, out.Quality.CompletenessScore*0.7-1e-9)
}

func TestLLMStageEmptyCleanedText(t *testing.T) {
	stage := NewLLMStage(&fakeExtractor{}, "gpt-4o-mini", time.Second, nil)

	_, err := stage.Run(context.Background(), llmReadyState("   "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty cleaned text")
}

func TestLLMStageTimeout(t *testing.T) {
	stage := NewLLMStage(&fakeExtractor{block: true}, "gpt-4o-mini", 20*time.Millisecond, nil)
	st := llmReadyState("FACTURA TOTAL: 118.00")

	out, err := stage.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	// Upstream text survives the failure for diagnosis.
	assert.Equal(t, "FACTURA TOTAL: 118.00", out.TextContent.CleanedText)
	assert.Nil(t, out.ExtractedData)
	assert.Zero(t, out.Metrics.TokensUsed)
}

func TestLLMStagePassesThroughTypedErrors(t *testing.T) {
	cause := common.LLMExtractionError("schema mismatch", fmt.Errorf("missing keys: [total]"))
	stage := NewLLMStage(&fakeExtractor{err: cause}, "gpt-4o-mini", time.Second, nil)

	_, err := stage.Run(context.Background(), llmReadyState("FACTURA"))
	require.Error(t, err)
	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "schema mismatch", stageErr.Message)
}
