package state

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

func newTestState(t *testing.T) PipelineState {
	t.Helper()
	return New(uuid.New(), "/tmp/factura.pdf", "factura.pdf", 1024)
}

func TestNewInitialState(t *testing.T) {
	st := newTestState(t)

	assert.Equal(t, constants.StatusPending, st.Control.Status)
	assert.Equal(t, constants.StageIngestion, st.Control.Stage)
	assert.Equal(t, "factura.pdf", st.DocumentInfo.Filename)
	assert.False(t, st.Terminal())
	require.NoError(t, st.Validate())
}

func TestValidate(t *testing.T) {
	st := newTestState(t)
	st.JobID = uuid.Nil
	assert.Error(t, st.Validate())

	st = newTestState(t)
	st.DocumentInfo.FileSize = -1
	assert.Error(t, st.Validate())

	st = newTestState(t)
	st.Control.Status = "RUNNING"
	assert.Error(t, st.Validate())

	st = newTestState(t)
	st.Control.Stage = "OCR"
	assert.Error(t, st.Validate())
}

func TestAdvanceStageForwardOnly(t *testing.T) {
	st := newTestState(t)

	require.NoError(t, st.AdvanceStage(constants.StageExtraction))
	require.NoError(t, st.AdvanceStage(constants.StageCleaning))

	err := st.AdvanceStage(constants.StageIngestion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rewind")
	assert.Equal(t, constants.StageCleaning, st.Control.Stage)

	assert.Error(t, st.AdvanceStage("NOT_A_STAGE"))
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	st := newTestState(t)
	st.MarkCompleted()

	assert.True(t, st.Terminal())
	assert.Equal(t, constants.StageDone, st.Control.Stage)
	assert.Error(t, st.AdvanceStage(constants.StageDone))

	st.MarkFailed("late failure")
	assert.Equal(t, constants.StatusCompleted, st.Control.Status)
	assert.Empty(t, st.Log.Errors)
}

func TestMarkFailedRecordsReason(t *testing.T) {
	st := newTestState(t)
	st.MarkProcessing()
	st.MarkFailed("INGESTION: file too large (12.3MB > 10MB)")

	assert.Equal(t, constants.StatusFailed, st.Control.Status)
	assert.True(t, st.Terminal())
	assert.Contains(t, st.ErrorReason(), "file too large")

	// Stage is preserved so the client can see where it failed.
	assert.Equal(t, constants.StageIngestion, st.Control.Stage)
}

func TestRecordUsage(t *testing.T) {
	st := newTestState(t)
	st.RecordUsage(2000, 1500*time.Millisecond, "gpt-4o-mini")
	st.RecordUsage(1000, 500*time.Millisecond, "")

	assert.Equal(t, 3000, st.Metrics.TokensUsed)
	assert.InDelta(t, 2.0, st.Metrics.ProcessingTime, 0.001)
	assert.InDelta(t, 0.00045, st.Metrics.CostEstimate, 1e-9)
	assert.Equal(t, "gpt-4o-mini", st.Metrics.LLMModel)
}

func TestCloneIsDeep(t *testing.T) {
	st := newTestState(t)
	st.AddMessage("one")
	st.SetDebug("page_count", 2)
	total := 118.0
	st.ExtractedData = &entity.InvoiceFields{
		Total:      &total,
		Items:      []entity.InvoiceItem{{Descripcion: "SERVICIO", Cantidad: 1, PrecioUnitario: 100, Subtotal: 100}},
		Detraccion: &entity.Detraccion{Porcentaje: 12, Monto: 14.16},
	}

	cp := st.Clone()
	cp.AddMessage("two")
	cp.SetDebug("page_count", 99)
	cp.ExtractedData.Items[0].Descripcion = "CAMBIADO"
	cp.ExtractedData.Detraccion.Monto = 0

	assert.Len(t, st.Log.Messages, 1)
	v, _ := st.Debug("page_count")
	assert.Equal(t, 2, v)
	assert.Equal(t, "SERVICIO", st.ExtractedData.Items[0].Descripcion)
	assert.Equal(t, 14.16, st.ExtractedData.Detraccion.Monto)
}
