package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

func TestIngestStageFileNotFound(t *testing.T) {
	stage := NewIngestStage(10, nil, nil)
	st := state.New(uuid.New(), filepath.Join(t.TempDir(), "missing.pdf"), "missing.pdf", 0)

	_, err := stage.Run(context.Background(), st)
	require.Error(t, err)
	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, constants.StageIngestion, stageErr.Stage)
	assert.Contains(t, err.Error(), "file not found")
}

func TestIngestStageFileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.pdf")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("a"), 2<<20), 0o644))

	stage := NewIngestStage(1, nil, nil)
	st := state.New(uuid.New(), path, "big.pdf", 0)

	out, err := stage.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")

	// Validation failed before any text work started.
	assert.Empty(t, out.TextContent.RawText)
	assert.Empty(t, out.TextContent.CleanedText)
	assert.Equal(t, constants.StageIngestion, out.Control.Stage)
}

func TestIngestStageCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0o644))

	stage := NewIngestStage(10, nil, nil)
	st := state.New(uuid.New(), path, "bad.pdf", 0)

	_, err := stage.Run(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt PDF")
}
