package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/pdf"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// debug_info keys written by the stages.
const (
	debugBackend     = "extraction_backend"
	debugPageCount   = "page_count"
	debugFileSizeMB  = "file_size_mb"
	debugTotalChars  = "total_characters"
	debugWordCount   = "word_count"
	debugPagesUsed   = "pages_with_text"
	debugCharsPruned = "characters_removed"
)

// IngestStage validates the uploaded document and selects the extraction
// backend the rest of the pipeline will use.
type IngestStage struct {
	MaxSizeMB int64
	Backends  []pdf.Backend
	Logger    *slog.Logger
}

func NewIngestStage(maxSizeMB int64, backends []pdf.Backend, logger *slog.Logger) *IngestStage {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &IngestStage{MaxSizeMB: maxSizeMB, Backends: backends, Logger: logger}
}

func (g *IngestStage) Name() constants.Stage { return constants.StageIngestion }

// Run checks, in order: file exists, size within limit, structurally valid
// PDF, at least one backend yields text. Each is a hard precondition.
func (g *IngestStage) Run(ctx context.Context, st state.PipelineState) (state.PipelineState, error) {
	path := st.DocumentInfo.FilePath

	info, err := os.Stat(path)
	if err != nil {
		return st, common.IngestionError("file not found", err)
	}

	sizeMB := float64(info.Size()) / (1 << 20)
	if info.Size() > g.MaxSizeMB*(1<<20) {
		return st, common.IngestionError(
			fmt.Sprintf("file too large (%.1fMB > %dMB)", sizeMB, g.MaxSizeMB), nil)
	}
	st.DocumentInfo.FileSize = info.Size()

	pages, err := pdf.Inspect(path)
	if err != nil {
		return st, common.IngestionError("corrupt PDF", err)
	}

	backend, err := pdf.Select(ctx, g.Backends, path)
	if err != nil {
		return st, common.IngestionError("no extractable text", err)
	}

	st.SetDebug(debugBackend, backend.Name())
	st.SetDebug(debugPageCount, pages)
	st.SetDebug(debugFileSizeMB, sizeMB)

	g.Logger.Info("ingest ok",
		"job_id", st.JobID,
		"filename", st.DocumentInfo.Filename,
		"pages", pages,
		"size_mb", fmt.Sprintf("%.2f", sizeMB),
		"backend", backend.Name(),
	)
	st.AddMessage(fmt.Sprintf("document validated: %d pages, %.1fMB, backend %s", pages, sizeMB, backend.Name()))

	if err := st.AdvanceStage(constants.StageExtraction); err != nil {
		return st, common.IngestionError("advance stage", err)
	}
	return st, nil
}
