package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/pdf"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// minPageChars filters out pages whose extracted text is positioning noise.
const minPageChars = 20

// ExtractStage pulls text from the first MaxPages pages using the backend
// chosen during ingestion.
type ExtractStage struct {
	Backends []pdf.Backend
	MaxPages int
	Logger   *slog.Logger
}

func NewExtractStage(backends []pdf.Backend, maxPages int, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages <= 0 {
		maxPages = 3
	}
	return &ExtractStage{Backends: backends, MaxPages: maxPages, Logger: logger}
}

func (e *ExtractStage) Name() constants.Stage { return constants.StageExtraction }

func (e *ExtractStage) Run(ctx context.Context, st state.PipelineState) (state.PipelineState, error) {
	name := st.DebugString(debugBackend)
	backend, ok := pdf.ByName(e.Backends, name)
	if !ok {
		return st, common.ExtractionError(fmt.Sprintf("unknown extraction backend %q", name), nil)
	}

	pages, err := backend.ExtractText(ctx, st.DocumentInfo.FilePath, e.MaxPages)
	if err != nil {
		return st, common.ExtractionError("backend failed", err)
	}

	var b strings.Builder
	used := 0
	for i, page := range pages {
		if len(page) < minPageChars {
			continue
		}
		fmt.Fprintf(&b, "\n--- PAGE %d ---\n%s\n", i+1, page)
		used++
	}
	raw := b.String()
	if strings.TrimSpace(raw) == "" {
		return st, common.ExtractionError("empty result", nil)
	}

	st.TextContent.RawText = raw
	chars := len(strings.TrimSpace(raw))
	words := len(strings.Fields(raw))
	st.SetDebug(debugTotalChars, chars)
	st.SetDebug(debugWordCount, words)
	st.SetDebug(debugPagesUsed, used)

	e.Logger.Info("extraction ok",
		"job_id", st.JobID,
		"backend", name,
		"chars", chars,
		"words", words,
		"pages_with_text", used,
	)
	st.AddMessage(fmt.Sprintf("text extracted: %d characters from %d pages", chars, used))

	if err := st.AdvanceStage(constants.StageCleaning); err != nil {
		return st, common.ExtractionError("advance stage", err)
	}
	return st, nil
}
