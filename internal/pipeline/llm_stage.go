package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/llm"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// LLMStage sends the cleaned text to the field extractor and finalizes the
// job. This is the only stage that blocks on the network, so the call is
// bounded by Timeout.
type LLMStage struct {
	Extractor llm.FieldExtractor
	Model     string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewLLMStage(extractor llm.FieldExtractor, model string, timeout time.Duration, logger *slog.Logger) *LLMStage {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &LLMStage{Extractor: extractor, Model: model, Timeout: timeout, Logger: logger}
}

func (l *LLMStage) Name() constants.Stage { return constants.StageLLM }

func (l *LLMStage) Run(ctx context.Context, st state.PipelineState) (state.PipelineState, error) {
	cleaned := st.TextContent.CleanedText
	if strings.TrimSpace(cleaned) == "" {
		return st, common.LLMExtractionError("empty cleaned text", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	start := time.Now()
	fields, usage, raw, err := l.Extractor.ExtractFields(callCtx, llm.ExtractRequest{
		CleanedText: cleaned,
		Filename:    st.DocumentInfo.Filename,
	})
	elapsed := time.Since(start)
	if err != nil {
		// Transport failures, timeouts, and malformed responses all surface
		// as LLM stage errors; parse/schema errors arrive already typed.
		var stageErr *common.StageError
		if errors.As(err, &stageErr) {
			return st, stageErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return st, common.LLMExtractionError(
				fmt.Sprintf("completion call timed out after %s", l.Timeout), err)
		}
		return st, common.LLMExtractionError("completion call failed", err)
	}

	st.ExtractedData = &fields
	st.RecordUsage(usage.TotalTokens, elapsed, l.Model)
	st.Quality.CompletenessScore = fields.CompletenessScore()
	st.Quality.ConfidenceScore = fields.ConfidenceScore()
	st.SetDebug("llm_response_bytes", len(raw))

	l.Logger.Info("llm extraction ok",
		"job_id", st.JobID,
		"tokens", usage.TotalTokens,
		"items", len(fields.Items),
		"completeness", st.Quality.CompletenessScore,
		"confidence", st.Quality.ConfidenceScore,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	st.AddMessage(fmt.Sprintf("extraction completed: %d items, %d tokens", len(fields.Items), usage.TotalTokens))

	st.MarkCompleted()
	return st, nil
}
