package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

var (
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reNewlines = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// CleanStage normalizes the raw text deterministically: uppercase,
// whitespace collapsing, non-printable removal. No I/O.
type CleanStage struct {
	Logger *slog.Logger
}

func NewCleanStage(logger *slog.Logger) *CleanStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanStage{Logger: logger}
}

func (c *CleanStage) Name() constants.Stage { return constants.StageCleaning }

func (c *CleanStage) Run(_ context.Context, st state.PipelineState) (state.PipelineState, error) {
	raw := st.TextContent.RawText
	// Unreachable if extraction's postcondition held; defensive only.
	if strings.TrimSpace(raw) == "" {
		return st, common.NewStageError(constants.StageCleaning, "no text to clean", nil)
	}

	cleaned := Normalize(raw)
	removed := len(raw) - len(cleaned)
	pct := 0.0
	if len(raw) > 0 {
		pct = float64(removed) / float64(len(raw)) * 100
	}

	st.TextContent.CleanedText = cleaned
	st.SetDebug(debugCharsPruned, removed)

	c.Logger.Info("cleaning ok",
		"job_id", st.JobID,
		"chars_removed", removed,
		"removal_pct", fmt.Sprintf("%.1f", pct),
		"final_len", len(cleaned),
	)
	st.AddMessage(fmt.Sprintf("text cleaned: -%d characters (%.1f%%)", removed, pct))

	if err := st.AdvanceStage(constants.StageLLM); err != nil {
		return st, common.NewStageError(constants.StageCleaning, "advance stage", err)
	}
	return st, nil
}

// Normalize is the pure cleaning function: uppercase, strip non-printable
// runes, collapse horizontal whitespace, squeeze blank-line runs.
func Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == ' ' {
			return r
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	s = reSpaces.ReplaceAllString(s, " ")
	s = reNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
