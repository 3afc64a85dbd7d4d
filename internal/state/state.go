// Package state holds the single mutable record threaded through every
// pipeline stage. One PipelineState exists per job; the orchestrator
// goroutine owns it exclusively for the duration of the run and the
// registry only ever stores deep copies.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

// DocumentInfo is set once at submit time and immutable afterwards.
type DocumentInfo struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
}

// TextContent carries the intermediate text between stages.
type TextContent struct {
	RawText     string `json:"raw_text,omitempty"`
	CleanedText string `json:"cleaned_text,omitempty"`
}

// ProcessingControl is advanced by the orchestrator around each stage.
type ProcessingControl struct {
	Stage  constants.Stage     `json:"processing_stage"`
	Status constants.JobStatus `json:"status"`
}

// Metrics is filled in by the LLM stage only.
type Metrics struct {
	TokensUsed     int     `json:"tokens_used"`
	ProcessingTime float64 `json:"processing_time"` // seconds
	CostEstimate   float64 `json:"cost_estimate"`   // USD
	LLMModel       string  `json:"llm_model,omitempty"`
}

// Quality holds the derived scores computed from the parsed result.
type Quality struct {
	ConfidenceScore   float64 `json:"confidence_score"`
	CompletenessScore float64 `json:"completeness_score"`
}

// LogData is append-only across all stages; never cleared mid-run.
type LogData struct {
	Messages  []string       `json:"messages,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	DebugInfo map[string]any `json:"debug_info,omitempty"`
}

// PipelineState is the root entity for one invoice-processing job.
type PipelineState struct {
	JobID         uuid.UUID             `json:"job_id"`
	DocumentInfo  DocumentInfo          `json:"document_info"`
	TextContent   TextContent           `json:"text_content"`
	Control       ProcessingControl     `json:"processing_control"`
	Metrics       Metrics               `json:"metrics"`
	Quality       Quality               `json:"quality"`
	Log           LogData               `json:"logging"`
	ExtractedData *entity.InvoiceFields `json:"extracted_data,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// New creates the initial PENDING state for a freshly submitted document.
func New(jobID uuid.UUID, filePath, filename string, fileSize int64) PipelineState {
	now := time.Now().UTC()
	return PipelineState{
		JobID: jobID,
		DocumentInfo: DocumentInfo{
			FilePath: filePath,
			Filename: filename,
			FileSize: fileSize,
		},
		Control: ProcessingControl{
			Stage:  constants.StageIngestion,
			Status: constants.StatusPending,
		},
		Log:       LogData{DebugInfo: map[string]any{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate performs structural validation of the state.
func (s *PipelineState) Validate() error {
	if s.JobID == uuid.Nil {
		return fmt.Errorf("job id is required")
	}
	if s.DocumentInfo.FileSize < 0 {
		return fmt.Errorf("file size must not be negative")
	}
	if !s.Control.Status.IsValid() {
		return fmt.Errorf("invalid status %q", s.Control.Status)
	}
	if constants.StageIndex(s.Control.Stage) < 0 {
		return fmt.Errorf("invalid stage %q", s.Control.Stage)
	}
	return nil
}

// Terminal reports whether the state may no longer be mutated.
func (s *PipelineState) Terminal() bool {
	return s.Control.Status.IsTerminal()
}

// AdvanceStage moves the state forward to the given stage. Rewinding or
// touching a terminal state is a programming error and is rejected.
func (s *PipelineState) AdvanceStage(stage constants.Stage) error {
	if s.Terminal() {
		return fmt.Errorf("state is terminal (%s)", s.Control.Status)
	}
	from, to := constants.StageIndex(s.Control.Stage), constants.StageIndex(stage)
	if to < 0 {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if to < from {
		return fmt.Errorf("stage cannot rewind from %s to %s", s.Control.Stage, stage)
	}
	s.Control.Stage = stage
	s.touch()
	s.AddMessage(fmt.Sprintf("entering stage %s", stage))
	return nil
}

// MarkProcessing flips a PENDING state to PROCESSING.
func (s *PipelineState) MarkProcessing() {
	if s.Terminal() {
		return
	}
	s.Control.Status = constants.StatusProcessing
	s.touch()
}

// MarkCompleted finalizes the state after a successful LLM stage.
func (s *PipelineState) MarkCompleted() {
	if s.Terminal() {
		return
	}
	s.Control.Status = constants.StatusCompleted
	s.Control.Stage = constants.StageDone
	s.touch()
}

// MarkFailed records the error and moves the state to its terminal FAILED
// status. The message lands in Log.Errors for the result query to surface.
func (s *PipelineState) MarkFailed(msg string) {
	if s.Terminal() {
		return
	}
	s.Log.Errors = append(s.Log.Errors, stamp(msg))
	s.Control.Status = constants.StatusFailed
	s.touch()
}

// AddMessage appends a timestamped progress message.
func (s *PipelineState) AddMessage(msg string) {
	s.Log.Messages = append(s.Log.Messages, stamp(msg))
}

// AddWarning appends a timestamped warning.
func (s *PipelineState) AddWarning(msg string) {
	s.Log.Warnings = append(s.Log.Warnings, stamp(msg))
}

// SetDebug records a key/value pair into the debug map.
func (s *PipelineState) SetDebug(key string, value any) {
	if s.Log.DebugInfo == nil {
		s.Log.DebugInfo = map[string]any{}
	}
	s.Log.DebugInfo[key] = value
}

// Debug returns the debug value for key, if present.
func (s *PipelineState) Debug(key string) (any, bool) {
	v, ok := s.Log.DebugInfo[key]
	return v, ok
}

// DebugString returns the debug value for key as a string.
func (s *PipelineState) DebugString(key string) string {
	if v, ok := s.Log.DebugInfo[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// RecordUsage accumulates token usage, wall-clock time, and the estimated
// cost (gpt-4o-mini input pricing) into the metrics block.
func (s *PipelineState) RecordUsage(tokens int, elapsed time.Duration, model string) {
	s.Metrics.TokensUsed += tokens
	s.Metrics.ProcessingTime += elapsed.Seconds()
	s.Metrics.CostEstimate += float64(tokens) / 1000 * 0.00015
	if model != "" {
		s.Metrics.LLMModel = model
	}
	s.touch()
}

// ErrorReason returns the first recorded error message, or "" if none.
func (s *PipelineState) ErrorReason() string {
	if len(s.Log.Errors) == 0 {
		return ""
	}
	return s.Log.Errors[0]
}

// Clone returns a deep copy. The registry stores clones so a concurrent
// reader can never observe a torn checkpoint.
func (s PipelineState) Clone() PipelineState {
	out := s
	out.Log.Messages = append([]string(nil), s.Log.Messages...)
	out.Log.Errors = append([]string(nil), s.Log.Errors...)
	out.Log.Warnings = append([]string(nil), s.Log.Warnings...)
	if s.Log.DebugInfo != nil {
		out.Log.DebugInfo = make(map[string]any, len(s.Log.DebugInfo))
		for k, v := range s.Log.DebugInfo {
			out.Log.DebugInfo[k] = v
		}
	}
	if s.ExtractedData != nil {
		fields := *s.ExtractedData
		fields.Items = append([]entity.InvoiceItem(nil), s.ExtractedData.Items...)
		if s.ExtractedData.Detraccion != nil {
			det := *s.ExtractedData.Detraccion
			fields.Detraccion = &det
		}
		out.ExtractedData = &fields
	}
	return out
}

func (s *PipelineState) touch() {
	s.UpdatedAt = time.Now().UTC()
}

func stamp(msg string) string {
	return fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), msg)
}
