package constants

// JobStatus is the canonical client-facing status for a pipeline job.
type JobStatus string

// Stable values (stored verbatim in checkpoints and returned by the API).
const (
	StatusPending    JobStatus = "PENDING"    // accepted, not started
	StatusProcessing JobStatus = "PROCESSING" // pipeline running
	StatusCompleted  JobStatus = "COMPLETED"  // terminal success
	StatusFailed     JobStatus = "FAILED"     // terminal failure
)

// IsValid reports whether s is one of the four canonical statuses.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is COMPLETED or FAILED.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage identifies one step of the processing pipeline.
type Stage string

const (
	StageIngestion  Stage = "INGESTION"
	StageExtraction Stage = "EXTRACTION"
	StageCleaning   Stage = "CLEANING"
	StageLLM        Stage = "LLM"
	StageDone       Stage = "DONE"
)

// stageOrder fixes the linear progression of the pipeline.
var stageOrder = map[Stage]int{
	StageIngestion:  0,
	StageExtraction: 1,
	StageCleaning:   2,
	StageLLM:        3,
	StageDone:       4,
}

// StageIndex returns the position of s in the pipeline, or -1 if unknown.
func StageIndex(s Stage) int {
	if i, ok := stageOrder[s]; ok {
		return i
	}
	return -1
}
