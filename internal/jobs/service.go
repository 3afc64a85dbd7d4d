// Package jobs exposes the job lifecycle API: submit a document, poll its
// status, fetch the result. It owns the background execution of pipeline
// runs; the stages themselves know nothing about scheduling.
package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
	"github.com/factura-labs/invoice-pipeline/internal/pipeline"
	"github.com/factura-labs/invoice-pipeline/internal/registry"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// StatusInfo is the polling payload.
type StatusInfo struct {
	JobID  uuid.UUID           `json:"job_id"`
	Status constants.JobStatus `json:"status"`
	Stage  constants.Stage     `json:"stage"`
}

// Result is the terminal deliverable for a COMPLETED job.
type Result struct {
	JobID         uuid.UUID             `json:"job_id"`
	Filename      string                `json:"filename"`
	ExtractedData *entity.InvoiceFields `json:"extracted_data"`
	Metrics       state.Metrics         `json:"metrics"`
	Quality       state.Quality         `json:"quality"`
}

// Summary is one row of the job listing.
type Summary struct {
	JobID     uuid.UUID           `json:"job_id"`
	Status    constants.JobStatus `json:"status"`
	Stage     constants.Stage     `json:"stage"`
	Filename  string              `json:"filename"`
	CreatedAt time.Time           `json:"created_at"`
	Error     string              `json:"error,omitempty"`
}

// Service wires the registry, the orchestrator, and the worker queue.
type Service struct {
	store         registry.Store
	orch          *pipeline.Orchestrator
	queue         *Queue
	logger        *slog.Logger
	removeUploads bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRemoveUploads deletes the uploaded temp file once its job reaches a
// terminal state. The HTTP server enables this; the CLI does not.
func WithRemoveUploads() ServiceOption {
	return func(s *Service) { s.removeUploads = true }
}

func NewService(store registry.Store, orch *pipeline.Orchestrator, logger *slog.Logger, opts []ServiceOption, qopts ...QueueOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, orch: orch, logger: logger}
	for _, o := range opts {
		o(s)
	}
	s.queue = newQueue(s.run, logger, qopts...)
	return s
}

// Submit registers a new PENDING job for the file and schedules the
// pipeline run without blocking. Re-submitting the same file always
// produces a new, independent job.
func (s *Service) Submit(ctx context.Context, filePath, filename string) (StatusInfo, error) {
	st := state.New(uuid.New(), filePath, filename, 0)
	if err := st.Validate(); err != nil {
		return StatusInfo{}, common.WrapError(common.ErrInvalidInput, err.Error())
	}
	if err := s.store.Put(ctx, st); err != nil {
		return StatusInfo{}, common.WrapError(err, "store initial state")
	}
	s.queue.Enqueue(st)
	s.logger.Info("job submitted", "job_id", st.JobID, "filename", filename)
	return StatusInfo{JobID: st.JobID, Status: st.Control.Status, Stage: st.Control.Stage}, nil
}

// run executes one pipeline run on a queue worker.
func (s *Service) run(ctx context.Context, st state.PipelineState) {
	final := s.orch.Run(ctx, st)
	if s.removeUploads {
		if err := os.Remove(final.DocumentInfo.FilePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove uploaded file",
				"job_id", final.JobID, "path", final.DocumentInfo.FilePath, "error", err)
		}
	}
}

// Status returns the latest checkpoint's status fields.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (StatusInfo, error) {
	st, err := s.store.Get(ctx, jobID)
	if err != nil {
		return StatusInfo{}, err
	}
	return StatusInfo{JobID: st.JobID, Status: st.Control.Status, Stage: st.Control.Stage}, nil
}

// Result returns the extracted data for a COMPLETED job. Unknown IDs are
// not-found; PENDING/PROCESSING is not-ready; FAILED carries the recorded
// reason as a typed error.
func (s *Service) Result(ctx context.Context, jobID uuid.UUID) (Result, error) {
	st, err := s.store.Get(ctx, jobID)
	if err != nil {
		return Result{}, err
	}
	switch st.Control.Status {
	case constants.StatusCompleted:
		return Result{
			JobID:         st.JobID,
			Filename:      st.DocumentInfo.Filename,
			ExtractedData: st.ExtractedData,
			Metrics:       st.Metrics,
			Quality:       st.Quality,
		}, nil
	case constants.StatusFailed:
		return Result{}, &common.JobFailedError{Reason: st.ErrorReason()}
	default:
		return Result{}, common.ErrJobNotReady
	}
}

// List returns recent jobs, most recent first.
func (s *Service) List(ctx context.Context, limit int) ([]Summary, error) {
	states, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(states))
	for _, st := range states {
		sum := Summary{
			JobID:     st.JobID,
			Status:    st.Control.Status,
			Stage:     st.Control.Stage,
			Filename:  st.DocumentInfo.Filename,
			CreatedAt: st.CreatedAt,
		}
		if st.Control.Status == constants.StatusFailed {
			sum.Error = st.ErrorReason()
		}
		out = append(out, sum)
	}
	return out, nil
}

// Delete removes a job from the registry.
func (s *Service) Delete(ctx context.Context, jobID uuid.UUID) error {
	return s.store.Delete(ctx, jobID)
}

// Shutdown drains the worker queue, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) {
	s.queue.Shutdown(ctx)
}
