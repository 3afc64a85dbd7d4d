// Package pipeline implements the four-stage invoice pipeline and its
// orchestrator. Stages are synchronous and scheduling-free; the jobs
// package decides where the run executes.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/registry"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

// checkpointTimeout bounds one registry write independently of the job
// deadline. A run that failed because its context expired must still get
// its terminal FAILED checkpoint written, or pollers see PROCESSING forever.
const checkpointTimeout = 5 * time.Second

// Stage is one transformation unit. Run consumes a state and returns the
// updated one; failures are typed stage errors.
type Stage interface {
	Name() constants.Stage
	Run(ctx context.Context, st state.PipelineState) (state.PipelineState, error)
}

// Orchestrator executes the stages in fixed sequence, checkpoints the whole
// state after each stage, and stops at the first failure. The chain is
// strictly linear: no branching, no retries.
type Orchestrator struct {
	stages []Stage
	store  registry.Store
	logger *slog.Logger
}

func NewOrchestrator(store registry.Store, logger *slog.Logger, stages ...Stage) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{stages: stages, store: store, logger: logger}
}

// Run drives st through every stage. Stage errors are caught here, exactly
// once: recorded into the job log, turned into a terminal FAILED status,
// and never re-raised; a pipeline run must not crash the host process.
func (o *Orchestrator) Run(ctx context.Context, st state.PipelineState) state.PipelineState {
	st.MarkProcessing()
	o.checkpoint(ctx, st)

	for _, stage := range o.stages {
		next, err := stage.Run(ctx, st)
		if err != nil {
			st = next
			st.MarkFailed(err.Error())
			o.logger.Error("pipeline stage failed",
				"job_id", st.JobID,
				"stage", stage.Name(),
				"error", err,
			)
			o.checkpoint(ctx, st)
			return st
		}
		st = next
		o.checkpoint(ctx, st)
		o.logger.Debug("pipeline stage ok", "job_id", st.JobID, "stage", stage.Name())
	}

	o.logger.Info("pipeline completed",
		"job_id", st.JobID,
		"status", st.Control.Status,
		"tokens", st.Metrics.TokensUsed,
	)
	return st
}

func (o *Orchestrator) checkpoint(ctx context.Context, st state.PipelineState) {
	if o.store == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkpointTimeout)
	defer cancel()
	if err := o.store.Put(wctx, st); err != nil {
		o.logger.Error("checkpoint write failed", "job_id", st.JobID, "error", err)
	}
}
