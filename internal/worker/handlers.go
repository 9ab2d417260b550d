// SPDX-License-Identifier: MIT

// Package worker binds queue task functions to the ingest and generation
// pipelines and drives job rows through their lifecycle.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/generate"
	"github.com/coursesmith/coursesmith/internal/ingest"
	"github.com/coursesmith/coursesmith/internal/jobs"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/workwindow"
)

// DefaultDependencyRetry is how long a task waits before re-checking
// unfinished dependencies.
const DefaultDependencyRetry = 30 * time.Second

// Handlers executes the registered task functions.
type Handlers struct {
	Jobs     *store.JobRepo
	Ingest   *ingest.Orchestrator
	Generate *generate.Pipeline
	Window   workwindow.Window
	// DependencyRetry overrides DefaultDependencyRetry when positive.
	DependencyRetry time.Duration
}

// Register binds the task functions onto a queue worker.
func (h *Handlers) Register(w *queue.Worker) {
	w.Register(jobs.FuncIngestEntry, h.HandleIngest)
	w.Register(jobs.FuncGenerateStructure, h.HandleGenerate)
}

// HandleIngest processes one material entry.
func (h *Handlers) HandleIngest(ctx context.Context, args json.RawMessage) error {
	job, ctx, err := h.admit(ctx, args)
	if err != nil || job == nil {
		return err
	}

	var params jobs.IngestParams
	if err := json.Unmarshal(job.InputParams, &params); err != nil {
		return h.fail(ctx, job, fmt.Errorf("decode input params: %w", err))
	}

	if err := h.Ingest.ProcessEntry(ctx, job.TenantID, params.EntryID); err != nil {
		return h.fail(ctx, job, err)
	}
	if _, err := h.Jobs.SetResult(ctx, job.TenantID, job.ID, params.EntryID, ""); err != nil {
		return h.fail(ctx, job, err)
	}
	return h.complete(ctx, job)
}

// HandleGenerate runs one structure generation.
func (h *Handlers) HandleGenerate(ctx context.Context, args json.RawMessage) error {
	job, ctx, err := h.admit(ctx, args)
	if err != nil || job == nil {
		return err
	}

	var params jobs.GenerationParams
	if err := json.Unmarshal(job.InputParams, &params); err != nil {
		return h.fail(ctx, job, fmt.Errorf("decode input params: %w", err))
	}

	snap, err := h.Generate.Run(ctx, generate.Request{
		TenantID:      job.TenantID,
		CourseID:      job.CourseID,
		NodeID:        params.NodeID,
		Mode:          params.Mode,
		PromptVersion: params.PromptVersion,
	})
	if err != nil {
		return h.fail(ctx, job, err)
	}
	if _, err := h.Jobs.SetResult(ctx, job.TenantID, job.ID, "", snap.ID); err != nil {
		return h.fail(ctx, job, err)
	}
	return h.complete(ctx, job)
}

// admit loads the job, applies the priority gate and the dependency gate and
// moves the row to active. A nil job with nil error means the task is a
// re-delivery of finished work and there is nothing to do.
func (h *Handlers) admit(ctx context.Context, args json.RawMessage) (*model.Job, context.Context, error) {
	var ta jobs.TaskArgs
	if err := json.Unmarshal(args, &ta); err != nil {
		return nil, ctx, fmt.Errorf("decode task args: %w", err)
	}
	ctx = log.ContextWithTenantID(ctx, ta.TenantID)

	job, err := h.Jobs.ByID(ctx, ta.TenantID, ta.JobID)
	if err != nil {
		return nil, ctx, err
	}
	ctx = log.ContextWithCourseID(ctx, job.CourseID)
	logger := log.WithComponentFromContext(ctx, "worker")

	// at-least-once delivery: a finished or cancelled job is not re-run
	if job.Status.IsTerminal() {
		logger.Info().Str(log.FieldJobID, job.ID).
			Str("status", string(job.Status)).Msg("skipping terminal job")
		return nil, ctx, nil
	}

	// the gates run before any state transition so a defer leaves the row
	// queued and the delivery attempt unconsumed
	if err := workwindow.CheckWorkWindow(h.Window, job.Priority, time.Now().UTC()); err != nil {
		return nil, ctx, err
	}

	if len(job.DependsOn) > 0 {
		states, err := h.Jobs.DependencyStates(ctx, job)
		if err != nil {
			return nil, ctx, err
		}
		for depID, status := range states {
			switch status {
			case model.JobComplete:
			case model.JobFailed, model.JobCancelled:
				dep := &fault.DependencyFailed{JobID: job.ID, DependencyID: depID, Status: string(status)}
				return nil, ctx, h.fail(ctx, job, dep)
			default:
				retry := h.DependencyRetry
				if retry <= 0 {
					retry = DefaultDependencyRetry
				}
				return nil, ctx, &fault.Defer{Seconds: int(retry / time.Second)}
			}
		}
	}

	job, err = h.Jobs.Transition(ctx, ta.TenantID, job.ID, model.JobActive, "")
	if err != nil {
		return nil, ctx, err
	}
	return job, ctx, nil
}

// fail moves the job to failed with the cause. Failures are terminal at the
// queue level, so the task itself reports success; retries are an
// administrator action.
func (h *Handlers) fail(ctx context.Context, job *model.Job, cause error) error {
	logger := log.WithComponentFromContext(ctx, "worker")
	logger.Error().Err(cause).
		Str(log.FieldEvent, "job.failed").
		Str(log.FieldJobID, job.ID).
		Msg("job failed")

	if job.Status == model.JobQueued {
		// a dependency failure strikes before activation
		if _, err := h.Jobs.Transition(ctx, job.TenantID, job.ID, model.JobActive, ""); err != nil {
			return err
		}
	}
	_, err := h.Jobs.Transition(ctx, job.TenantID, job.ID, model.JobFailed, cause.Error())
	return err
}

func (h *Handlers) complete(ctx context.Context, job *model.Job) error {
	if _, err := h.Jobs.Transition(ctx, job.TenantID, job.ID, model.JobComplete, ""); err != nil {
		return err
	}
	log.WithComponentFromContext(ctx, "worker").Info().
		Str(log.FieldEvent, "job.completed").
		Str(log.FieldJobID, job.ID).
		Msg("job completed")
	return nil
}
