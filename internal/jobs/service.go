// SPDX-License-Identifier: MIT

// Package jobs orchestrates durable work items: admission (conflict
// detection, validation), transactional handoff to the queue, schedule
// estimation, and recovery of jobs whose submission was interrupted.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursesmith/coursesmith/internal/conflict"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/estimate"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/readiness"
	"github.com/coursesmith/coursesmith/internal/store"
)

// Queue function names.
const (
	FuncIngestEntry       = "ingest_entry"
	FuncGenerateStructure = "generate_structure"
)

// avgDurationSample is how many recent completions feed the estimate.
const avgDurationSample = 20

// TaskArgs is the queue payload: everything else lives on the job row.
type TaskArgs struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
}

// IngestParams is the input_params payload of an ingest job.
type IngestParams struct {
	EntryID string `json:"entry_id"`
}

// GenerationParams is the input_params payload of a generation job.
type GenerationParams struct {
	NodeID        string               `json:"node_id,omitempty"`
	Mode          model.GenerationMode `json:"mode"`
	PromptVersion string               `json:"prompt_version,omitempty"`
}

// Service admits and submits jobs.
type Service struct {
	Jobs      *store.JobRepo
	Materials *store.MaterialRepo
	Queue     *queue.Queue
	Estimator *estimate.Estimator
}

// IngestRequest asks for one entry to be processed.
type IngestRequest struct {
	TenantID string
	CourseID string
	EntryID  string
	Priority model.JobPriority
	// DependsOn optionally chains this ingest after other jobs.
	DependsOn []string
}

// GenerationRequest asks for a structure generation over a scope.
type GenerationRequest struct {
	TenantID      string
	CourseID      string
	NodeID        string // empty means whole course
	Mode          model.GenerationMode
	Priority      model.JobPriority
	PromptVersion string
}

// RequestIngest creates and submits an ingest job.
func (s *Service) RequestIngest(ctx context.Context, req IngestRequest) (*model.Job, error) {
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	params, err := json.Marshal(IngestParams{EntryID: req.EntryID})
	if err != nil {
		return nil, err
	}
	j := &model.Job{
		TenantID:    req.TenantID,
		CourseID:    req.CourseID,
		Type:        model.JobIngest,
		Priority:    req.Priority,
		InputParams: params,
		DependsOn:   req.DependsOn,
	}
	if err := s.submit(ctx, j, FuncIngestEntry); err != nil {
		return nil, err
	}
	return j, nil
}

// RequestGeneration validates the scope, refuses overlapping work and
// scopes with blocking entries, then creates, submits and estimates a
// generation job.
func (s *Service) RequestGeneration(ctx context.Context, req GenerationRequest) (*model.Job, *estimate.Estimate, error) {
	if !req.Mode.Valid() {
		return nil, nil, &fault.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown generation mode %q", req.Mode)}
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}

	if req.NodeID != "" {
		if _, err := s.Materials.NodeByID(ctx, req.CourseID, req.NodeID); err != nil {
			return nil, nil, err
		}
	}

	activeJobs, err := s.Jobs.ActiveGenerationJobs(ctx, req.CourseID)
	if err != nil {
		return nil, nil, err
	}
	active := make([]conflict.ActiveJob, 0, len(activeJobs))
	for _, aj := range activeJobs {
		active = append(active, conflict.ActiveJob{JobID: aj.ID, NodeID: aj.NodeID})
	}
	if c, err := conflict.Detect(ctx, req.NodeID, active, s.Materials); err != nil {
		return nil, nil, err
	} else if c != nil {
		return nil, nil, c
	}

	// Refuse at admission when the scope holds blocking entries: no job row,
	// nothing on the queue. The pipeline re-checks before invoking models.
	checker := readiness.New(s.Materials)
	var ready bool
	var stale []fault.StaleEntry
	if req.NodeID == "" {
		ready, stale, err = checker.CheckCourse(ctx, req.CourseID)
	} else {
		ready, stale, err = checker.CheckSubtree(ctx, req.CourseID, req.NodeID)
	}
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		return nil, nil, &fault.NoReadyMaterials{Stale: stale}
	}

	params, err := json.Marshal(GenerationParams{
		NodeID:        req.NodeID,
		Mode:          req.Mode,
		PromptVersion: req.PromptVersion,
	})
	if err != nil {
		return nil, nil, err
	}
	j := &model.Job{
		TenantID:    req.TenantID,
		CourseID:    req.CourseID,
		NodeID:      req.NodeID,
		Type:        model.JobGenerateStructure,
		Priority:    req.Priority,
		InputParams: params,
	}
	if err := s.submit(ctx, j, FuncGenerateStructure); err != nil {
		return nil, nil, err
	}

	est, err := s.estimateFor(ctx, j)
	if err != nil {
		// estimation is advisory: the job is already queued
		log.WithComponentFromContext(ctx, "jobs").Warn().Err(err).
			Str(log.FieldJobID, j.ID).Msg("estimate failed")
		return j, nil, nil
	}
	return j, est, nil
}

// submit persists the row first, then hands it to the queue and backfills
// the external handle. A crash or broker outage between the two steps
// leaves a queued row with an empty handle for the reconciler to pick up.
func (s *Service) submit(ctx context.Context, j *model.Job, function string) error {
	if err := s.Jobs.Create(ctx, j); err != nil {
		return err
	}
	logger := log.WithComponentFromContext(ctx, "jobs")

	handle, err := s.Queue.Enqueue(ctx, function, TaskArgs{JobID: j.ID, TenantID: j.TenantID})
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldJobID, j.ID).
			Msg("queue submission failed, leaving job for reconciler")
		return nil
	}
	if err := s.Jobs.SetArqJobID(ctx, j.ID, handle); err != nil {
		logger.Warn().Err(err).Str(log.FieldJobID, j.ID).
			Msg("queue handle backfill failed, leaving job for reconciler")
		return nil
	}
	j.ArqJobID = handle

	logger.Info().
		Str(log.FieldEvent, "job.submitted").
		Str(log.FieldJobID, j.ID).
		Str("job_type", string(j.Type)).
		Str("priority", string(j.Priority)).
		Msg("job submitted")
	return nil
}

// estimateFor predicts the schedule and stamps it on the row.
func (s *Service) estimateFor(ctx context.Context, j *model.Job) (*estimate.Estimate, error) {
	depth, err := s.Jobs.QueueDepth(ctx, j.QueuedAt)
	if err != nil {
		return nil, err
	}
	avg, err := s.Jobs.AvgDuration(ctx, j.Type, avgDurationSample)
	if err != nil {
		return nil, err
	}
	est, err := s.Estimator.Predict(time.Now().UTC(), depth, avg)
	if err != nil {
		return nil, err
	}
	if err := s.Jobs.SetEstimate(ctx, j.ID, est.EstimatedComplete); err != nil {
		return nil, err
	}
	j.EstimatedAt = &est.EstimatedComplete
	return est, nil
}

// Cancel moves a queued job to cancelled. Active jobs cannot be cancelled;
// the transition machine refuses.
func (s *Service) Cancel(ctx context.Context, tenantID, jobID string) (*model.Job, error) {
	return s.Jobs.Transition(ctx, tenantID, jobID, model.JobCancelled, "")
}

// Retry re-queues a failed job and resubmits it. Only the failed -> queued
// edge exists, so anything else is refused by the machine.
func (s *Service) Retry(ctx context.Context, tenantID, jobID string) (*model.Job, error) {
	j, err := s.Jobs.Transition(ctx, tenantID, jobID, model.JobQueued, "")
	if err != nil {
		return nil, err
	}

	function := FuncIngestEntry
	if j.Type == model.JobGenerateStructure {
		function = FuncGenerateStructure
	}
	handle, err := s.Queue.Enqueue(ctx, function, TaskArgs{JobID: j.ID, TenantID: j.TenantID})
	if err != nil {
		log.WithComponentFromContext(ctx, "jobs").Warn().Err(err).
			Str(log.FieldJobID, j.ID).Msg("retry submission failed, leaving job for reconciler")
		return j, nil
	}
	if err := s.Jobs.SetArqJobID(ctx, j.ID, handle); err != nil {
		return j, err
	}
	j.ArqJobID = handle
	return j, nil
}
