// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// JobRepo persists durable work items. Status changes go through the domain
// state machine; writing an illegal edge is impossible through this API.
type JobRepo struct {
	db *sql.DB
}

const jobColumns = `id, tenant_id, course_id, node_id, type, priority, status,
	arq_job_id, input_params, result_material_id, result_snapshot_id, depends_on,
	error_message, queued_at, started_at, completed_at, estimated_at`

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var j model.Job
	var dependsOn string
	var started, completed, estimated sql.NullTime
	err := row.Scan(&j.ID, &j.TenantID, &j.CourseID, &j.NodeID, &j.Type, &j.Priority,
		&j.Status, &j.ArqJobID, &j.InputParams, &j.ResultMaterialID, &j.ResultSnapshotID,
		&dependsOn, &j.ErrorMessage, &j.QueuedAt, &started, &completed, &estimated)
	if err != nil {
		return nil, err
	}
	if j.DependsOn, err = parseList(dependsOn); err != nil {
		return nil, err
	}
	j.StartedAt = timePtr(started)
	j.CompletedAt = timePtr(completed)
	j.EstimatedAt = timePtr(estimated)
	return &j, nil
}

// Create inserts a job in queued state.
func (r *JobRepo) Create(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = model.JobQueued
	}
	if j.QueuedAt.IsZero() {
		j.QueuedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs
			(id, tenant_id, course_id, node_id, type, priority, status, arq_job_id,
			 input_params, result_material_id, result_snapshot_id, depends_on,
			 error_message, queued_at, started_at, completed_at, estimated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.TenantID, j.CourseID, j.NodeID, j.Type, j.Priority, j.Status, j.ArqJobID,
		j.InputParams, j.ResultMaterialID, j.ResultSnapshotID, jsonList(j.DependsOn),
		j.ErrorMessage, j.QueuedAt, nullTime(j.StartedAt), nullTime(j.CompletedAt),
		nullTime(j.EstimatedAt))
	return err
}

// ByID returns one job, tenant-scoped.
func (r *JobRepo) ByID(ctx context.Context, tenantID, id string) (*model.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND tenant_id = ?`, id, tenantID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	return j, err
}

// Transition loads, validates the edge through the domain machine, and
// persists the mutated bookkeeping fields.
func (r *JobRepo) Transition(ctx context.Context, tenantID, jobID string, to model.JobStatus, errMsg string) (*model.Job, error) {
	j, err := r.ByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if to == model.JobFailed {
		err = model.FailJob(j, errMsg, now)
	} else {
		err = model.ApplyJobTransition(j, to, now)
	}
	if err != nil {
		return nil, err
	}
	return j, r.persist(ctx, j)
}

// SetResult stores the completion reference before the complete edge.
func (r *JobRepo) SetResult(ctx context.Context, tenantID, jobID, materialID, snapshotID string) (*model.Job, error) {
	j, err := r.ByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	j.ResultMaterialID = materialID
	j.ResultSnapshotID = snapshotID
	return j, r.persist(ctx, j)
}

// SetArqJobID backfills the external queue handle after submission.
func (r *JobRepo) SetArqJobID(ctx context.Context, jobID, arqJobID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET arq_job_id = ? WHERE id = ?`, arqJobID, jobID)
	return err
}

// SetEstimate stores the predicted completion instant.
func (r *JobRepo) SetEstimate(ctx context.Context, jobID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET estimated_at = ? WHERE id = ?`, at, jobID)
	return err
}

func (r *JobRepo) persist(ctx context.Context, j *model.Job) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, arq_job_id = ?, result_material_id = ?,
			result_snapshot_id = ?, error_message = ?, started_at = ?,
			completed_at = ?, estimated_at = ?
		WHERE id = ?`,
		j.Status, j.ArqJobID, j.ResultMaterialID, j.ResultSnapshotID, j.ErrorMessage,
		nullTime(j.StartedAt), nullTime(j.CompletedAt), nullTime(j.EstimatedAt), j.ID)
	return err
}

// ActiveGenerationJobs returns queued and active generate_structure jobs of a
// course, queue order. Conflict detection runs over this set.
func (r *JobRepo) ActiveGenerationJobs(ctx context.Context, courseID string) ([]*model.Job, error) {
	return r.query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE course_id = ? AND type = ? AND status IN (?, ?)
		ORDER BY queued_at`,
		courseID, model.JobGenerateStructure, model.JobQueued, model.JobActive)
}

// ListByCourse returns a course's jobs, newest first.
func (r *JobRepo) ListByCourse(ctx context.Context, tenantID, courseID string) ([]*model.Job, error) {
	return r.query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE tenant_id = ? AND course_id = ?
		ORDER BY queued_at DESC`, tenantID, courseID)
}

// QueueDepth counts jobs queued before the given instant.
func (r *JobRepo) QueueDepth(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = ? AND queued_at < ?`,
		model.JobQueued, before).Scan(&n)
	return n, err
}

// AvgDuration computes the mean active duration over the most recent
// completed jobs of a type. Zero means no history.
func (r *JobRepo) AvgDuration(ctx context.Context, jobType model.JobType, sample int) (time.Duration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT started_at, completed_at FROM jobs
		WHERE type = ? AND status = ? AND started_at IS NOT NULL AND completed_at IS NOT NULL
		ORDER BY completed_at DESC LIMIT ?`,
		jobType, model.JobComplete, sample)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var total time.Duration
	var n int
	for rows.Next() {
		var started, completed time.Time
		if err := rows.Scan(&started, &completed); err != nil {
			return 0, err
		}
		total += completed.Sub(started)
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return total / time.Duration(n), nil
}

// Orphans returns queued jobs that never received a queue handle and have
// been waiting longer than the threshold. The reconciler re-submits them.
func (r *JobRepo) Orphans(ctx context.Context, olderThan time.Duration) ([]*model.Job, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND arq_job_id = '' AND queued_at < ?
		ORDER BY queued_at`, model.JobQueued, cutoff)
}

// DependencyStates returns the status of every job the given job depends on.
// Missing dependencies count as failed.
func (r *JobRepo) DependencyStates(ctx context.Context, j *model.Job) (map[string]model.JobStatus, error) {
	out := make(map[string]model.JobStatus, len(j.DependsOn))
	for _, depID := range j.DependsOn {
		var status model.JobStatus
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM jobs WHERE id = ?`, depID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			out[depID] = model.JobFailed
			continue
		}
		if err != nil {
			return nil, err
		}
		out[depID] = status
	}
	return out, nil
}

func (r *JobRepo) query(ctx context.Context, q string, args ...any) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
