// SPDX-License-Identifier: MIT

package model

import (
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

// JobType names the two durable work item kinds.
type JobType string

const (
	JobIngest            JobType = "ingest"
	JobGenerateStructure JobType = "generate_structure"
)

// JobPriority decides whether the work window applies.
type JobPriority string

const (
	PriorityNormal    JobPriority = "normal"
	PriorityImmediate JobPriority = "immediate"
)

// JobStatus is the job lifecycle state.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobActive    JobStatus = "active"
	JobComplete  JobStatus = "complete"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions other
// than the administrator retry edge.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobComplete, JobCancelled, JobFailed:
		return true
	}
	return false
}

// Job is a durable work item.
type Job struct {
	ID               string
	TenantID         string
	CourseID         string
	NodeID           string // empty means whole course scope
	Type             JobType
	Priority         JobPriority
	Status           JobStatus
	ArqJobID         string // external queue handle, empty until submitted
	InputParams      []byte // structured payload, JSON
	ResultMaterialID string
	ResultSnapshotID string
	DependsOn        []string
	ErrorMessage     string
	QueuedAt         time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	EstimatedAt      *time.Time
}

// jobTransitions is the closed set of allowed job status edges.
var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:    {JobActive, JobCancelled},
	JobActive:    {JobComplete, JobFailed},
	JobComplete:  {},
	JobCancelled: {},
	JobFailed:    {JobQueued}, // administrator-initiated retry
}

// JobTransitionAllowed reports whether from -> to is a legal edge.
func JobTransitionAllowed(from, to JobStatus) bool {
	for _, t := range jobTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ApplyJobTransition validates and applies a status change on the job,
// honoring the side-effects of each edge. Completion requires exactly one of
// the result references to be set beforehand.
func ApplyJobTransition(j *Job, to JobStatus, now time.Time) error {
	if !JobTransitionAllowed(j.Status, to) {
		return &fault.TransitionError{Entity: "job", From: string(j.Status), To: string(to)}
	}
	switch to {
	case JobActive:
		t := now
		j.StartedAt = &t
	case JobComplete:
		if (j.ResultMaterialID == "") == (j.ResultSnapshotID == "") {
			return &fault.TransitionError{Entity: "job", From: string(j.Status), To: string(to)}
		}
		t := now
		j.CompletedAt = &t
	case JobFailed:
		t := now
		j.CompletedAt = &t
	case JobQueued: // retry resets the attempt bookkeeping
		j.StartedAt = nil
		j.CompletedAt = nil
		j.ErrorMessage = ""
		j.ArqJobID = ""
	}
	j.Status = to
	return nil
}

// FailJob applies the failed edge and records the message.
func FailJob(j *Job, msg string, now time.Time) error {
	if err := ApplyJobTransition(j, JobFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = msg
	return nil
}
