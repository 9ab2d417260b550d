// SPDX-License-Identifier: MIT

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

func TestJobTransitionTable_Closure(t *testing.T) {
	states := []JobStatus{JobQueued, JobActive, JobComplete, JobFailed, JobCancelled}

	allowed := map[JobStatus]map[JobStatus]bool{
		JobQueued: {JobActive: true, JobCancelled: true},
		JobActive: {JobComplete: true, JobFailed: true},
		JobFailed: {JobQueued: true},
	}

	for _, from := range states {
		for _, to := range states {
			want := allowed[from][to]
			require.Equal(t, want, JobTransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestApplyJobTransition_IllegalLeavesJobUnchanged(t *testing.T) {
	now := time.Now()
	j := &Job{Status: JobQueued}

	err := ApplyJobTransition(j, JobComplete, now)

	var trErr *fault.TransitionError
	require.ErrorAs(t, err, &trErr)
	require.Equal(t, JobQueued, j.Status)
	require.Nil(t, j.CompletedAt)
}

func TestApplyJobTransition_CompleteRequiresExactlyOneResult(t *testing.T) {
	now := time.Now()

	t.Run("no result", func(t *testing.T) {
		j := &Job{Status: JobActive}
		require.Error(t, ApplyJobTransition(j, JobComplete, now))
		require.Equal(t, JobActive, j.Status)
	})

	t.Run("both results", func(t *testing.T) {
		j := &Job{Status: JobActive, ResultMaterialID: "m1", ResultSnapshotID: "s1"}
		require.Error(t, ApplyJobTransition(j, JobComplete, now))
	})

	t.Run("material result", func(t *testing.T) {
		j := &Job{Status: JobActive, ResultMaterialID: "m1"}
		require.NoError(t, ApplyJobTransition(j, JobComplete, now))
		require.Equal(t, JobComplete, j.Status)
		require.NotNil(t, j.CompletedAt)
	})

	t.Run("snapshot result", func(t *testing.T) {
		j := &Job{Status: JobActive, ResultSnapshotID: "s1"}
		require.NoError(t, ApplyJobTransition(j, JobComplete, now))
	})
}

func TestFailJob_RecordsMessageAndCompletedAt(t *testing.T) {
	j := &Job{Status: JobActive}
	require.NoError(t, FailJob(j, "boom", time.Now()))
	require.Equal(t, JobFailed, j.Status)
	require.Equal(t, "boom", j.ErrorMessage)
	require.NotNil(t, j.CompletedAt)
}

func TestApplyJobTransition_RetryResetsBookkeeping(t *testing.T) {
	now := time.Now()
	j := &Job{Status: JobActive, ArqJobID: "q-1"}
	require.NoError(t, FailJob(j, "transient", now))

	require.NoError(t, ApplyJobTransition(j, JobQueued, now))
	require.Equal(t, JobQueued, j.Status)
	require.Empty(t, j.ErrorMessage)
	require.Empty(t, j.ArqJobID)
	require.Nil(t, j.StartedAt)
	require.Nil(t, j.CompletedAt)
}
