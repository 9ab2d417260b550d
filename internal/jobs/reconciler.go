// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/store"
)

var orphansResubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "coursesmith",
	Name:      "jobs_orphans_resubmitted_total",
	Help:      "Queued jobs without a queue handle that were re-submitted",
})

// Reconciler periodically sweeps for jobs whose queue submission was
// interrupted (queued status, empty handle) and re-submits them.
type Reconciler struct {
	Jobs     *store.JobRepo
	Queue    *queue.Queue
	Interval time.Duration
	// MinAge keeps the sweep from racing a submission in progress.
	MinAge time.Duration
}

// NewReconciler creates a reconciler with sane defaults.
func NewReconciler(jobs *store.JobRepo, q *queue.Queue) *Reconciler {
	return &Reconciler{
		Jobs:     jobs,
		Queue:    q,
		Interval: time.Minute,
		MinAge:   5 * time.Minute,
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				log.WithComponent("jobs").Warn().Err(err).Msg("reconciler sweep failed")
			}
		}
	}
}

// SweepOnce re-submits every orphaned job it finds.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	orphans, err := r.Jobs.Orphans(ctx, r.MinAge)
	if err != nil {
		return err
	}
	logger := log.WithComponent("jobs")
	for _, j := range orphans {
		function := FuncIngestEntry
		if j.Type == model.JobGenerateStructure {
			function = FuncGenerateStructure
		}
		handle, err := r.Queue.Enqueue(ctx, function, TaskArgs{JobID: j.ID, TenantID: j.TenantID})
		if err != nil {
			logger.Warn().Err(err).Str(log.FieldJobID, j.ID).Msg("orphan resubmission failed")
			continue
		}
		if err := r.Jobs.SetArqJobID(ctx, j.ID, handle); err != nil {
			logger.Warn().Err(err).Str(log.FieldJobID, j.ID).Msg("orphan handle backfill failed")
			continue
		}
		orphansResubmitted.Inc()
		logger.Info().
			Str(log.FieldEvent, "job.reconciled").
			Str(log.FieldJobID, j.ID).
			Msg("orphaned job re-submitted")
	}
	return nil
}
