// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/log"
)

var (
	tasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursesmith",
			Name:      "queue_tasks_processed_total",
			Help:      "Tasks processed by function and outcome",
		},
		[]string{"function", "outcome"},
	)
	tasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coursesmith",
			Name:      "queue_tasks_in_flight",
			Help:      "Tasks currently executing",
		},
	)
)

// Defaults for worker tuning.
const (
	DefaultConcurrency = 4
	DefaultTaskTimeout = 1800 * time.Second
	pollInterval       = 1 * time.Second
)

// Func is a registered task handler.
type Func func(ctx context.Context, args json.RawMessage) error

// Worker consumes the ready list, promotes due deferred tasks, and
// dispatches to registered functions under a concurrency semaphore.
type Worker struct {
	rdb         *redis.Client
	funcs       map[string]Func
	sem         *semaphore.Weighted
	concurrency int64
	taskTimeout time.Duration
}

// WorkerOption customizes the worker.
type WorkerOption func(*Worker)

// WithConcurrency bounds parallel task execution.
func WithConcurrency(n int64) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithTaskTimeout bounds one execution attempt.
func WithTaskTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.taskTimeout = d
		}
	}
}

// NewWorker creates a worker over the given client.
func NewWorker(rdb *redis.Client, opts ...WorkerOption) *Worker {
	w := &Worker{
		rdb:         rdb,
		funcs:       make(map[string]Func),
		concurrency: DefaultConcurrency,
		taskTimeout: DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sem = semaphore.NewWeighted(w.concurrency)
	return w
}

// Register binds a function name to its handler. Unknown names in the queue
// go to the dead set.
func (w *Worker) Register(name string, fn Func) {
	w.funcs[name] = fn
}

// Run consumes tasks until ctx is cancelled, then waits for in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	logger := log.WithComponent("queue")
	logger.Info().Int64("concurrency", w.concurrency).Msg("worker started")

	for {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := w.promoteDeferred(ctx); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("deferred promotion failed")
		}

		res, err := w.rdb.BRPop(ctx, pollInterval, readyKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn().Err(err).Msg("queue pop failed")
			time.Sleep(pollInterval)
			continue
		}

		payload := res[1]
		if err := w.sem.Acquire(ctx, 1); err != nil {
			// shutting down with a task in hand: put it back
			_ = w.rdb.LPush(context.Background(), readyKey, payload).Err()
			break
		}
		go func(p string) {
			defer w.sem.Release(1)
			tasksInFlight.Inc()
			defer tasksInFlight.Dec()
			w.handle(p)
		}(payload)
	}

	// drain: wait for everything in flight
	if err := w.sem.Acquire(context.Background(), w.concurrency); err != nil {
		return err
	}
	w.sem.Release(w.concurrency)
	logger.Info().Msg("worker stopped")
	return nil
}

// promoteDeferred moves due tasks from the schedule onto the ready list.
func (w *Worker) promoteDeferred(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := w.rdb.ZRangeByScore(ctx, deferredKey, &redis.ZRangeBy{
		Min: "-inf", Max: now,
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}
	for _, payload := range due {
		removed, err := w.rdb.ZRem(ctx, deferredKey, payload).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue // another worker got it
		}
		if err := w.rdb.LPush(ctx, readyKey, payload).Err(); err != nil {
			return err
		}
	}
	return nil
}

// handle runs one task attempt and settles the outcome.
func (w *Worker) handle(payload string) {
	logger := log.WithComponent("queue")

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		logger.Error().Err(err).Msg("undecodable task payload, dropping to dead set")
		w.bury(payload, "undecodable payload")
		return
	}
	scoped := logger.With().Str("task_id", task.ID).Str("function", task.Function).Logger()
	logger = &scoped

	fn, ok := w.funcs[task.Function]
	if !ok {
		logger.Error().Msg("unknown function, dropping to dead set")
		tasksProcessed.WithLabelValues(task.Function, "unknown").Inc()
		w.bury(payload, "unknown function")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.taskTimeout)
	defer cancel()
	ctx = log.ContextWithJobID(ctx, task.ID)

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("task panicked: %v", rec)
			}
		}()
		return fn(ctx, task.Args)
	}()

	if err == nil {
		tasksProcessed.WithLabelValues(task.Function, "success").Inc()
		return
	}

	// Deferral is scheduling, not failure: re-queue at the requested
	// instant without consuming a try.
	if d, ok := fault.AsDefer(err); ok {
		logger.Info().Int("defer_seconds", d.Seconds).Msg("task deferred")
		tasksProcessed.WithLabelValues(task.Function, "deferred").Inc()
		w.requeueDeferred(task, d.Until(time.Now()))
		return
	}

	task.Tries++
	if task.Tries < MaxTries {
		logger.Warn().Err(err).Int("tries", task.Tries).Msg("task failed, retrying")
		tasksProcessed.WithLabelValues(task.Function, "retry").Inc()
		w.requeueReady(task)
		return
	}

	logger.Error().Err(err).Int("tries", task.Tries).Msg("task exhausted tries")
	tasksProcessed.WithLabelValues(task.Function, "dead").Inc()
	w.bury(mustMarshal(task), err.Error())
}

func (w *Worker) requeueReady(task Task) {
	if err := w.rdb.LPush(context.Background(), readyKey, mustMarshal(task)).Err(); err != nil {
		log.WithComponent("queue").Error().Err(err).Str("task_id", task.ID).Msg("requeue failed")
	}
}

func (w *Worker) requeueDeferred(task Task, at time.Time) {
	err := w.rdb.ZAdd(context.Background(), deferredKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: mustMarshal(task),
	}).Err()
	if err != nil {
		log.WithComponent("queue").Error().Err(err).Str("task_id", task.ID).Msg("deferral failed")
	}
}

func (w *Worker) bury(payload string, reason string) {
	entry, err := json.Marshal(map[string]string{"reason": reason, "task": payload})
	if err != nil {
		entry = []byte(payload)
	}
	if err := w.rdb.LPush(context.Background(), deadKey, entry).Err(); err != nil {
		log.WithComponent("queue").Error().Err(err).Msg("dead set write failed")
	}
}

func mustMarshal(task Task) string {
	raw, err := json.Marshal(task)
	if err != nil {
		// Task round-tripped through JSON already; this cannot fail.
		panic(err)
	}
	return string(raw)
}
