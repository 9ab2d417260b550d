// SPDX-License-Identifier: MIT

// Package queue implements the durable task transport on Redis: a ready
// list, a deferred sorted set for window-gated work, and a dead set for
// tasks that burned all tries. Payloads are self-contained JSON envelopes,
// so the broker needs no schema.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	readyKey    = "coursesmith:queue:ready"
	deferredKey = "coursesmith:queue:deferred"
	deadKey     = "coursesmith:queue:dead"
)

// MaxTries is the per-task execution budget. Deferrals do not count.
const MaxTries = 3

// Config holds Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects with the standard pool settings and verifies
// reachability.
func NewClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: redis connection failed: %w", err)
	}
	return client, nil
}

// Task is the wire envelope.
type Task struct {
	ID         string          `json:"id"`
	Function   string          `json:"function"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Tries      int             `json:"tries"`
}

// Queue submits tasks.
type Queue struct {
	rdb *redis.Client
}

// New wraps an existing client.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// EnqueueOption customizes submission.
type EnqueueOption func(*enqueueOpts)

type enqueueOpts struct {
	deferUntil time.Time
}

// WithDeferUntil schedules the task to become runnable at t instead of
// immediately.
func WithDeferUntil(t time.Time) EnqueueOption {
	return func(o *enqueueOpts) { o.deferUntil = t }
}

// Enqueue submits one task and returns its queue handle.
func (q *Queue) Enqueue(ctx context.Context, function string, args any, opts ...EnqueueOption) (string, error) {
	var o enqueueOpts
	for _, opt := range opts {
		opt(&o)
	}

	rawArgs, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("queue: marshal args: %w", err)
	}
	task := Task{
		ID:         uuid.NewString(),
		Function:   function,
		Args:       rawArgs,
		EnqueuedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("queue: marshal task: %w", err)
	}

	if !o.deferUntil.IsZero() {
		err = q.rdb.ZAdd(ctx, deferredKey, redis.Z{
			Score:  float64(o.deferUntil.Unix()),
			Member: payload,
		}).Err()
	} else {
		err = q.rdb.LPush(ctx, readyKey, payload).Err()
	}
	if err != nil {
		return "", fmt.Errorf("queue: submit: %w", err)
	}
	return task.ID, nil
}

// Depth returns the number of immediately runnable tasks.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, readyKey).Result()
}

// DeferredDepth returns the number of scheduled tasks.
func (q *Queue) DeferredDepth(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, deferredKey).Result()
}
