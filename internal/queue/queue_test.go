// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

func newTestQueue(t *testing.T) (*Queue, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), rdb, mr
}

func runWorker(t *testing.T, w *Worker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Log("worker did not stop in time")
		}
	})
	return cancel
}

func TestEnqueue(t *testing.T) {
	q, rdb, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "ingest_entry", map[string]string{"entry_id": "e1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	payload, err := rdb.LRange(ctx, readyKey, 0, -1).Result()
	require.NoError(t, err)
	var task Task
	require.NoError(t, json.Unmarshal([]byte(payload[0]), &task))
	require.Equal(t, id, task.ID)
	require.Equal(t, "ingest_entry", task.Function)
	require.JSONEq(t, `{"entry_id":"e1"}`, string(task.Args))
	require.Zero(t, task.Tries)
}

func TestEnqueue_Deferred(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "generate_structure", nil,
		WithDeferUntil(time.Now().Add(time.Hour)))
	require.NoError(t, err)

	ready, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Zero(t, ready)

	deferred, err := q.DeferredDepth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), deferred)
}

func TestWorker_DispatchesRegisteredFunction(t *testing.T) {
	q, rdb, _ := newTestQueue(t)

	var got atomic.Value
	w := NewWorker(rdb, WithConcurrency(1))
	w.Register("ingest_entry", func(_ context.Context, args json.RawMessage) error {
		got.Store(string(args))
		return nil
	})
	runWorker(t, w)

	_, err := q.Enqueue(context.Background(), "ingest_entry", map[string]string{"entry_id": "e7"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, ok := got.Load().(string)
		return ok && v != ""
	}, 5*time.Second, 20*time.Millisecond)
	require.JSONEq(t, `{"entry_id":"e7"}`, got.Load().(string))
}

func TestWorker_DeferDoesNotConsumeTries(t *testing.T) {
	q, rdb, _ := newTestQueue(t)

	var calls atomic.Int32
	w := NewWorker(rdb, WithConcurrency(1))
	w.Register("gated", func(_ context.Context, _ json.RawMessage) error {
		if calls.Add(1) == 1 {
			return &fault.Defer{Seconds: 0}
		}
		return nil
	})
	runWorker(t, w)

	_, err := q.Enqueue(context.Background(), "gated", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 10*time.Second, 20*time.Millisecond)

	// the re-run carried zero tries: nothing ever reached the dead set
	dead, err := rdb.LLen(context.Background(), deadKey).Result()
	require.NoError(t, err)
	require.Zero(t, dead)
}

func TestWorker_ExhaustedTriesGoToDeadSet(t *testing.T) {
	q, rdb, _ := newTestQueue(t)

	var calls atomic.Int32
	w := NewWorker(rdb, WithConcurrency(1))
	w.Register("doomed", func(_ context.Context, _ json.RawMessage) error {
		calls.Add(1)
		return errors.New("always fails")
	})
	runWorker(t, w)

	_, err := q.Enqueue(context.Background(), "doomed", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := rdb.LLen(context.Background(), deadKey).Result()
		return n == 1
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, int32(MaxTries), calls.Load())
}

func TestWorker_UnknownFunctionIsBuried(t *testing.T) {
	q, rdb, _ := newTestQueue(t)

	w := NewWorker(rdb, WithConcurrency(1))
	runWorker(t, w)

	_, err := q.Enqueue(context.Background(), "nobody_home", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := rdb.LLen(context.Background(), deadKey).Result()
		return n == 1
	}, 5*time.Second, 20*time.Millisecond)
}
