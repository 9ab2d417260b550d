// SPDX-License-Identifier: MIT

package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance the limiter's view of time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func newTestLimiter(window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{cur: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	l := New(window)
	l.now = clock.now
	return l, clock
}

func TestLimiter_AtMostLimitWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(60 * time.Second)

	for i := 0; i < 5; i++ {
		allowed, _ := l.Check("t1:prep", 5)
		require.True(t, allowed, "call %d", i)
	}

	allowed, retry := l.Check("t1:prep", 5)
	require.False(t, allowed)
	require.GreaterOrEqual(t, retry, 1)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(60 * time.Second)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Check("k", 3)
		require.True(t, allowed)
	}
	allowed, _ := l.Check("k", 3)
	require.False(t, allowed)

	clock.advance(61 * time.Second)

	allowed, _ = l.Check("k", 3)
	require.True(t, allowed)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(60 * time.Second)

	allowed, _ := l.Check("a:prep", 1)
	require.True(t, allowed)
	allowed, _ = l.Check("a:prep", 1)
	require.False(t, allowed)

	allowed, _ = l.Check("b:prep", 1)
	require.True(t, allowed)
}

func TestLimiter_CleanupEvictsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(60 * time.Second)

	l.Check("stale", 5)
	l.Check("fresh", 5)
	clock.advance(2 * time.Minute)
	l.Check("fresh", 5)

	l.Cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotContains(t, l.events, "stale")
	require.Contains(t, l.events, "fresh")
}

func TestLimiter_ConcurrentChecks(t *testing.T) {
	l, _ := newTestLimiter(60 * time.Second)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Check("shared", 10); ok {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, allowedCount)
}
