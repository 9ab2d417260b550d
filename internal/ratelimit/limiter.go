// SPDX-License-Identifier: MIT

// Package ratelimit implements an in-memory sliding-window request counter
// keyed by arbitrary string, typically "{tenant}:{scope}". It is
// single-instance; distributed deployments must supply an external backend.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coursesmith",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"key"},
)

// DefaultWindow is the sliding window width.
const DefaultWindow = 60 * time.Second

// Limiter counts events per key over a sliding window. All acquisitions are
// short (two slice traversals) under a single mutex.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	events map[string][]time.Time
	now    func() time.Time
}

// New creates a limiter with the given window width; zero means DefaultWindow.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window: window,
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Check records one attempt for key and reports whether it is within limit.
// When denied, retryAfter is the whole number of seconds (at least 1) until
// the oldest counted event leaves the window.
func (l *Limiter) Check(key string, limit int) (allowed bool, retryAfter int) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.events[key] = kept
		rateLimitExceeded.WithLabelValues(key).Inc()
		oldest := kept[0]
		retry := int(oldest.Sub(cutoff)/time.Second) + 1
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}

	l.events[key] = append(kept, now)
	return true, 0
}

// Cleanup evicts keys whose events have all left the window. Callers run it
// periodically.
func (l *Limiter) Cleanup() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, times := range l.events {
		live := false
		for _, ts := range times {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.events, key)
		}
	}
}

// RunCleanup runs Cleanup every interval until stop is closed.
func (l *Limiter) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
