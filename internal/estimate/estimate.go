// SPDX-License-Identifier: MIT

// Package estimate predicts queue start and completion times, honoring the
// work window by advancing time through closed periods.
package estimate

import (
	"fmt"
	"time"

	"github.com/coursesmith/coursesmith/internal/workwindow"
)

// maxWindowHops caps the window-advance loop so a misconfigured window can
// never spin forever.
const maxWindowHops = 400

// Estimate is the predicted schedule for a newly queued job.
type Estimate struct {
	Position          int
	EstimatedStart    time.Time
	EstimatedComplete time.Time
	NextWindowStart   *time.Time
	Summary           string
}

// Estimator computes schedules from queue depth and historical duration.
type Estimator struct {
	Window workwindow.Window
}

// ErrWindowExhausted is returned when the advance loop hits its safety cap.
var ErrWindowExhausted = fmt.Errorf("queue estimate exceeded %d window hops", maxWindowHops)

// Predict returns the estimate for a job entering at position queueDepth+1,
// assuming each queued job takes avgDuration.
func (e *Estimator) Predict(now time.Time, queueDepth int, avgDuration time.Duration) (*Estimate, error) {
	if avgDuration <= 0 {
		avgDuration = 5 * time.Minute
	}

	backlog := time.Duration(queueDepth) * avgDuration

	start, err := e.advance(now, backlog)
	if err != nil {
		return nil, err
	}
	// The start itself must land inside an open window.
	start, err = e.advance(start, 0)
	if err != nil {
		return nil, err
	}
	complete, err := e.advance(start, avgDuration)
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		Position:          queueDepth + 1,
		EstimatedStart:    start,
		EstimatedComplete: complete,
	}
	if e.Window.Enabled && !e.Window.IsActiveNow(now) {
		next := e.Window.NextStart(now)
		est.NextWindowStart = &next
	}
	est.Summary = e.summary(est)
	return est, nil
}

// advance consumes work time starting at from, jumping over closed windows.
func (e *Estimator) advance(from time.Time, work time.Duration) (time.Time, error) {
	if !e.Window.Enabled {
		return from.Add(work), nil
	}

	cur := from
	for hops := 0; hops <= maxWindowHops; hops++ {
		if !e.Window.IsActiveNow(cur) {
			cur = e.Window.NextStart(cur)
			continue
		}
		if work == 0 {
			return cur, nil
		}
		open := e.Window.RemainingToday(cur)
		if work <= open {
			return cur.Add(work), nil
		}
		work -= open
		cur = e.Window.NextStart(cur.Add(open))
	}
	return time.Time{}, ErrWindowExhausted
}

func (e *Estimator) summary(est *Estimate) string {
	if est.NextWindowStart != nil {
		return fmt.Sprintf("position %d in queue; work window opens %s, estimated completion %s",
			est.Position,
			est.NextWindowStart.Format(time.RFC3339),
			est.EstimatedComplete.Format(time.RFC3339))
	}
	return fmt.Sprintf("position %d in queue; estimated start %s, completion %s",
		est.Position,
		est.EstimatedStart.Format(time.RFC3339),
		est.EstimatedComplete.Format(time.RFC3339))
}
