// SPDX-License-Identifier: MIT

// Package workwindow decides whether heavy normal-priority work may run now
// and computes the next opening. The window is advisory: running jobs are
// never preempted when it closes.
package workwindow

import (
	"fmt"
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// ClockTime is a wall-clock time of day, independent of date.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// minutes since midnight.
func (c ClockTime) minutes() int { return c.Hour*60 + c.Minute }

// Window is the configured interval during which heavy normal-priority jobs
// may run. Overnight windows (Start > End) are supported. A disabled window
// behaves as 24/7.
type Window struct {
	Start    ClockTime
	End      ClockTime
	Location *time.Location
	Enabled  bool
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// overnight reports whether the window wraps midnight.
func (w Window) overnight() bool { return w.Start.minutes() > w.End.minutes() }

// IsActiveNow reports whether now falls inside the window.
func (w Window) IsActiveNow(now time.Time) bool {
	if !w.Enabled {
		return true
	}
	local := now.In(w.loc())
	cur := local.Hour()*60 + local.Minute()
	if w.overnight() {
		return cur >= w.Start.minutes() || cur < w.End.minutes()
	}
	return cur >= w.Start.minutes() && cur < w.End.minutes()
}

// NextStart returns the next opening instant: today if the start is still
// ahead, else tomorrow.
func (w Window) NextStart(now time.Time) time.Time {
	local := now.In(w.loc())
	start := time.Date(local.Year(), local.Month(), local.Day(), w.Start.Hour, w.Start.Minute, 0, 0, w.loc())
	if !local.Before(start) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}

// RemainingToday returns the non-negative duration until the window closes,
// zero when outside. A disabled window reports 24h.
func (w Window) RemainingToday(now time.Time) time.Duration {
	if !w.Enabled {
		return 24 * time.Hour
	}
	if !w.IsActiveNow(now) {
		return 0
	}
	local := now.In(w.loc())
	end := time.Date(local.Year(), local.Month(), local.Day(), w.End.Hour, w.End.Minute, 0, 0, w.loc())
	if w.overnight() {
		cur := local.Hour()*60 + local.Minute()
		if cur >= w.Start.minutes() {
			// Before midnight: the close is tomorrow.
			end = end.AddDate(0, 0, 1)
		}
	}
	return end.Sub(local)
}

// CheckWorkWindow is the priority gate. Normal-priority work outside an
// enabled window yields a defer signal parameterized by seconds until the
// next opening; immediate priority and disabled windows pass through.
func CheckWorkWindow(w Window, priority model.JobPriority, now time.Time) error {
	if priority == model.PriorityImmediate || !w.Enabled {
		return nil
	}
	if w.IsActiveNow(now) {
		return nil
	}
	secs := int(w.NextStart(now).Sub(now) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &fault.Defer{Seconds: secs}
}
