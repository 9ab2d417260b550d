// SPDX-License-Identifier: MIT

package estimate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/workwindow"
)

func window(t *testing.T, start, end string, enabled bool) workwindow.Window {
	t.Helper()
	s, err := workwindow.ParseClockTime(start)
	require.NoError(t, err)
	e, err := workwindow.ParseClockTime(end)
	require.NoError(t, err)
	return workwindow.Window{Start: s, End: e, Enabled: enabled}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestPredict_DisabledWindowIsWallClock(t *testing.T) {
	est := &Estimator{Window: window(t, "02:00", "06:30", false)}

	got, err := est.Predict(at(12, 0), 3, 10*time.Minute)
	require.NoError(t, err)

	require.Equal(t, 4, got.Position)
	require.Equal(t, at(12, 30), got.EstimatedStart)
	require.Equal(t, at(12, 40), got.EstimatedComplete)
	require.Nil(t, got.NextWindowStart)
}

func TestPredict_WaitsForWindowOpening(t *testing.T) {
	est := &Estimator{Window: window(t, "02:00", "06:30", true)}

	// 01:00, empty queue: starts at 02:00.
	got, err := est.Predict(at(1, 0), 0, 30*time.Minute)
	require.NoError(t, err)

	require.Equal(t, 1, got.Position)
	require.Equal(t, at(2, 0), got.EstimatedStart)
	require.Equal(t, at(2, 30), got.EstimatedComplete)
	require.NotNil(t, got.NextWindowStart)
	require.Equal(t, at(2, 0), *got.NextWindowStart)
}

func TestPredict_BacklogSpillsIntoNextWindow(t *testing.T) {
	est := &Estimator{Window: window(t, "02:00", "06:30", true)}

	// 4.5h window; backlog of 5 jobs x 1h = 5h pushes the start into the
	// next day's window.
	got, err := est.Predict(at(2, 0), 5, time.Hour)
	require.NoError(t, err)

	nextDay := at(2, 0).AddDate(0, 0, 1)
	require.Equal(t, nextDay.Add(30*time.Minute), got.EstimatedStart)
	require.Equal(t, nextDay.Add(90*time.Minute), got.EstimatedComplete)
}

func TestPredict_ResultsFallInsideOpenWindows(t *testing.T) {
	w := window(t, "02:00", "06:30", true)
	est := &Estimator{Window: w}

	for depth := 0; depth < 12; depth++ {
		got, err := est.Predict(at(1, 0), depth, 45*time.Minute)
		require.NoError(t, err)
		require.True(t, w.IsActiveNow(got.EstimatedStart), "start %s outside window (depth %d)", got.EstimatedStart, depth)
	}
}

func TestPredict_DefaultDuration(t *testing.T) {
	est := &Estimator{Window: window(t, "02:00", "06:30", false)}

	got, err := est.Predict(at(12, 0), 0, 0)
	require.NoError(t, err)
	require.Equal(t, at(12, 5), got.EstimatedComplete)
}

func TestPredict_SummaryMentionsPosition(t *testing.T) {
	est := &Estimator{Window: window(t, "02:00", "06:30", true)}
	got, err := est.Predict(at(1, 0), 2, time.Minute)
	require.NoError(t, err)
	require.Contains(t, got.Summary, "position 3")
	require.Contains(t, got.Summary, "work window opens")
}
