// SPDX-License-Identifier: MIT

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEntryTransitionTable_Closure(t *testing.T) {
	states := []EntryState{EntryRaw, EntryPending, EntryReady, EntryError, EntryIntegrityBroken}

	allowed := map[EntryState]map[EntryState]bool{
		EntryRaw:     {EntryPending: true},
		EntryPending: {EntryReady: true, EntryError: true},
	}

	for _, from := range states {
		for _, to := range states {
			require.Equal(t, allowed[from][to], EntryTransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestApplyEntryTransition(t *testing.T) {
	now := time.Now()

	t.Run("ready stamps processed_at", func(t *testing.T) {
		e := &MaterialEntry{State: EntryPending}
		require.NoError(t, ApplyEntryTransition(e, EntryReady, "", now))
		require.NotNil(t, e.ProcessedAt)
	})

	t.Run("error requires message", func(t *testing.T) {
		e := &MaterialEntry{State: EntryPending}
		require.Error(t, ApplyEntryTransition(e, EntryError, "", now))
		require.Equal(t, EntryPending, e.State)

		require.NoError(t, ApplyEntryTransition(e, EntryError, "decode failed", now))
		require.Equal(t, "decode failed", e.ErrorMessage)
	})

	t.Run("terminal states closed", func(t *testing.T) {
		e := &MaterialEntry{State: EntryReady}
		require.Error(t, ApplyEntryTransition(e, EntryPending, "", now))
	})
}

func TestEntryStateBlocking(t *testing.T) {
	require.True(t, EntryRaw.Blocking())
	require.True(t, EntryIntegrityBroken.Blocking())
	require.False(t, EntryPending.Blocking())
	require.False(t, EntryError.Blocking())
	require.False(t, EntryReady.Blocking())
}
