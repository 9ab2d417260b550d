// SPDX-License-Identifier: MIT

package model

import (
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

// EntryState is the material entry lifecycle. The richer vocabulary is
// canonical; the coarse pending/processing/done/error sub-machine maps onto
// it (pending=RAW, processing=PENDING, done=READY, error=ERROR).
type EntryState string

const (
	EntryRaw             EntryState = "RAW"
	EntryPending         EntryState = "PENDING"
	EntryReady           EntryState = "READY"
	EntryError           EntryState = "ERROR"
	EntryIntegrityBroken EntryState = "INTEGRITY_BROKEN"
)

// Blocking reports whether the state makes the subtree not ready for
// generation. PENDING and ERROR entries simply contribute no content.
func (s EntryState) Blocking() bool {
	return s == EntryRaw || s == EntryIntegrityBroken
}

var entryTransitions = map[EntryState][]EntryState{
	EntryRaw:             {EntryPending},
	EntryPending:         {EntryReady, EntryError},
	EntryReady:           {},
	EntryError:           {},
	EntryIntegrityBroken: {},
}

// EntryTransitionAllowed reports whether from -> to is a legal edge.
func EntryTransitionAllowed(from, to EntryState) bool {
	for _, t := range entryTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ApplyEntryTransition validates and applies a state change on the entry.
// Moving to READY stamps ProcessedAt; moving to ERROR requires a message.
func ApplyEntryTransition(e *MaterialEntry, to EntryState, msg string, now time.Time) error {
	if !EntryTransitionAllowed(e.State, to) {
		return &fault.TransitionError{Entity: "material_entry", From: string(e.State), To: string(to)}
	}
	switch to {
	case EntryReady:
		t := now
		e.ProcessedAt = &t
	case EntryError:
		if msg == "" {
			return &fault.TransitionError{Entity: "material_entry", From: string(e.State), To: string(to)}
		}
		e.ErrorMessage = msg
	}
	e.State = to
	return nil
}
