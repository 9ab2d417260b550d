// SPDX-License-Identifier: MIT

// Package fault holds the error taxonomy shared across the orchestration
// substrate. It is a leaf package: nothing here may import the subsystems
// that raise these errors.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for conditions that carry no structured payload.
var (
	// ErrNotFound covers both missing resources and resources owned by
	// another tenant; the two are indistinguishable externally.
	ErrNotFound = errors.New("not found")

	// ErrForbidden signals a missing scope.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// TransitionError reports an illegal state-machine transition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.Entity, e.From, e.To)
}

// Conflict describes an active job whose scope overlaps a new generation
// request. It is a plain value type so callers can map it onto transport
// errors without importing the detector.
type Conflict struct {
	JobID  string
	NodeID string // empty means the whole course
	Reason string
}

func (c *Conflict) Error() string {
	return "generation conflict: " + c.Reason
}

// NoReadyMaterials reports a readiness check that found stale entries.
type NoReadyMaterials struct {
	Stale []StaleEntry
}

// StaleEntry identifies a material entry that blocks generation.
type StaleEntry struct {
	EntryID   string
	Filename  string
	State     string
	NodeID    string
	NodeTitle string
}

func (e *NoReadyMaterials) Error() string {
	return fmt.Sprintf("%d material(s) not ready for generation", len(e.Stale))
}

// NodeNotFound reports a target node absent from the course tree.
type NodeNotFound struct {
	NodeID string
}

func (e *NodeNotFound) Error() string {
	return "node not found: " + e.NodeID
}

// UnprocessedEntry reports a fingerprint request on an entry that lacks
// processed content.
type UnprocessedEntry struct {
	EntryID string
}

func (e *UnprocessedEntry) Error() string {
	return "entry has no processed content: " + e.EntryID
}

// StructuredOutputError reports LLM output that failed schema validation.
// The router retries these within the same model.
type StructuredOutputError struct {
	Provider   string
	SchemaName string
	RawContent string
	Cause      error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("structured output from %s did not match schema %s: %v", e.Provider, e.SchemaName, e.Cause)
}

func (e *StructuredOutputError) Unwrap() error { return e.Cause }

// ProviderDisabled reports a provider in runtime back-off. The router skips
// it without consuming an attempt.
type ProviderDisabled struct {
	Provider string
	Reason   string
}

func (e *ProviderDisabled) Error() string {
	return fmt.Sprintf("provider %s disabled: %s", e.Provider, e.Reason)
}

// ModelFailure records why one model in a chain failed.
type ModelFailure struct {
	Model  string
	Reason string
}

// AllModelsFailed reports an exhausted routing chain.
type AllModelsFailed struct {
	Action   string
	Strategy string
	Failures []ModelFailure
}

func (e *AllModelsFailed) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Model+": "+f.Reason)
	}
	return fmt.Sprintf("all models failed for %s/%s [%s]", e.Action, e.Strategy, strings.Join(parts, "; "))
}

// DependencyFailed reports a job whose dependency ended failed or cancelled.
type DependencyFailed struct {
	JobID        string
	DependencyID string
	Status       string
}

func (e *DependencyFailed) Error() string {
	return fmt.Sprintf("job %s dependency %s ended %s", e.JobID, e.DependencyID, e.Status)
}

// Defer signals the queue to re-run the task later without consuming a try.
// The priority gate raises it for normal-priority work outside the window.
type Defer struct {
	Seconds int
}

func (e *Defer) Error() string {
	return fmt.Sprintf("deferred for %ds", e.Seconds)
}

// Until returns the instant the deferred task becomes runnable.
func (e *Defer) Until(now time.Time) time.Time {
	return now.Add(time.Duration(e.Seconds) * time.Second)
}

// AsDefer unwraps err into a Defer if it is one.
func AsDefer(err error) (*Defer, bool) {
	var d *Defer
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
