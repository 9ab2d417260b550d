// SPDX-License-Identifier: MIT

// Package model defines the persistent entities of the course synthesis
// substrate and the state machines governing them.
package model

import "time"

// NilUUID is the coalescing stand-in for "whole course" scope in snapshot
// identities.
const NilUUID = "00000000-0000-0000-0000-000000000000"

// Tenant is the billing and isolation boundary. Every owned record carries a
// non-null tenant reference.
type Tenant struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Scopes an API key can hold. Prep covers course and material management,
// check covers generation and reporting.
const (
	ScopePrep  = "prep"
	ScopeCheck = "check"
)

// APIKey is a tenant credential. The full key is returned exactly once at
// creation; only hash and prefix persist.
type APIKey struct {
	ID             string
	TenantID       string
	KeyHash        string // SHA-256 hex of the full key, unique
	KeyPrefix      string // display/search hint, e.g. "cs_live_ab12"
	Label          string
	Scopes         []string
	RateLimitPrep  int
	RateLimitCheck int
	IsActive       bool
	CreatedAt      time.Time
}

// HasScope reports whether the key grants any of the wanted scopes.
func (k *APIKey) HasScope(wanted ...string) bool {
	for _, w := range wanted {
		for _, s := range k.Scopes {
			if s == w {
				return true
			}
		}
	}
	return false
}

// Course owns a material tree, jobs, LLM call history and snapshots.
type Course struct {
	ID          string
	TenantID    string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MaterialNode is one node of the self-referential material tree. ParentID is
// empty for roots. NodeFingerprint is a lazy cache: empty means stale.
type MaterialNode struct {
	ID              string
	CourseID        string
	TenantID        string
	ParentID        string
	Title           string
	Description     string
	Position        int
	NodeFingerprint string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MaterialEntry is a file or URL attached to a node.
type MaterialEntry struct {
	ID                 string
	NodeID             string
	CourseID           string
	TenantID           string
	Filename           string
	SourceType         SourceType
	SourceURL          string
	StorageKey         string
	State              EntryState
	ProcessedContent   string // empty until ingestion succeeds
	ContentFingerprint string // lazy cache
	ErrorMessage       string
	ProcessedAt        *time.Time
	CreatedAt          time.Time
}

// SourceType selects the ingestion processor.
type SourceType string

const (
	SourceVideo        SourceType = "video"
	SourcePresentation SourceType = "presentation"
	SourceText         SourceType = "text"
	SourceWeb          SourceType = "web"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceVideo, SourcePresentation, SourceText, SourceWeb:
		return true
	}
	return false
}

// LLMCall is the audit record for one provider invocation.
type LLMCall struct {
	ID           string
	TenantID     string
	CourseID     string
	Action       string
	Strategy     string
	Provider     string
	Model        string
	TokensIn     int
	TokensOut    int
	LatencyMS    int64
	CostUSD      float64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// GenerationMode selects the structuring style and is part of the snapshot
// identity.
type GenerationMode string

const (
	ModeFree   GenerationMode = "free"
	ModeGuided GenerationMode = "guided"
)

// Valid reports whether m is a known generation mode.
func (m GenerationMode) Valid() bool {
	return m == ModeFree || m == ModeGuided
}

// StructureSnapshot is a content-addressed cached generation artifact,
// immutable once written. Identity: (course, node-or-nil, fingerprint, mode).
type StructureSnapshot struct {
	ID              string
	TenantID        string
	CourseID        string
	NodeID          string // empty means whole course; persisted as NilUUID
	NodeFingerprint string
	Mode            GenerationMode
	Structure       []byte // generated structured object, canonical JSON
	PromptVersion   string
	Model           string
	TokensIn        int
	TokensOut       int
	CostUSD         float64
	CreatedAt       time.Time
}

// MappingValidationState tracks slide/video alignment validation.
type MappingValidationState string

const (
	MappingValidated         MappingValidationState = "validated"
	MappingPendingValidation MappingValidationState = "pending_validation"
	MappingValidationFailed  MappingValidationState = "validation_failed"
)

// SlideVideoMapping aligns one slide of a presentation entry with a timecode
// range of a video entry under the same node.
type SlideVideoMapping struct {
	ID                  string
	TenantID            string
	NodeID              string
	PresentationEntryID string
	VideoEntryID        string
	SlideNumber         int
	VideoTimecodeStart  float64
	VideoTimecodeEnd    *float64
	Position            int
	ValidationState     MappingValidationState
	BlockingFactors     string
	ValidationErrors    string
	ValidatedAt         *time.Time
	CreatedAt           time.Time
}
