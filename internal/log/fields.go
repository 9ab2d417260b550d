// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTenantID  = "tenant_id"
	FieldCourseID  = "course_id"
	FieldNodeID    = "node_id"
	FieldEntryID   = "entry_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldAction    = "action"
	FieldStrategy  = "strategy"
	FieldProvider  = "provider"
	FieldModel     = "model"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
)
