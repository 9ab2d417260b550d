// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// MappingRepo persists slide/video alignments produced by the ingestion
// pipeline.
type MappingRepo struct {
	db *sql.DB
}

// ReplaceForPresentation atomically swaps the mapping set of one
// presentation entry. Ingestion reruns produce a complete new set.
func (r *MappingRepo) ReplaceForPresentation(ctx context.Context, presentationEntryID string, mappings []*model.SlideVideoMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slide_video_mappings WHERE presentation_entry_id = ?`,
		presentationEntryID); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, m := range mappings {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slide_video_mappings
				(id, tenant_id, node_id, presentation_entry_id, video_entry_id,
				 slide_number, video_timecode_start, video_timecode_end, position,
				 validation_state, blocking_factors, validation_errors, validated_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.TenantID, m.NodeID, m.PresentationEntryID, m.VideoEntryID,
			m.SlideNumber, m.VideoTimecodeStart, nullFloat(m.VideoTimecodeEnd), m.Position,
			m.ValidationState, m.BlockingFactors, m.ValidationErrors,
			nullTime(m.ValidatedAt), m.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ByPresentation returns the mappings of one presentation entry in slide
// order.
func (r *MappingRepo) ByPresentation(ctx context.Context, tenantID, presentationEntryID string) ([]*model.SlideVideoMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, node_id, presentation_entry_id, video_entry_id,
			slide_number, video_timecode_start, video_timecode_end, position,
			validation_state, blocking_factors, validation_errors, validated_at, created_at
		FROM slide_video_mappings
		WHERE tenant_id = ? AND presentation_entry_id = ?
		ORDER BY slide_number`, tenantID, presentationEntryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.SlideVideoMapping
	for rows.Next() {
		var m model.SlideVideoMapping
		var end sql.NullFloat64
		var validated sql.NullTime
		if err := rows.Scan(&m.ID, &m.TenantID, &m.NodeID, &m.PresentationEntryID,
			&m.VideoEntryID, &m.SlideNumber, &m.VideoTimecodeStart, &end, &m.Position,
			&m.ValidationState, &m.BlockingFactors, &m.ValidationErrors,
			&validated, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.VideoTimecodeEnd = floatPtr(end)
		m.ValidatedAt = timePtr(validated)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// SetValidation updates the validation verdict of one mapping.
func (r *MappingRepo) SetValidation(ctx context.Context, tenantID, mappingID string, state model.MappingValidationState, blockingFactors, validationErrors string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE slide_video_mappings
		SET validation_state = ?, blocking_factors = ?, validation_errors = ?, validated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		state, blockingFactors, validationErrors, now, mappingID, tenantID)
	return err
}
