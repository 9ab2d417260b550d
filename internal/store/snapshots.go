// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// SnapshotRepo persists content-addressed generation artifacts. Rows are
// immutable; identity is (course, node-or-nil, fingerprint, mode), with the
// whole-course scope coalesced onto the nil UUID so the unique index holds.
type SnapshotRepo struct {
	db *sql.DB
}

// scopeColumn maps the domain's empty node ID onto the persisted sentinel.
func scopeColumn(nodeID string) string {
	if nodeID == "" {
		return model.NilUUID
	}
	return nodeID
}

func scopeDomain(column string) string {
	if column == model.NilUUID {
		return ""
	}
	return column
}

// Create inserts a snapshot. A second insert under the same identity loses
// to the unique index; callers treat that as a concurrent cache fill and
// re-read.
func (r *SnapshotRepo) Create(ctx context.Context, s *model.StructureSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO structure_snapshots
			(id, tenant_id, course_id, node_id, node_fingerprint, mode, structure,
			 prompt_version, model, tokens_in, tokens_out, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TenantID, s.CourseID, scopeColumn(s.NodeID), s.NodeFingerprint, s.Mode,
		s.Structure, s.PromptVersion, s.Model, s.TokensIn, s.TokensOut, s.CostUSD, s.CreatedAt)
	return err
}

const snapshotColumns = `id, tenant_id, course_id, node_id, node_fingerprint,
	mode, structure, prompt_version, model, tokens_in, tokens_out, cost_usd, created_at`

func scanSnapshot(row interface{ Scan(...any) error }) (*model.StructureSnapshot, error) {
	var s model.StructureSnapshot
	err := row.Scan(&s.ID, &s.TenantID, &s.CourseID, &s.NodeID, &s.NodeFingerprint,
		&s.Mode, &s.Structure, &s.PromptVersion, &s.Model, &s.TokensIn, &s.TokensOut,
		&s.CostUSD, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.NodeID = scopeDomain(s.NodeID)
	return &s, nil
}

// FindByIdentity returns the cached snapshot for the exact identity tuple,
// or fault.ErrNotFound on cache miss.
func (r *SnapshotRepo) FindByIdentity(ctx context.Context, tenantID, courseID, nodeID, fingerprint string, mode model.GenerationMode) (*model.StructureSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM structure_snapshots
		WHERE tenant_id = ? AND course_id = ? AND node_id = ?
			AND node_fingerprint = ? AND mode = ?`,
		tenantID, courseID, scopeColumn(nodeID), fingerprint, mode)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	return s, err
}

// ByID returns one snapshot, tenant-scoped.
func (r *SnapshotRepo) ByID(ctx context.Context, tenantID, id string) (*model.StructureSnapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM structure_snapshots
		WHERE id = ? AND tenant_id = ?`, id, tenantID)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	return s, err
}

// ListByCourse returns a course's snapshots, newest first.
func (r *SnapshotRepo) ListByCourse(ctx context.Context, tenantID, courseID string) ([]*model.StructureSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM structure_snapshots
		WHERE tenant_id = ? AND course_id = ?
		ORDER BY created_at DESC`, tenantID, courseID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.StructureSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
