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
	"github.com/coursesmith/coursesmith/internal/tree"
)

// MaterialRepo persists the material tree: nodes and entries. It implements
// tree.Loader, tree.ParentResolver and fingerprint.Store so the traversal
// and hashing services run directly against it.
type MaterialRepo struct {
	db *sql.DB
}

const nodeColumns = `id, course_id, tenant_id, COALESCE(parent_id, ''), title,
	description, position, node_fingerprint, created_at, updated_at`

func scanNode(row interface{ Scan(...any) error }) (*model.MaterialNode, error) {
	var n model.MaterialNode
	err := row.Scan(&n.ID, &n.CourseID, &n.TenantID, &n.ParentID, &n.Title,
		&n.Description, &n.Position, &n.NodeFingerprint, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNode inserts a tree node.
func (r *MaterialRepo) CreateNode(ctx context.Context, n *model.MaterialNode) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO material_nodes
			(id, course_id, tenant_id, parent_id, title, description, position,
			 node_fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.CourseID, n.TenantID, nullStr(n.ParentID), n.Title, n.Description,
		n.Position, n.NodeFingerprint, n.CreatedAt, n.UpdatedAt)
	return err
}

// NodeByID implements tree.Loader. Callers verify course ownership first, so
// scoping is by course.
func (r *MaterialRepo) NodeByID(ctx context.Context, courseID, nodeID string) (*model.MaterialNode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM material_nodes
		WHERE id = ? AND course_id = ?`, nodeID, courseID)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &fault.NodeNotFound{NodeID: nodeID}
	}
	return n, err
}

// ChildrenOf implements tree.Loader. Roots are addressed by empty parentID.
func (r *MaterialRepo) ChildrenOf(ctx context.Context, courseID, parentID string) ([]*model.MaterialNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM material_nodes
		WHERE course_id = ? AND parent_id = ? ORDER BY position`
	args := []any{courseID, parentID}
	if parentID == "" {
		query = `SELECT ` + nodeColumns + ` FROM material_nodes
			WHERE course_id = ? AND parent_id IS NULL ORDER BY position`
		args = args[:1]
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.MaterialNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ParentOf implements tree.ParentResolver.
func (r *MaterialRepo) ParentOf(ctx context.Context, nodeID string) (string, error) {
	var parent string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(parent_id, '') FROM material_nodes WHERE id = ?`, nodeID).
		Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &fault.NodeNotFound{NodeID: nodeID}
	}
	return parent, err
}

// UpdateNode rewrites mutable node fields.
func (r *MaterialRepo) UpdateNode(ctx context.Context, tenantID string, n *model.MaterialNode) error {
	n.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE material_nodes SET title = ?, description = ?, position = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		n.Title, n.Description, n.Position, n.UpdatedAt, n.ID, tenantID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// DeleteNode removes a node; descendants and their entries go with it
// through the cascade.
func (r *MaterialRepo) DeleteNode(ctx context.Context, tenantID, nodeID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM material_nodes WHERE id = ? AND tenant_id = ?`, nodeID, tenantID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fault.ErrNotFound
	}
	return nil
}

const entryColumns = `id, node_id, course_id, tenant_id, filename, source_type,
	source_url, storage_key, state, processed_content, content_fingerprint,
	error_message, processed_at, created_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.MaterialEntry, error) {
	var e model.MaterialEntry
	var processedAt sql.NullTime
	err := row.Scan(&e.ID, &e.NodeID, &e.CourseID, &e.TenantID, &e.Filename, &e.SourceType,
		&e.SourceURL, &e.StorageKey, &e.State, &e.ProcessedContent, &e.ContentFingerprint,
		&e.ErrorMessage, &processedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.ProcessedAt = timePtr(processedAt)
	return &e, nil
}

// CreateEntry inserts a material entry in RAW state unless preset.
func (r *MaterialRepo) CreateEntry(ctx context.Context, e *model.MaterialEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.State == "" {
		e.State = model.EntryRaw
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO material_entries
			(id, node_id, course_id, tenant_id, filename, source_type, source_url,
			 storage_key, state, processed_content, content_fingerprint,
			 error_message, processed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.NodeID, e.CourseID, e.TenantID, e.Filename, e.SourceType, e.SourceURL,
		e.StorageKey, e.State, e.ProcessedContent, e.ContentFingerprint,
		e.ErrorMessage, nullTime(e.ProcessedAt), e.CreatedAt)
	return err
}

// EntryByID returns one entry, tenant-scoped.
func (r *MaterialRepo) EntryByID(ctx context.Context, tenantID, entryID string) (*model.MaterialEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM material_entries
		WHERE id = ? AND tenant_id = ?`, entryID, tenantID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	return e, err
}

// EntriesOf implements tree.Loader.
func (r *MaterialRepo) EntriesOf(ctx context.Context, nodeID string) ([]*model.MaterialEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM material_entries
		WHERE node_id = ? ORDER BY created_at`, nodeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.MaterialEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransitionEntry validates the state edge through the domain machine and
// persists the result.
func (r *MaterialRepo) TransitionEntry(ctx context.Context, tenantID, entryID string, to model.EntryState, msg string) (*model.MaterialEntry, error) {
	e, err := r.EntryByID(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if err := model.ApplyEntryTransition(e, to, msg, time.Now().UTC()); err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE material_entries SET state = ?, error_message = ?, processed_at = ?
		WHERE id = ?`,
		e.State, e.ErrorMessage, nullTime(e.ProcessedAt), e.ID)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SetProcessedContent stores ingestion output and invalidates the cached
// fingerprints along the ancestor chain so the next generation recomputes.
func (r *MaterialRepo) SetProcessedContent(ctx context.Context, tenantID, entryID, content string) error {
	e, err := r.EntryByID(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE material_entries SET processed_content = ?, content_fingerprint = ''
		WHERE id = ?`, content, entryID)
	if err != nil {
		return err
	}
	return r.invalidateNodeChain(ctx, e.NodeID)
}

// MarkIntegrityBroken flags an entry whose stored object no longer matches
// its fingerprint, and invalidates the chain above it.
func (r *MaterialRepo) MarkIntegrityBroken(ctx context.Context, tenantID, entryID, reason string) error {
	e, err := r.EntryByID(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE material_entries SET state = ?, error_message = ? WHERE id = ?`,
		model.EntryIntegrityBroken, reason, entryID)
	if err != nil {
		return err
	}
	return r.invalidateNodeChain(ctx, e.NodeID)
}

// invalidateNodeChain clears node_fingerprint on the node and every ancestor.
func (r *MaterialRepo) invalidateNodeChain(ctx context.Context, nodeID string) error {
	chain, err := tree.AncestorChain(ctx, r, nodeID)
	if err != nil {
		return err
	}
	ids := append([]string{nodeID}, chain...)
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE material_nodes SET node_fingerprint = '' WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// SaveEntryFingerprint implements fingerprint.Store.
func (r *MaterialRepo) SaveEntryFingerprint(ctx context.Context, entryID, fp string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE material_entries SET content_fingerprint = ? WHERE id = ?`, fp, entryID)
	return err
}

// SaveNodeFingerprint implements fingerprint.Store.
func (r *MaterialRepo) SaveNodeFingerprint(ctx context.Context, nodeID, fp string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE material_nodes SET node_fingerprint = ? WHERE id = ?`, fp, nodeID)
	return err
}
