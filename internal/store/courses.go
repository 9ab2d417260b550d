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

// CourseRepo persists courses, tenant-scoped on every query.
type CourseRepo struct {
	db *sql.DB
}

// Create inserts a course.
func (r *CourseRepo) Create(ctx context.Context, c *model.Course) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO courses (id, tenant_id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Title, c.Description, c.CreatedAt, c.UpdatedAt)
	return err
}

// ByID returns one course or fault.ErrNotFound. Rows of other tenants are
// invisible.
func (r *CourseRepo) ByID(ctx context.Context, tenantID, id string) (*model.Course, error) {
	var c model.Course
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, title, description, created_at, updated_at
		FROM courses WHERE id = ? AND tenant_id = ?`, id, tenantID).
		Scan(&c.ID, &c.TenantID, &c.Title, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns the tenant's courses, newest first.
func (r *CourseRepo) List(ctx context.Context, tenantID string) ([]*model.Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, title, description, created_at, updated_at
		FROM courses WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Title, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Update rewrites title and description.
func (r *CourseRepo) Update(ctx context.Context, tenantID string, c *model.Course) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE courses SET title = ?, description = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		c.Title, c.Description, c.UpdatedAt, c.ID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// Delete removes the course row; nodes, entries, jobs and snapshots under
// it follow through the cascade.
func (r *CourseRepo) Delete(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM courses WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}
