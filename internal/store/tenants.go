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

// TenantRepo manages the isolation boundary itself and is therefore the one
// repository without a tenant filter.
type TenantRepo struct {
	db *sql.DB
}

// Create inserts a tenant. A fresh UUID is assigned when ID is empty.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, is_active, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, t.IsActive, t.CreatedAt)
	return err
}

// ByID returns one tenant or fault.ErrNotFound.
func (r *TenantRepo) ByID(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ByName returns one tenant or fault.ErrNotFound. Names are unique.
func (r *TenantRepo) ByName(ctx context.Context, name string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at FROM tenants WHERE name = ?`, name).
		Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetActive toggles the tenant.
func (r *TenantRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tenants SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}
