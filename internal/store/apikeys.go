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

// APIKeyRepo persists credential records. Lookup is by hash only; the repo
// never sees a full key. It satisfies auth.KeyLookup.
type APIKeyRepo struct {
	db *sql.DB
}

// Create inserts a key record.
func (r *APIKeyRepo) Create(ctx context.Context, k *model.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys
			(id, tenant_id, key_hash, key_prefix, label, scopes,
			 rate_limit_prep, rate_limit_check, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.TenantID, k.KeyHash, k.KeyPrefix, k.Label, jsonList(k.Scopes),
		k.RateLimitPrep, k.RateLimitCheck, k.IsActive, k.CreatedAt)
	return err
}

const apiKeyColumns = `id, tenant_id, key_hash, key_prefix, label, scopes,
	rate_limit_prep, rate_limit_check, is_active, created_at`

func scanAPIKey(row interface{ Scan(...any) error }) (*model.APIKey, error) {
	var k model.APIKey
	var scopes string
	err := row.Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.KeyPrefix, &k.Label, &scopes,
		&k.RateLimitPrep, &k.RateLimitCheck, &k.IsActive, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	if k.Scopes, err = parseList(scopes); err != nil {
		return nil, err
	}
	return &k, nil
}

// APIKeyByHash returns the key record whose SHA-256 matches, joined against
// the tenant so keys of suspended tenants authenticate as unknown.
func (r *APIKeyRepo) APIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT k.id, k.tenant_id, k.key_hash, k.key_prefix, k.label, k.scopes,
			k.rate_limit_prep, k.rate_limit_check, k.is_active, k.created_at
		FROM api_keys k
		JOIN tenants t ON t.id = k.tenant_id
		WHERE k.key_hash = ? AND t.is_active = 1`, hash)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	return k, err
}

// TouchAPIKey records the last use.
func (r *APIKeyRepo) TouchAPIKey(ctx context.Context, keyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at, keyID)
	return err
}

// Revoke deactivates a key within its tenant.
func (r *APIKeyRepo) Revoke(ctx context.Context, tenantID, keyID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0 WHERE id = ? AND tenant_id = ?`, keyID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

// ListByTenant returns all key records of a tenant, newest first.
func (r *APIKeyRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
