// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/provider"
)

// LLMCallRepo is the append-only audit log of provider invocations.
type LLMCallRepo struct {
	db *sql.DB
}

// RecordAttempt persists one router attempt. Tenant and course correlation
// travels on the context. The signature matches the router's log callback.
func (r *LLMCallRepo) RecordAttempt(ctx context.Context, res *provider.Response, success bool, errMsg string) error {
	return r.Insert(ctx, &model.LLMCall{
		TenantID:     log.TenantIDFromContext(ctx),
		CourseID:     log.CourseIDFromContext(ctx),
		Action:       res.Action,
		Strategy:     res.Strategy,
		Provider:     res.Provider,
		Model:        res.Model,
		TokensIn:     res.TokensIn,
		TokensOut:    res.TokensOut,
		LatencyMS:    res.LatencyMS,
		CostUSD:      res.CostUSD,
		Success:      success,
		ErrorMessage: errMsg,
		CreatedAt:    res.Timestamp,
	})
}

// Insert appends one audit record.
func (r *LLMCallRepo) Insert(ctx context.Context, c *model.LLMCall) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_calls
			(id, tenant_id, course_id, action, strategy, provider, model,
			 tokens_in, tokens_out, latency_ms, cost_usd, success, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.CourseID, c.Action, c.Strategy, c.Provider, c.Model,
		c.TokensIn, c.TokensOut, c.LatencyMS, c.CostUSD, c.Success, c.ErrorMessage, c.CreatedAt)
	return err
}

// ListByCourse returns a course's call history, newest first, capped.
func (r *LLMCallRepo) ListByCourse(ctx context.Context, tenantID, courseID string, limit int) ([]*model.LLMCall, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, course_id, action, strategy, provider, model,
			tokens_in, tokens_out, latency_ms, cost_usd, success, error_message, created_at
		FROM llm_calls
		WHERE tenant_id = ? AND course_id = ?
		ORDER BY created_at DESC LIMIT ?`, tenantID, courseID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.LLMCall
	for rows.Next() {
		var c model.LLMCall
		if err := rows.Scan(&c.ID, &c.TenantID, &c.CourseID, &c.Action, &c.Strategy,
			&c.Provider, &c.Model, &c.TokensIn, &c.TokensOut, &c.LatencyMS,
			&c.CostUSD, &c.Success, &c.ErrorMessage, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CostLine is one aggregation row of the cost report.
type CostLine struct {
	Action    string
	Provider  string
	Model     string
	Calls     int
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// CostReport aggregates spend per (action, provider, model) for a course,
// successful calls only.
func (r *LLMCallRepo) CostReport(ctx context.Context, tenantID, courseID string) ([]CostLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, provider, model, COUNT(*), SUM(tokens_in), SUM(tokens_out), SUM(cost_usd)
		FROM llm_calls
		WHERE tenant_id = ? AND course_id = ? AND success = 1
		GROUP BY action, provider, model
		ORDER BY SUM(cost_usd) DESC`, tenantID, courseID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CostLine
	for rows.Next() {
		var l CostLine
		if err := rows.Scan(&l.Action, &l.Provider, &l.Model, &l.Calls, &l.TokensIn, &l.TokensOut, &l.CostUSD); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
