// SPDX-License-Identifier: MIT

package auth

import (
	"context"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// Principal is the authenticated identity attached to a request: the tenant
// plus the key record that proved it.
type Principal struct {
	TenantID string
	Key      *model.APIKey
}

// HasScope reports whether the principal's key grants any of the wanted
// scopes.
func (p *Principal) HasScope(wanted ...string) bool {
	return p != nil && p.Key != nil && p.Key.HasScope(wanted...)
}

type ctxPrincipalKey struct{}

// ContextWithPrincipal stores the principal in the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

// PrincipalFromContext extracts the principal, or nil when the request was
// never authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxPrincipalKey{}).(*Principal)
	return p
}
