// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coursesmith/coursesmith/internal/control/http/problem"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/ratelimit"
)

// HeaderAPIKey carries the credential on every authenticated request.
const HeaderAPIKey = "X-API-Key"

// KeyLookup resolves presented credentials against storage.
type KeyLookup interface {
	// APIKeyByHash returns the key record for a hash, or fault.ErrNotFound.
	APIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	// TouchAPIKey updates last_used_at. Failures are logged, never surfaced.
	TouchAPIKey(ctx context.Context, keyID string, at time.Time) error
}

// Middleware authenticates via X-API-Key. Unknown, malformed and inactive
// keys are indistinguishable to the caller: all yield 401.
func Middleware(lookup KeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.WithComponentFromContext(r.Context(), "auth")

			full := r.Header.Get(HeaderAPIKey)
			if full == "" {
				logger.Warn().Str(log.FieldEvent, "auth.missing_key").Msg("api key header missing")
				unauthorized(w, r)
				return
			}
			if !ValidKeyFormat(full) {
				logger.Warn().Str(log.FieldEvent, "auth.malformed_key").Msg("api key malformed")
				unauthorized(w, r)
				return
			}

			key, err := lookup.APIKeyByHash(r.Context(), HashAPIKey(full))
			if err != nil {
				if !errors.Is(err, fault.ErrNotFound) {
					logger.Error().Err(err).Str(log.FieldEvent, "auth.lookup_failed").Msg("api key lookup failed")
					problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal,
						"Internal Server Error", "", nil)
					return
				}
				logger.Warn().Str(log.FieldEvent, "auth.unknown_key").Msg("api key not found")
				unauthorized(w, r)
				return
			}
			if !key.IsActive {
				logger.Warn().
					Str(log.FieldEvent, "auth.inactive_key").
					Str("key_prefix", key.KeyPrefix).
					Msg("api key revoked")
				unauthorized(w, r)
				return
			}

			if err := lookup.TouchAPIKey(r.Context(), key.ID, time.Now()); err != nil {
				logger.Warn().Err(err).Msg("last_used update failed")
			}

			ctx := ContextWithPrincipal(r.Context(), &Principal{TenantID: key.TenantID, Key: key})
			ctx = log.ContextWithTenantID(ctx, key.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope gates a route on the principal holding at least one of the
// given scopes.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				unauthorized(w, r)
				return
			}
			if !p.HasScope(scopes...) {
				log.WithComponentFromContext(r.Context(), "auth").Warn().
					Str(log.FieldEvent, "auth.missing_scope").
					Strs("required_any", scopes).
					Msg("scope denied")
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden,
					"Forbidden", "key lacks required scope", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies the per-key sliding-window limit for one named scope.
// The limit itself comes from the key record via limitFor; zero or negative
// means unlimited.
func RateLimit(limiter *ratelimit.Limiter, scope string, limitFor func(*model.APIKey) int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				unauthorized(w, r)
				return
			}
			limit := limitFor(p.Key)
			if limit > 0 {
				allowed, retryAfter := limiter.Check(p.TenantID+":"+scope, limit)
				if !allowed {
					log.WithComponentFromContext(r.Context(), "auth").Warn().
						Str(log.FieldEvent, "auth.rate_limited").
						Str("scope", scope).
						Int("retry_after", retryAfter).
						Msg("rate limit exceeded")
					problem.RateLimited(w, r, retryAfter)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
		"Unauthorized", "missing or invalid API key", nil)
}
