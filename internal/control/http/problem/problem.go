// SPDX-License-Identifier: MIT

// Package problem writes RFC 7807 problem+json responses. Every error the
// HTTP surface emits goes through Write so that shape, request ID echo and
// content type stay uniform.
package problem

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coursesmith/coursesmith/internal/log"
)

// HeaderRequestID is the canonical correlation header.
const HeaderRequestID = "X-Request-Id"

// Canonical problem type identifiers.
const (
	TypeUnauthorized = "auth/unauthorized"
	TypeForbidden    = "auth/forbidden"
	TypeRateLimited  = "auth/rate_limited"
	TypeNotFound     = "resource/not_found"
	TypeConflict     = "generation/conflict"
	TypeNotReady     = "generation/materials_not_ready"
	TypeValidation   = "request/validation"
	TypeTransition   = "job/illegal_transition"
	TypeInternal     = "system/internal"
	TypeDependency   = "job/dependency_failed"
	TypeModelsFailed = "llm/all_models_failed"
)

// Write writes an RFC 7807 problem details response.
//
//   - problemType: stable machine identifier (e.g. "generation/conflict")
//   - title: short human label
//   - detail: explanation of the specific failure, may be empty
//   - extra: top-level extension members; reserved keys are dropped
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string, extra map[string]any) {
	reqID := ""
	instance := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
		instance = r.URL.EscapedPath()
	}
	if reqID == "" {
		reqID = w.Header().Get(HeaderRequestID)
	}

	res := map[string]any{
		"type":   problemType,
		"title":  title,
		"status": status,
	}
	if detail != "" {
		res["detail"] = detail
	}
	if instance != "" {
		res["instance"] = instance
	}
	if reqID != "" {
		res[log.FieldRequestID] = reqID
		w.Header().Set(HeaderRequestID, reqID)
	}

	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance":
			log.WithComponent("http").Warn().Str("key", k).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.WithComponent("http").Error().Err(err).Str("type", problemType).Msg("failed to encode problem response")
	}
}

// RateLimited writes a 429 with a Retry-After header.
func RateLimited(w http.ResponseWriter, r *http.Request, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	Write(w, r, http.StatusTooManyRequests, TypeRateLimited, "Too Many Requests",
		"rate limit exceeded", map[string]any{"retry_after": retryAfterSeconds})
}
