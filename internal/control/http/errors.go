// SPDX-License-Identifier: MIT

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coursesmith/coursesmith/internal/control/http/problem"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/log"
)

// writeError maps the error taxonomy onto problem responses. Unknown errors
// become a generic 500; the debug flag gates verbose bodies.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *fault.ValidationError
		nnf *fault.NodeNotFound
		cf  *fault.Conflict
		nrm *fault.NoReadyMaterials
		te  *fault.TransitionError
		df  *fault.DependencyFailed
		amf *fault.AllModelsFailed
	)

	switch {
	case errors.Is(err, fault.ErrNotFound), errors.As(err, &nnf):
		// wrong tenant and genuinely missing are indistinguishable on purpose
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not Found", "", nil)

	case errors.Is(err, fault.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", "", nil)

	case errors.As(err, &ve):
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeValidation,
			"Validation Failed", ve.Message, map[string]any{"field": ve.Field})

	case errors.As(err, &cf):
		extra := map[string]any{"job_id": cf.JobID, "reason": cf.Reason}
		if cf.NodeID != "" {
			extra["node_id"] = cf.NodeID
		}
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict,
			"Generation Conflict", cf.Reason, extra)

	case errors.As(err, &nrm):
		stale := make([]map[string]any, 0, len(nrm.Stale))
		for _, se := range nrm.Stale {
			stale = append(stale, map[string]any{
				"entry_id": se.EntryID, "filename": se.Filename,
				"state": se.State, "node_id": se.NodeID, "node_title": se.NodeTitle,
			})
		}
		problem.Write(w, r, http.StatusUnprocessableEntity, problem.TypeNotReady,
			"Materials Not Ready", "some materials are not processed yet",
			map[string]any{"stale": stale})

	case errors.As(err, &te):
		problem.Write(w, r, http.StatusConflict, problem.TypeTransition,
			"Illegal Transition", te.Error(), nil)

	case errors.As(err, &df):
		problem.Write(w, r, http.StatusConflict, problem.TypeDependency,
			"Dependency Failed", df.Error(), nil)

	case errors.As(err, &amf):
		problem.Write(w, r, http.StatusBadGateway, problem.TypeModelsFailed,
			"All Models Failed", amf.Error(), nil)

	default:
		log.WithComponentFromContext(r.Context(), "http").Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).
			Msg("request failed")
		detail := ""
		if s.Debug {
			detail = err.Error()
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal,
			"Internal Server Error", detail, nil)
	}
}

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithComponent("http").Error().Err(err).Msg("failed to encode response")
	}
}
