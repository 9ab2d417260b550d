// SPDX-License-Identifier: MIT

package http

import (
	"net/http"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

func (s *Server) handleCostReport(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	courseID := r.URL.Query().Get("course_id")
	if courseID == "" {
		s.writeError(w, r, &fault.ValidationError{Field: "course_id", Message: "course_id is required"})
		return
	}
	if _, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, courseID); err != nil {
		s.writeError(w, r, err)
		return
	}

	lines, err := s.Store.LLMCalls.CostReport(r.Context(), principal.TenantID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, costJSON(lines))
}
