// SPDX-License-Identifier: MIT

package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/jobs"
)

type generateRequest struct {
	NodeID        string `json:"node_id,omitempty"`
	Mode          string `json:"mode"`
	Priority      string `json:"priority,omitempty"`
	PromptVersion string `json:"prompt_version,omitempty"`
}

type generateResponse struct {
	Job      jobResponse       `json:"job"`
	Estimate *estimateResponse `json:"estimate,omitempty"`
}

func (s *Server) handleRequestGeneration(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	courseID := chi.URLParam(r, "courseID")

	if _, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, courseID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}

	job, est, err := s.Jobs.RequestGeneration(r.Context(), jobs.GenerationRequest{
		TenantID:      principal.TenantID,
		CourseID:      courseID,
		NodeID:        req.NodeID,
		Mode:          model.GenerationMode(req.Mode),
		Priority:      model.JobPriority(req.Priority),
		PromptVersion: req.PromptVersion,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, generateResponse{Job: jobJSON(job), Estimate: estimateJSON(est)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	job, err := s.Store.Jobs.ByID(r.Context(), principal.TenantID, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobJSON(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	job, err := s.Jobs.Cancel(r.Context(), principal.TenantID, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobJSON(job))
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	job, err := s.Jobs.Retry(r.Context(), principal.TenantID, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobJSON(job))
}
