// SPDX-License-Identifier: MIT

package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/tree"
)

const maxTitleLength = 500

type createCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}

	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	if req.Title == "" {
		s.writeError(w, r, &fault.ValidationError{Field: "title", Message: "title is required"})
		return
	}
	if len(req.Title) > maxTitleLength {
		s.writeError(w, r, &fault.ValidationError{Field: "title", Message: "title exceeds 500 characters"})
		return
	}

	course := &model.Course{
		TenantID:    principal.TenantID,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := s.Store.Courses.Create(r.Context(), course); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, courseResponse{
		ID: course.ID, Title: course.Title, Description: course.Description,
		CreatedAt: course.CreatedAt, Nodes: []nodeResponse{},
	})
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	courses, err := s.Store.Courses.List(r.Context(), principal.TenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, courseResponse{
			ID: c.ID, Title: c.Title, Description: c.Description,
			CreatedAt: c.CreatedAt, Nodes: []nodeResponse{},
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	course, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	if req.Title == "" {
		s.writeError(w, r, &fault.ValidationError{Field: "title", Message: "title is required"})
		return
	}
	if len(req.Title) > maxTitleLength {
		s.writeError(w, r, &fault.ValidationError{Field: "title", Message: "title exceeds 500 characters"})
		return
	}

	course.Title = req.Title
	course.Description = req.Description
	if err := s.Store.Courses.Update(r.Context(), principal.TenantID, course); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, courseResponse{
		ID: course.ID, Title: course.Title, Description: course.Description,
		CreatedAt: course.CreatedAt, Nodes: []nodeResponse{},
	})
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	if err := s.Store.Courses.Delete(r.Context(), principal.TenantID, chi.URLParam(r, "courseID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	courseID := chi.URLParam(r, "courseID")

	course, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	roots, err := s.Store.Materials.ChildrenOf(r.Context(), course.ID, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := courseResponse{
		ID: course.ID, Title: course.Title, Description: course.Description,
		CreatedAt: course.CreatedAt, Nodes: make([]nodeResponse, 0, len(roots)),
	}
	for _, root := range roots {
		sub, err := tree.LoadSubtree(r.Context(), s.Store.Materials, course.ID, root.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.Nodes = append(out.Nodes, nodeJSON(sub))
	}
	respondJSON(w, http.StatusOK, out)
}

type createLessonRequest struct {
	ParentID    string `json:"parent_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position,omitempty"`
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	course, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req createLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	if req.Title == "" {
		s.writeError(w, r, &fault.ValidationError{Field: "title", Message: "title is required"})
		return
	}
	if req.ParentID != "" {
		if _, err := s.Store.Materials.NodeByID(r.Context(), course.ID, req.ParentID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	node := &model.MaterialNode{
		CourseID:    course.ID,
		TenantID:    principal.TenantID,
		ParentID:    req.ParentID,
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
	}
	if err := s.Store.Materials.CreateNode(r.Context(), node); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, nodeResponse{
		ID: node.ID, ParentID: node.ParentID, Title: node.Title,
		Description: node.Description, Position: node.Position,
		Entries: []entryResponse{}, Children: []nodeResponse{},
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, fault.ErrForbidden)
		return
	}
	courseID := chi.URLParam(r, "courseID")
	lessonID := chi.URLParam(r, "lessonID")

	// resolve through the course so a foreign tenant's lesson reads as missing
	if _, err := s.Store.Courses.ByID(r.Context(), principal.TenantID, courseID); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, err := s.Store.Materials.NodeByID(r.Context(), courseID, lessonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.Store.Materials.EntriesOf(r.Context(), node.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := nodeResponse{
		ID: node.ID, ParentID: node.ParentID, Title: node.Title,
		Description: node.Description, Position: node.Position,
		Entries: make([]entryResponse, 0, len(entries)), Children: []nodeResponse{},
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, entryJSON(e))
	}
	respondJSON(w, http.StatusOK, out)
}
