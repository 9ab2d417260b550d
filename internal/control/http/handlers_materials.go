// SPDX-License-Identifier: MIT

package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/ingest"
	"github.com/coursesmith/coursesmith/internal/jobs"
)

const defaultMaxUploadBytes = 512 << 20

// fetchClient pulls source_url materials. Bounded so a slow or huge origin
// cannot wedge the handler.
var fetchClient = &http.Client{Timeout: 30 * time.Second}

const maxFetchBytes = 64 << 20

type materialResponse struct {
	Entry entryResponse `json:"entry"`
	JobID string        `json:"job_id,omitempty"`
}

func validSourceType(t model.SourceType) bool {
	switch t {
	case model.SourceVideo, model.SourcePresentation, model.SourceText, model.SourceWeb:
		return true
	}
	return false
}

func (s *Server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
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

	maxBytes := s.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed multipart form"})
		return
	}

	sourceType := model.SourceType(r.FormValue("source_type"))
	if !validSourceType(sourceType) {
		s.writeError(w, r, &fault.ValidationError{Field: "source_type",
			Message: fmt.Sprintf("unknown source type %q", sourceType)})
		return
	}
	nodeID := r.FormValue("node_id")
	if nodeID == "" {
		s.writeError(w, r, &fault.ValidationError{Field: "node_id", Message: "node_id is required"})
		return
	}
	if _, err := s.Store.Materials.NodeByID(r.Context(), course.ID, nodeID); err != nil {
		s.writeError(w, r, err)
		return
	}

	entry := &model.MaterialEntry{
		NodeID:     nodeID,
		CourseID:   course.ID,
		TenantID:   principal.TenantID,
		SourceType: sourceType,
	}

	sourceURL := r.FormValue("source_url")
	file, header, fileErr := r.FormFile("file")
	switch {
	case fileErr == nil:
		defer func() { _ = file.Close() }()
		entry.Filename = header.Filename
		res, err := s.Blob.Put(r.Context(), course.ID, header.Filename, file, header.Size)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		entry.StorageKey = res.Key

	case sourceURL != "":
		entry.SourceURL = sourceURL
		entry.Filename = sourceURL
		key, err := s.fetchToBlob(r, course.ID, sourceURL)
		if err != nil {
			s.writeError(w, r, &fault.ValidationError{Field: "source_url",
				Message: fmt.Sprintf("fetch failed: %v", err)})
			return
		}
		entry.StorageKey = key

	default:
		s.writeError(w, r, &fault.ValidationError{Field: "file",
			Message: "either a file or source_url is required"})
		return
	}

	if err := s.Store.Materials.CreateEntry(r.Context(), entry); err != nil {
		s.writeError(w, r, err)
		return
	}

	out := materialResponse{Entry: entryJSON(entry)}
	job, err := s.Jobs.RequestIngest(r.Context(), jobs.IngestRequest{
		TenantID: principal.TenantID,
		CourseID: course.ID,
		EntryID:  entry.ID,
		Priority: model.JobPriority(r.FormValue("priority")),
	})
	if err == nil {
		out.JobID = job.ID
	}
	// an ingest submission failure leaves the entry RAW for a later retry; the
	// material itself was accepted
	respondJSON(w, http.StatusCreated, out)
}

// fetchToBlob downloads a source URL into object storage.
func (s *Server) fetchToBlob(r *http.Request, courseID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("origin returned %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)
	res, err := s.Blob.Put(r.Context(), courseID, sourceURL, body, resp.ContentLength)
	if err != nil {
		return "", err
	}
	return res.Key, nil
}

type slideMappingRequest struct {
	NodeID              string             `json:"node_id"`
	PresentationEntryID string             `json:"presentation_entry_id"`
	VideoEntryID        string             `json:"video_entry_id"`
	Mappings            []slideMappingItem `json:"mappings"`
}

type slideMappingItem struct {
	SlideNumber        int      `json:"slide_number"`
	VideoTimecodeStart float64  `json:"video_timecode_start"`
	VideoTimecodeEnd   *float64 `json:"video_timecode_end,omitempty"`
}

func (s *Server) handleCreateSlideMapping(w http.ResponseWriter, r *http.Request) {
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

	var req slideMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &fault.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	if len(req.Mappings) == 0 {
		s.writeError(w, r, &fault.ValidationError{Field: "mappings", Message: "at least one mapping is required"})
		return
	}
	pres, err := s.Store.Materials.EntryByID(r.Context(), principal.TenantID, req.PresentationEntryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Store.Materials.EntryByID(r.Context(), principal.TenantID, req.VideoEntryID); err != nil {
		s.writeError(w, r, err)
		return
	}

	mappings := make([]*model.SlideVideoMapping, 0, len(req.Mappings))
	for i, m := range req.Mappings {
		mappings = append(mappings, &model.SlideVideoMapping{
			TenantID:            principal.TenantID,
			NodeID:              req.NodeID,
			PresentationEntryID: req.PresentationEntryID,
			VideoEntryID:        req.VideoEntryID,
			SlideNumber:         m.SlideNumber,
			VideoTimecodeStart:  m.VideoTimecodeStart,
			VideoTimecodeEnd:    m.VideoTimecodeEnd,
			Position:            i,
			ValidationState:     model.MappingPendingValidation,
		})
	}
	ingest.ValidateMappings(mappings)

	if err := s.Store.Mappings.ReplaceForPresentation(r.Context(), pres.ID, mappings); err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]mappingResponse, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, mappingJSON(m))
	}
	respondJSON(w, http.StatusCreated, out)
}
