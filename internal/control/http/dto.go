// SPDX-License-Identifier: MIT

package http

import (
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/estimate"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/tree"
)

type courseResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Nodes       []nodeResponse `json:"nodes"`
}

type nodeResponse struct {
	ID          string          `json:"id"`
	ParentID    string          `json:"parent_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Position    int             `json:"position"`
	Entries     []entryResponse `json:"entries"`
	Children    []nodeResponse  `json:"children"`
}

type entryResponse struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	SourceType   string     `json:"source_type"`
	SourceURL    string     `json:"source_url,omitempty"`
	State        string     `json:"state"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type jobResponse struct {
	ID               string     `json:"id"`
	CourseID         string     `json:"course_id"`
	NodeID           string     `json:"node_id,omitempty"`
	Type             string     `json:"type"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	ResultMaterialID string     `json:"result_material_id,omitempty"`
	ResultSnapshotID string     `json:"result_snapshot_id,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	QueuedAt         time.Time  `json:"queued_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	EstimatedAt      *time.Time `json:"estimated_at,omitempty"`
}

type estimateResponse struct {
	Position          int        `json:"position"`
	EstimatedStart    time.Time  `json:"estimated_start"`
	EstimatedComplete time.Time  `json:"estimated_complete"`
	NextWindowStart   *time.Time `json:"next_window_start,omitempty"`
	Summary           string     `json:"summary"`
}

type mappingResponse struct {
	ID                 string   `json:"id"`
	SlideNumber        int      `json:"slide_number"`
	VideoTimecodeStart float64  `json:"video_timecode_start"`
	VideoTimecodeEnd   *float64 `json:"video_timecode_end,omitempty"`
	Position           int      `json:"position"`
	ValidationState    string   `json:"validation_state"`
	ValidationErrors   string   `json:"validation_errors,omitempty"`
}

type costReportResponse struct {
	TotalUSD   float64                   `json:"total_usd"`
	TotalCalls int                       `json:"total_calls"`
	ByAction   map[string]costBucketJSON `json:"by_action"`
	ByProvider map[string]costBucketJSON `json:"by_provider"`
	ByModel    map[string]costBucketJSON `json:"by_model"`
	Lines      []costLineJSON            `json:"lines"`
}

type costBucketJSON struct {
	Calls   int     `json:"calls"`
	CostUSD float64 `json:"cost_usd"`
}

type costLineJSON struct {
	Action    string  `json:"action"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`
	Calls     int     `json:"calls"`
	TokensIn  int     `json:"tokens_in"`
	TokensOut int     `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
}

func entryJSON(e *model.MaterialEntry) entryResponse {
	return entryResponse{
		ID:           e.ID,
		Filename:     e.Filename,
		SourceType:   string(e.SourceType),
		SourceURL:    e.SourceURL,
		State:        string(e.State),
		ErrorMessage: e.ErrorMessage,
		ProcessedAt:  e.ProcessedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func nodeJSON(n *tree.Node) nodeResponse {
	out := nodeResponse{
		ID:          n.ID,
		ParentID:    n.ParentID,
		Title:       n.Title,
		Description: n.Description,
		Position:    n.Position,
		Entries:     make([]entryResponse, 0, len(n.Entries)),
		Children:    make([]nodeResponse, 0, len(n.Children)),
	}
	for _, e := range n.Entries {
		out.Entries = append(out.Entries, entryJSON(e))
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, nodeJSON(c))
	}
	return out
}

func jobJSON(j *model.Job) jobResponse {
	return jobResponse{
		ID:               j.ID,
		CourseID:         j.CourseID,
		NodeID:           j.NodeID,
		Type:             string(j.Type),
		Priority:         string(j.Priority),
		Status:           string(j.Status),
		ResultMaterialID: j.ResultMaterialID,
		ResultSnapshotID: j.ResultSnapshotID,
		ErrorMessage:     j.ErrorMessage,
		QueuedAt:         j.QueuedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		EstimatedAt:      j.EstimatedAt,
	}
}

func estimateJSON(e *estimate.Estimate) *estimateResponse {
	if e == nil {
		return nil
	}
	return &estimateResponse{
		Position:          e.Position,
		EstimatedStart:    e.EstimatedStart,
		EstimatedComplete: e.EstimatedComplete,
		NextWindowStart:   e.NextWindowStart,
		Summary:           e.Summary,
	}
}

func mappingJSON(m *model.SlideVideoMapping) mappingResponse {
	return mappingResponse{
		ID:                 m.ID,
		SlideNumber:        m.SlideNumber,
		VideoTimecodeStart: m.VideoTimecodeStart,
		VideoTimecodeEnd:   m.VideoTimecodeEnd,
		Position:           m.Position,
		ValidationState:    string(m.ValidationState),
		ValidationErrors:   m.ValidationErrors,
	}
}

func costJSON(lines []store.CostLine) costReportResponse {
	out := costReportResponse{
		ByAction:   map[string]costBucketJSON{},
		ByProvider: map[string]costBucketJSON{},
		ByModel:    map[string]costBucketJSON{},
		Lines:      make([]costLineJSON, 0, len(lines)),
	}
	add := func(m map[string]costBucketJSON, key string, l store.CostLine) {
		b := m[key]
		b.Calls += l.Calls
		b.CostUSD += l.CostUSD
		m[key] = b
	}
	for _, l := range lines {
		out.TotalUSD += l.CostUSD
		out.TotalCalls += l.Calls
		add(out.ByAction, l.Action, l)
		add(out.ByProvider, l.Provider, l)
		add(out.ByModel, l.Model, l)
		out.Lines = append(out.Lines, costLineJSON{
			Action: l.Action, Provider: l.Provider, Model: l.Model, Calls: l.Calls,
			TokensIn: l.TokensIn, TokensOut: l.TokensOut, CostUSD: l.CostUSD,
		})
	}
	return out
}
