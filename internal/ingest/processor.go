// SPDX-License-Identifier: MIT

// Package ingest turns raw uploaded materials into normalized text content.
// Each source type has a processor; heavy media steps (transcription, slide
// extraction) are callable contracts satisfied by external services.
package ingest

import (
	"context"
	"fmt"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// Result is the outcome of processing one entry.
type Result struct {
	// Content is the normalized text that feeds fingerprinting and
	// generation prompts.
	Content string
	// Title is an optional extracted display title.
	Title string
	// Mappings are slide/video alignments, presentations only.
	Mappings []*model.SlideVideoMapping
}

// Processor converts one raw material into normalized content.
type Processor interface {
	SourceType() model.SourceType
	Process(ctx context.Context, entry *model.MaterialEntry, raw []byte) (*Result, error)
}

// Registry maps source types to their processors.
type Registry struct {
	processors map[model.SourceType]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[model.SourceType]Processor)}
}

// Register binds a processor. Later registrations win, which lets tests swap
// implementations.
func (r *Registry) Register(p Processor) {
	r.processors[p.SourceType()] = p
}

// Get returns the processor for a source type.
func (r *Registry) Get(t model.SourceType) (Processor, error) {
	p, ok := r.processors[t]
	if !ok {
		return nil, fmt.Errorf("ingest: no processor registered for source type %q", t)
	}
	return p, nil
}
