// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// PresentationProcessor extracts slide text from a presentation file.
type PresentationProcessor struct {
	Extractor SlideExtractor
}

// NewPresentationProcessor creates the processor.
func NewPresentationProcessor(e SlideExtractor) *PresentationProcessor {
	return &PresentationProcessor{Extractor: e}
}

// SourceType implements Processor.
func (p *PresentationProcessor) SourceType() model.SourceType { return model.SourcePresentation }

// Process implements Processor. Raw bytes are ignored; extraction reads the
// stored object via its storage key.
func (p *PresentationProcessor) Process(ctx context.Context, entry *model.MaterialEntry, _ []byte) (*Result, error) {
	if p.Extractor == nil {
		return nil, fmt.Errorf("ingest: no slide extractor configured")
	}
	deck, err := p.Extractor.ExtractSlides(ctx, entry.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("ingest: extract slides from %s: %w", entry.Filename, err)
	}
	if len(deck.Slides) == 0 {
		return nil, fmt.Errorf("ingest: %s contains no slides", entry.Filename)
	}

	var b strings.Builder
	for _, slide := range deck.Slides {
		if slide.Title != "" {
			fmt.Fprintf(&b, "## Slide %d: %s\n\n", slide.Number, slide.Title)
		} else {
			fmt.Fprintf(&b, "## Slide %d\n\n", slide.Number)
		}
		if text := strings.TrimSpace(slide.Text); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return &Result{Content: strings.TrimSpace(b.String())}, nil
}
