// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// VideoProcessor transcribes a video and renders the transcript as text.
type VideoProcessor struct {
	Transcriber Transcriber
}

// NewVideoProcessor creates the processor.
func NewVideoProcessor(t Transcriber) *VideoProcessor {
	return &VideoProcessor{Transcriber: t}
}

// SourceType implements Processor.
func (p *VideoProcessor) SourceType() model.SourceType { return model.SourceVideo }

// Process implements Processor. The raw bytes are ignored; transcription reads
// the stored object directly via its storage key.
func (p *VideoProcessor) Process(ctx context.Context, entry *model.MaterialEntry, _ []byte) (*Result, error) {
	if p.Transcriber == nil {
		return nil, fmt.Errorf("ingest: no transcriber configured")
	}
	tr, err := p.Transcriber.Transcribe(ctx, entry.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("ingest: transcribe %s: %w", entry.Filename, err)
	}
	if len(tr.Segments) == 0 {
		return nil, fmt.Errorf("ingest: %s produced an empty transcript", entry.Filename)
	}

	var b strings.Builder
	for _, seg := range tr.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", formatTimecode(seg.Start), text)
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil, fmt.Errorf("ingest: %s transcript contains no speech", entry.Filename)
	}
	return &Result{Content: content}, nil
}

// formatTimecode renders seconds as h:mm:ss or m:ss.
func formatTimecode(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
