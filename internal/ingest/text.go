// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// TextProcessor passes plain text documents through with minimal cleanup.
type TextProcessor struct{}

// NewTextProcessor creates the processor.
func NewTextProcessor() *TextProcessor { return &TextProcessor{} }

// SourceType implements Processor.
func (p *TextProcessor) SourceType() model.SourceType { return model.SourceText }

// Process implements Processor.
func (p *TextProcessor) Process(_ context.Context, entry *model.MaterialEntry, raw []byte) (*Result, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("ingest: %s is not valid UTF-8 text", entry.Filename)
	}
	content := strings.TrimSpace(string(raw))
	if content == "" {
		return nil, fmt.Errorf("ingest: %s contains no text", entry.Filename)
	}
	return &Result{Content: content}, nil
}
