// SPDX-License-Identifier: MIT

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// WebProcessor converts fetched HTML pages into markdown.
type WebProcessor struct{}

// NewWebProcessor creates the processor.
func NewWebProcessor() *WebProcessor { return &WebProcessor{} }

// SourceType implements Processor.
func (p *WebProcessor) SourceType() model.SourceType { return model.SourceWeb }

// Process implements Processor. Chrome elements (scripts, navigation,
// footers) are stripped before conversion so only article content survives.
func (p *WebProcessor) Process(_ context.Context, entry *model.MaterialEntry, raw []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse HTML from %s: %w", entry.Filename, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, header, footer, aside, iframe").Remove()

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("ingest: serialize body of %s: %w", entry.Filename, err)
	}
	if strings.TrimSpace(body) == "" {
		// fragment without a body element, convert the whole document
		body = string(raw)
	}

	markdown, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("ingest: convert %s to markdown: %w", entry.Filename, err)
	}
	content := strings.TrimSpace(markdown)
	if content == "" {
		return nil, fmt.Errorf("ingest: %s contains no readable content", entry.Filename)
	}
	return &Result{Content: content, Title: title}, nil
}
