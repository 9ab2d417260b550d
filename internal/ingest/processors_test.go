// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

type fakeTranscriber struct {
	transcript *Transcript
	err        error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (*Transcript, error) {
	return f.transcript, f.err
}

type fakeExtractor struct {
	deck *SlideDeck
	err  error
}

func (f *fakeExtractor) ExtractSlides(context.Context, string) (*SlideDeck, error) {
	return f.deck, f.err
}

func TestTextProcessor(t *testing.T) {
	p := NewTextProcessor()
	entry := &model.MaterialEntry{Filename: "notes.txt", SourceType: model.SourceText}

	res, err := p.Process(context.Background(), entry, []byte("  hello world  \n"))
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Content)

	_, err = p.Process(context.Background(), entry, []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)

	_, err = p.Process(context.Background(), entry, []byte("   \n\t"))
	require.Error(t, err)
}

func TestVideoProcessor(t *testing.T) {
	tr := &Transcript{Segments: []Segment{
		{Start: 0, End: 4.5, Text: "Welcome to the course."},
		{Start: 4.5, End: 9, Text: "  "},
		{Start: 3671, End: 3680, Text: "And that wraps it up."},
	}}
	p := NewVideoProcessor(&fakeTranscriber{transcript: tr})
	entry := &model.MaterialEntry{Filename: "lecture.mp4", StorageKey: "c1/x/lecture.mp4"}

	res, err := p.Process(context.Background(), entry, nil)
	require.NoError(t, err)
	require.Contains(t, res.Content, "[0:00] Welcome to the course.")
	require.Contains(t, res.Content, "[1:01:11] And that wraps it up.")
	require.NotContains(t, res.Content, "[0:04]")

	p = NewVideoProcessor(&fakeTranscriber{err: errors.New("gpu offline")})
	_, err = p.Process(context.Background(), entry, nil)
	require.ErrorContains(t, err, "gpu offline")

	p = NewVideoProcessor(&fakeTranscriber{transcript: &Transcript{}})
	_, err = p.Process(context.Background(), entry, nil)
	require.ErrorContains(t, err, "empty transcript")
}

func TestPresentationProcessor(t *testing.T) {
	deck := &SlideDeck{Slides: []Slide{
		{Number: 1, Title: "Intro", Text: "Agenda for today"},
		{Number: 2, Text: "No title on this one"},
	}}
	p := NewPresentationProcessor(&fakeExtractor{deck: deck})
	entry := &model.MaterialEntry{Filename: "deck.pptx", StorageKey: "c1/x/deck.pptx"}

	res, err := p.Process(context.Background(), entry, nil)
	require.NoError(t, err)
	require.Contains(t, res.Content, "## Slide 1: Intro")
	require.Contains(t, res.Content, "Agenda for today")
	require.Contains(t, res.Content, "## Slide 2\n")

	p = NewPresentationProcessor(&fakeExtractor{deck: &SlideDeck{}})
	_, err = p.Process(context.Background(), entry, nil)
	require.ErrorContains(t, err, "no slides")
}

func TestWebProcessor(t *testing.T) {
	html := `<html><head><title>Go Patterns</title><style>p{color:red}</style></head>
<body><nav><a href="/">home</a></nav>
<h1>Go Patterns</h1><p>Accept <b>interfaces</b>, return structs.</p>
<script>alert(1)</script>
<footer>copyright</footer></body></html>`

	p := NewWebProcessor()
	entry := &model.MaterialEntry{Filename: "page.html", SourceType: model.SourceWeb}

	res, err := p.Process(context.Background(), entry, []byte(html))
	require.NoError(t, err)
	require.Equal(t, "Go Patterns", res.Title)
	require.Contains(t, res.Content, "# Go Patterns")
	require.Contains(t, res.Content, "**interfaces**")
	require.NotContains(t, res.Content, "alert")
	require.NotContains(t, res.Content, "copyright")
	require.NotContains(t, res.Content, "home")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewTextProcessor())

	p, err := r.Get(model.SourceText)
	require.NoError(t, err)
	require.Equal(t, model.SourceText, p.SourceType())

	_, err = r.Get(model.SourceVideo)
	require.ErrorContains(t, err, "no processor registered")
}
