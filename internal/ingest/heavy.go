// SPDX-License-Identifier: MIT

package ingest

import "context"

// The heavy media steps run on external capacity (GPU transcription,
// rendering farms). The ingest pipeline only sees these contracts; wiring
// decides whether they hit a local binary, a remote service, or a fake.

// Segment is one timed span of a transcript.
type Segment struct {
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the output of audio/video transcription.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Transcriber turns a stored media object into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, storageKey string) (*Transcript, error)
}

// Slide is one extracted slide.
type Slide struct {
	Number int    `json:"number"` // 1-based
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
}

// SlideDeck is the output of presentation extraction.
type SlideDeck struct {
	Slides []Slide `json:"slides"`
}

// SlideExtractor turns a stored presentation object into its slides.
type SlideExtractor interface {
	ExtractSlides(ctx context.Context, storageKey string) (*SlideDeck, error)
}
