// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoteMedia_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transcribe", r.URL.Path)
		var req mediaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "course/lecture.mp4", req.StorageKey)
		_ = json.NewEncoder(w).Encode(Transcript{
			Language: "en",
			Segments: []Segment{{Start: 0, End: 4.5, Text: "welcome"}},
		})
	}))
	defer srv.Close()

	m := NewRemoteMedia(RemoteMediaOptions{BaseURL: srv.URL})
	tr, err := m.Transcribe(context.Background(), "course/lecture.mp4")
	require.NoError(t, err)
	require.Equal(t, "en", tr.Language)
	require.Len(t, tr.Segments, 1)
	require.Equal(t, "welcome", tr.Segments[0].Text)
}

func TestRemoteMedia_ExtractSlides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/slides", r.URL.Path)
		_ = json.NewEncoder(w).Encode(SlideDeck{
			Slides: []Slide{{Number: 1, Title: "Intro", Text: "agenda"}},
		})
	}))
	defer srv.Close()

	m := NewRemoteMedia(RemoteMediaOptions{BaseURL: srv.URL})
	deck, err := m.ExtractSlides(context.Background(), "course/deck.pdf")
	require.NoError(t, err)
	require.Len(t, deck.Slides, 1)
	require.Equal(t, "Intro", deck.Slides[0].Title)
}

func TestRemoteMedia_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gpu pool exhausted", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewRemoteMedia(RemoteMediaOptions{BaseURL: srv.URL})
	_, err := m.Transcribe(context.Background(), "course/lecture.mp4")
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Contains(t, err.Error(), "gpu pool exhausted")
}
