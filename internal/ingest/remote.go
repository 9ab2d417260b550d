// SPDX-License-Identifier: MIT

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteMedia talks to the media service that owns transcription and slide
// extraction. The service reads objects by storage key from the shared blob
// store, so requests carry only the key.
type RemoteMedia struct {
	baseURL string
	client  *http.Client
}

// RemoteMediaOptions configures the client.
type RemoteMediaOptions struct {
	BaseURL string
	Timeout time.Duration
}

// NewRemoteMedia creates the client. Transcription of long recordings is
// slow, so the default timeout is generous.
func NewRemoteMedia(opts RemoteMediaOptions) *RemoteMedia {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Minute
	}
	return &RemoteMedia{
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type mediaRequest struct {
	StorageKey string `json:"storage_key"`
}

// Transcribe implements Transcriber.
func (m *RemoteMedia) Transcribe(ctx context.Context, storageKey string) (*Transcript, error) {
	var out Transcript
	if err := m.post(ctx, "/v1/transcribe", storageKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractSlides implements SlideExtractor.
func (m *RemoteMedia) ExtractSlides(ctx context.Context, storageKey string) (*SlideDeck, error) {
	var out SlideDeck
	if err := m.post(ctx, "/v1/slides", storageKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *RemoteMedia) post(ctx context.Context, path, storageKey string, out any) error {
	body, err := json.Marshal(mediaRequest{StorageKey: storageKey})
	if err != nil {
		return fmt.Errorf("media service: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("media service: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("media service: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("media service: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("media service: %s: decode response: %w", path, err)
	}
	return nil
}
