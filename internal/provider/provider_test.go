// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

func TestToggle_CooldownReenables(t *testing.T) {
	cur := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tg := &toggle{cooldown: 30 * time.Second, now: func() time.Time { return cur }}

	require.True(t, tg.Enabled())

	tg.Disable("429 from upstream")
	require.False(t, tg.Enabled())

	cur = cur.Add(31 * time.Second)
	require.True(t, tg.Enabled())
	// stays enabled afterwards
	require.True(t, tg.Enabled())
}

func TestToggle_EnableClearsImmediately(t *testing.T) {
	tg := &toggle{}
	tg.Disable("maintenance")
	require.False(t, tg.Enabled())
	tg.Enable()
	require.True(t, tg.Enabled())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewOpenAI(OpenAIOptions{APIKey: "k"}))
	r.Register(NewAnthropic(AnthropicOptions{APIKey: "k"}))

	p, err := r.Get("openai")
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	_, err = r.Get("mistral")
	require.Error(t, err)

	require.Equal(t, []string{"anthropic", "openai"}, r.Names())
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-smart", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "hello"}}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{APIKey: "test-key", BaseURL: srv.URL, DefaultModel: "gpt-smart"})
	res, err := p.Complete(context.Background(), Request{
		Prompt:       "hi",
		SystemPrompt: "be brief",
		Action:       "course_structuring",
		Strategy:     "default",
	})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Content)
	require.Equal(t, 12, res.TokensIn)
	require.Equal(t, 3, res.TokensOut)
	require.Equal(t, "course_structuring", res.Action)
}

func TestOpenAI_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"})
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.RateLimited())
}

func TestOpenAI_DisabledFailsFast(t *testing.T) {
	p := NewOpenAI(OpenAIOptions{APIKey: "k", BaseURL: "http://127.0.0.1:1", DefaultModel: "m"})
	p.Disable("back-off")

	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	var pd *fault.ProviderDisabled
	require.ErrorAs(t, err, &pd)
	require.Equal(t, "back-off", pd.Reason)
}

func TestAnthropic_CompleteStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.System, "Respond ONLY with a JSON object")
		require.NotZero(t, req.MaxTokens)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "```json\n{\"modules\":[]}\n```"}},
			"usage":   map[string]int{"input_tokens": 20, "output_tokens": 8},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicOptions{APIKey: "test-key", BaseURL: srv.URL, DefaultModel: "claude-fast"})
	parsed, res, err := p.CompleteStructured(context.Background(), Request{Prompt: "structure this"},
		Schema{Name: "course_structure", JSON: []byte(`{"type":"object"}`)})
	require.NoError(t, err)
	require.JSONEq(t, `{"modules":[]}`, string(parsed))
	require.Equal(t, 20, res.TokensIn)
}

func TestGemini_CompleteStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":generateContent")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		body, _ := json.Marshal(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": `{"modules":[]}`}}}},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 5, "candidatesTokenCount": 2},
		})
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	p := NewGemini(GeminiOptions{APIKey: "test-key", BaseURL: srv.URL, DefaultModel: "gemini-vision"})
	parsed, res, err := p.CompleteStructured(context.Background(), Request{Prompt: "go"},
		Schema{Name: "s", JSON: []byte(`{"type":"object"}`)})
	require.NoError(t, err)
	require.JSONEq(t, `{"modules":[]}`, string(parsed))
	require.Equal(t, 5, res.TokensIn)
	require.Equal(t, 2, res.TokensOut)
}

func TestStructuredParseFailureCarriesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "not json at all"}},
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(AnthropicOptions{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"})
	_, res, err := p.CompleteStructured(context.Background(), Request{Prompt: "x"},
		Schema{Name: "s", JSON: []byte(`{}`)})

	var soErr *fault.StructuredOutputError
	require.ErrorAs(t, err, &soErr)
	require.NotNil(t, res, "response metadata must survive parse failure for audit logging")
}
