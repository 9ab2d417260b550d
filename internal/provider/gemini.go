// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Gemini is the adapter for the Google generative language API. Structured
// output uses the JSON response MIME type plus a response schema.
type Gemini struct {
	toggle
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// GeminiOptions configures the adapter.
type GeminiOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// NewGemini creates the adapter.
func NewGemini(opts GeminiOptions) *Gemini {
	base := opts.BaseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Gemini{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		defaultModel: opts.DefaultModel,
		client:       newHTTPClient(opts.Timeout),
	}
}

func (p *Gemini) Name() string { return "gemini" }

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func textContent(text string) geminiContent {
	c := geminiContent{}
	c.Parts = append(c.Parts, struct {
		Text string `json:"text"`
	}{Text: text})
	return c
}

func (p *Gemini) complete(ctx context.Context, req Request, genConfig map[string]any) (*Response, error) {
	if !p.Enabled() {
		return nil, p.disabledError(p.Name())
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	if genConfig == nil {
		genConfig = map[string]any{}
	}
	genConfig["temperature"] = req.Temperature
	if req.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxTokens
	}

	user := textContent(req.Prompt)
	user.Role = "user"
	body := geminiRequest{
		Contents:         []geminiContent{user},
		GenerationConfig: genConfig,
	}
	if req.SystemPrompt != "" {
		sys := textContent(req.SystemPrompt)
		body.SystemInstruction = &sys
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)

	start := time.Now()
	var out geminiResponse
	if err := postJSON(ctx, p.client, p.Name(), url, nil, body, &out); err != nil {
		return nil, err
	}

	var content strings.Builder
	if len(out.Candidates) > 0 {
		for _, part := range out.Candidates[0].Content.Parts {
			content.WriteString(part.Text)
		}
	}
	return &Response{
		Content:   content.String(),
		Provider:  p.Name(),
		Model:     model,
		TokensIn:  out.UsageMetadata.PromptTokenCount,
		TokensOut: out.UsageMetadata.CandidatesTokenCount,
		LatencyMS: time.Since(start).Milliseconds(),
		Action:    req.Action,
		Strategy:  req.Strategy,
		Timestamp: start,
	}, nil
}

// Complete implements Provider.
func (p *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req, nil)
}

// CompleteStructured implements Provider using the JSON response MIME type.
func (p *Gemini) CompleteStructured(ctx context.Context, req Request, schema Schema) (json.RawMessage, *Response, error) {
	var schemaDoc any
	if err := json.Unmarshal(schema.JSON, &schemaDoc); err != nil {
		return nil, nil, fmt.Errorf("gemini: invalid schema %s: %w", schema.Name, err)
	}
	cfg := map[string]any{
		"responseMimeType": "application/json",
		"responseSchema":   schemaDoc,
	}
	res, err := p.complete(ctx, req, cfg)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := parseStructured(p.Name(), res.Content, schema)
	if err != nil {
		return nil, res, err
	}
	return parsed, res, nil
}
