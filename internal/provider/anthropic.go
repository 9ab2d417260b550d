// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// Anthropic is the adapter for the Anthropic messages API. There is no
// native schema mode: structured output embeds the schema into the system
// prompt and strips markdown fences before parsing.
type Anthropic struct {
	toggle
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// AnthropicOptions configures the adapter.
type AnthropicOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// NewAnthropic creates the adapter.
func NewAnthropic(opts AnthropicOptions) *Anthropic {
	base := opts.BaseURL
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return &Anthropic{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		defaultModel: opts.DefaultModel,
		client:       newHTTPClient(opts.Timeout),
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string `json:"model"`
	System    string `json:"system,omitempty"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *Anthropic) complete(ctx context.Context, req Request, system string) (*Response, error) {
	if !p.Enabled() {
		return nil, p.disabledError(p.Name())
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // the messages API requires an explicit cap
	}

	body := anthropicRequest{
		Model:       model,
		System:      system,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	body.Messages = append(body.Messages, struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: "user", Content: req.Prompt})

	start := time.Now()
	var out anthropicResponse
	err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": anthropicVersion,
		}, body, &out)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return &Response{
		Content:   content.String(),
		Provider:  p.Name(),
		Model:     model,
		TokensIn:  out.Usage.InputTokens,
		TokensOut: out.Usage.OutputTokens,
		LatencyMS: time.Since(start).Milliseconds(),
		Action:    req.Action,
		Strategy:  req.Strategy,
		Timestamp: start,
	}, nil
}

// Complete implements Provider.
func (p *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req, req.SystemPrompt)
}

// CompleteStructured implements Provider via schema-in-system-prompt.
func (p *Anthropic) CompleteStructured(ctx context.Context, req Request, schema Schema) (json.RawMessage, *Response, error) {
	res, err := p.complete(ctx, req, SchemaSystemPrompt(req.SystemPrompt, schema))
	if err != nil {
		return nil, nil, err
	}
	parsed, err := parseStructured(p.Name(), res.Content, schema)
	if err != nil {
		return nil, res, err
	}
	return parsed, res, nil
}
