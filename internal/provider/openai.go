// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// OpenAI is the adapter for the OpenAI chat completions API. Structured
// output uses the native json_schema response format.
type OpenAI struct {
	toggle
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// OpenAIOptions configures the adapter.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string // defaults to the public endpoint
	DefaultModel string
	Timeout      time.Duration
}

// NewOpenAI creates the adapter.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	base := opts.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &OpenAI{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		defaultModel: opts.DefaultModel,
		client:       newHTTPClient(opts.Timeout),
	}
}

func (p *OpenAI) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat any             `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAI) complete(ctx context.Context, req Request, responseFormat any) (*Response, error) {
	if !p.Enabled() {
		return nil, p.disabledError(p.Name())
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := openAIRequest{
		Model:          model,
		Messages:       messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: responseFormat,
	}

	start := time.Now()
	var out openAIResponse
	err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey}, body, &out)
	if err != nil {
		return nil, err
	}

	content := ""
	if len(out.Choices) > 0 {
		content = out.Choices[0].Message.Content
	}
	return &Response{
		Content:   content,
		Provider:  p.Name(),
		Model:     model,
		TokensIn:  out.Usage.PromptTokens,
		TokensOut: out.Usage.CompletionTokens,
		LatencyMS: time.Since(start).Milliseconds(),
		Action:    req.Action,
		Strategy:  req.Strategy,
		Timestamp: start,
	}, nil
}

// Complete implements Provider.
func (p *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req, nil)
}

// CompleteStructured implements Provider using the native JSON schema mode.
func (p *OpenAI) CompleteStructured(ctx context.Context, req Request, schema Schema) (json.RawMessage, *Response, error) {
	format := map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schema.Name,
			"schema": schema.JSON,
			"strict": true,
		},
	}
	res, err := p.complete(ctx, req, format)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := parseStructured(p.Name(), res.Content, schema)
	if err != nil {
		return nil, res, err
	}
	return parsed, res, nil
}
