// SPDX-License-Identifier: MIT

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursesmith/coursesmith/internal/validate"
)

const goodYAML = `
models:
  gpt-smart:
    provider: openai
    capabilities: [structured_output, long_context]
    max_context: 128000
    cost_per_1k: {input: 0.01, output: 0.03}
  claude-fast:
    provider: anthropic
    capabilities: [structured_output]
    max_context: 200000
    cost_per_1k: {input: 0.003, output: 0.015}
  gemini-vision:
    provider: gemini
    capabilities: [vision, structured_output]
    max_context: 1000000
    cost_per_1k: {input: 0.002, output: 0.008}

actions:
  course_structuring:
    description: Synthesize a nested course program
    requires: [structured_output]
  video_analysis:
    description: Describe video frames
    requires: [vision]

routing:
  course_structuring:
    default: [gpt-smart, claude-fast]
    budget: [claude-fast]
  video_analysis:
    default: [gemini-vision]
`

func TestParse_Valid(t *testing.T) {
	r, err := Parse([]byte(goodYAML))
	require.NoError(t, err)

	chain, err := r.Chain("course_structuring", "default")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "gpt-smart", chain[0].ID)
	require.Equal(t, "openai", chain[0].Provider)

	// Unknown strategy falls back to default.
	chain, err = r.Chain("course_structuring", "quality")
	require.NoError(t, err)
	require.Equal(t, "gpt-smart", chain[0].ID)

	// Known non-default strategy resolves itself.
	chain, err = r.Chain("course_structuring", "budget")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, "claude-fast", chain[0].ID)
}

func TestParse_AccumulatesAllErrors(t *testing.T) {
	bad := `
models:
  m1:
    provider: openai
    capabilities: [vision]
actions:
  structuring:
    requires: [structured_output]
routing:
  structuring:
    quality: [m1, ghost]
  phantom_action:
    default: [m1]
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)

	var ve validate.ValidationError
	require.ErrorAs(t, err, &ve)

	msgs := make([]string, 0, len(ve.Errors()))
	for _, e := range ve.Errors() {
		msgs = append(msgs, e.Error())
	}
	joined := err.Error()
	require.Contains(t, joined, `missing required "default" strategy`)
	require.Contains(t, joined, `unknown model "ghost"`)
	require.Contains(t, joined, `lacks required capability "structured_output"`)
	require.Contains(t, joined, "phantom_action")
	require.GreaterOrEqual(t, len(msgs), 4)
}

func TestParse_EmptyChainIsLoadError(t *testing.T) {
	bad := `
models:
  m1: {provider: openai, capabilities: [structured_output]}
actions:
  structuring: {requires: [structured_output]}
routing:
  structuring:
    default: []
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	require.Contains(t, err.Error(), "chain is empty")
}

func TestParse_BareActionEntry(t *testing.T) {
	// "actions:\n  structuring:" with no body decodes as a nil pointer;
	// validation must still treat it as an action with no requirements.
	raw := `
models:
  m1: {provider: openai, capabilities: [structured_output]}
actions:
  structuring:
routing:
  structuring:
    default: [m1]
`
	r, err := Parse([]byte(raw))
	require.NoError(t, err)
	chain, err := r.Chain("structuring", "default")
	require.NoError(t, err)
	require.Len(t, chain, 1)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("models: ["))
	require.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	m := &ModelConfig{CostPer1K: CostPer1K{Input: 0.01, Output: 0.03}}
	require.InDelta(t, 0.01*1.5+0.03*0.5, m.EstimateCost(1500, 500), 1e-9)
	require.Zero(t, m.EstimateCost(0, 0))
}

func TestChain_UnknownAction(t *testing.T) {
	r, err := Parse([]byte(goodYAML))
	require.NoError(t, err)
	_, err = r.Chain("nope", "default")
	require.Error(t, err)
}
