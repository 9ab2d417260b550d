// SPDX-License-Identifier: MIT

package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

// StripFences removes a surrounding markdown code fence, if any. Models
// without native JSON mode often wrap their output in ```json blocks.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the info string ("json", "JSON", ...) on the fence line.
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// SchemaSystemPrompt appends a respond-only-with-JSON instruction carrying
// the schema to the system prompt. Used by adapters without native schema
// support.
func SchemaSystemPrompt(system string, schema Schema) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Respond ONLY with a JSON object matching this JSON schema (no prose, no markdown fences):\n%s", string(schema.JSON))
	return b.String()
}

// parseStructured validates that content is a JSON document. Schema-level
// validation is the caller's concern; transport-level structural failure is
// what the router retries.
func parseStructured(providerName, content string, schema Schema) (json.RawMessage, error) {
	cleaned := StripFences(content)
	var probe any
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, &fault.StructuredOutputError{
			Provider:   providerName,
			SchemaName: schema.Name,
			RawContent: truncate(content, 2048),
			Cause:      err,
		}
	}
	return json.RawMessage(cleaned), nil
}
