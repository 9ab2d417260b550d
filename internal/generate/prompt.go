// SPDX-License-Identifier: MIT

package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/provider"
	"github.com/coursesmith/coursesmith/internal/tree"
)

// ActionCourseStructuring is the registry action generation routes through.
const ActionCourseStructuring = "course_structuring"

// DefaultPromptVersion stamps snapshots when the job carries no override.
const DefaultPromptVersion = "v1"

// StructureSchema is the shape every generated course structure must satisfy.
var StructureSchema = provider.Schema{
	Name: "course_structure",
	JSON: json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"summary": {"type": "string"},
			"sections": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"title": {"type": "string"},
						"summary": {"type": "string"},
						"lessons": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"title": {"type": "string"},
									"objective": {"type": "string"}
								},
								"required": ["title"]
							}
						}
					},
					"required": ["title", "lessons"]
				}
			}
		},
		"required": ["title", "sections"]
	}`),
}

const systemPrompt = "You are an instructional designer. Organize the provided course materials " +
	"into a coherent course structure with sections and lessons. Base every section " +
	"on the materials given; do not invent topics that are not covered."

// buildPrompt renders the scope's materials into the generation prompt. Free
// mode hands the model the raw materials; guided mode additionally pins the
// existing outline and asks the model to fill it in rather than reshape it.
func buildPrompt(mode model.GenerationMode, roots []*tree.Node) string {
	var b strings.Builder

	if mode == model.ModeGuided {
		b.WriteString("Keep the outline below exactly as given. Fill in summaries and lesson objectives; do not add, remove or reorder sections.\n\nOutline:\n")
		for _, root := range roots {
			b.WriteString(tree.SerializeGuided(root))
		}
		b.WriteString("\n")
	}

	b.WriteString("Materials:\n\n")
	for _, root := range roots {
		for _, n := range tree.Flatten(root) {
			wroteHeader := false
			for _, e := range n.Entries {
				if e.State != model.EntryReady || e.ProcessedContent == "" {
					continue
				}
				if !wroteHeader {
					fmt.Fprintf(&b, "# %s\n\n", n.Title)
					wroteHeader = true
				}
				fmt.Fprintf(&b, "## %s\n\n%s\n\n", e.Filename, e.ProcessedContent)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
