// SPDX-License-Identifier: MIT

// Package registry loads and validates the declarative model catalog: which
// models exist, what capabilities each action requires, and the ordered
// fallback chain the router tries per (action, strategy).
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coursesmith/coursesmith/internal/validate"
)

// DefaultStrategy is the strategy every routing entry must define and the
// fallback for unknown strategies at lookup time.
const DefaultStrategy = "default"

// CostPer1K holds per-1000-token USD rates.
type CostPer1K struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ModelConfig describes one model in the catalog.
type ModelConfig struct {
	ID           string    `yaml:"-"`
	Provider     string    `yaml:"provider"`
	Capabilities []string  `yaml:"capabilities"`
	MaxContext   int       `yaml:"max_context"`
	CostPer1K    CostPer1K `yaml:"cost_per_1k"`
}

// HasCapability reports whether the model declares the capability.
func (m *ModelConfig) HasCapability(cap string) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// EstimateCost converts token counts into USD using the per-1k rates.
func (m *ModelConfig) EstimateCost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)*m.CostPer1K.Input/1000 + float64(tokensOut)*m.CostPer1K.Output/1000
}

// ActionConfig describes one named LLM task category.
type ActionConfig struct {
	Description string   `yaml:"description"`
	Requires    []string `yaml:"requires"`
}

// file is the raw YAML shape.
type file struct {
	Models  map[string]*ModelConfig        `yaml:"models"`
	Actions map[string]*ActionConfig       `yaml:"actions"`
	Routing map[string]map[string][]string `yaml:"routing"`
}

// Registry is the validated, immutable model catalog.
type Registry struct {
	models  map[string]*ModelConfig
	actions map[string]*ActionConfig
	routing map[string]map[string][]string
}

// Load reads, parses and validates the registry file. Any validation failure
// aborts with the full accumulated error list.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses and validates registry YAML.
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}
	for id, m := range f.Models {
		if m == nil {
			m = &ModelConfig{}
			f.Models[id] = m
		}
		m.ID = id
	}
	for name, a := range f.Actions {
		if a == nil {
			f.Actions[name] = &ActionConfig{}
		}
	}

	r := &Registry{models: f.Models, actions: f.Actions, routing: f.Routing}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate() error {
	v := validate.New()

	for action, strategies := range r.routing {
		if _, ok := r.actions[action]; !ok {
			v.Addf("routing."+action, "routing action %q is not declared in actions", action)
			continue
		}
		if _, ok := strategies[DefaultStrategy]; !ok {
			v.Addf("routing."+action, "missing required %q strategy", DefaultStrategy)
		}
		requires := r.actions[action].Requires
		for strategy, chain := range strategies {
			field := fmt.Sprintf("routing.%s.%s", action, strategy)
			if len(chain) == 0 {
				v.Addf(field, "fallback chain is empty")
				continue
			}
			for _, modelID := range chain {
				m, ok := r.models[modelID]
				if !ok {
					v.Addf(field, "unknown model %q", modelID)
					continue
				}
				for _, cap := range requires {
					if !m.HasCapability(cap) {
						v.Addf(field, "model %q lacks required capability %q", modelID, cap)
					}
				}
			}
		}
	}

	return v.Err()
}

// Model returns the config for a model ID.
func (r *Registry) Model(id string) (*ModelConfig, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Chain resolves the ordered fallback chain for (action, strategy). An
// unknown strategy silently falls back to default; an unknown action is an
// error because load-time validation guarantees every routed action exists.
func (r *Registry) Chain(action, strategy string) ([]*ModelConfig, error) {
	strategies, ok := r.routing[action]
	if !ok {
		return nil, fmt.Errorf("registry: no routing for action %q", action)
	}
	ids, ok := strategies[strategy]
	if !ok {
		ids = strategies[DefaultStrategy]
	}
	out := make([]*ModelConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.models[id])
	}
	return out, nil
}

// Actions returns the declared action names.
func (r *Registry) Actions() []string {
	out := make([]string, 0, len(r.actions))
	for name := range r.actions {
		out = append(out, name)
	}
	return out
}
