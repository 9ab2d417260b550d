// SPDX-License-Identifier: MIT

// Package provider defines the uniform adapter contract over heterogeneous
// LLM provider APIs and the runtime enable/disable toggle used for
// rate-limit back-off.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
)

// Request is a provider-agnostic completion request.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string // optional; adapter falls back to its default
	Temperature  float64
	MaxTokens    int
	Action       string
	Strategy     string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content   string
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMS int64
	CostUSD   float64
	Action    string
	Strategy  string
	Timestamp time.Time
}

// Schema names a JSON schema for structured output.
type Schema struct {
	Name string
	JSON json.RawMessage
}

// Provider is the uniform adapter interface.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	CompleteStructured(ctx context.Context, req Request, schema Schema) (json.RawMessage, *Response, error)
	Enabled() bool
	Disable(reason string)
	Enable()
}

// DefaultCooldown is how long a disabled provider stays down before it
// re-enables itself.
const DefaultCooldown = 60 * time.Second

// toggle implements the enabled flag with automatic cooldown expiry. The
// zero value is enabled.
type toggle struct {
	mu         sync.Mutex
	disabled   bool
	reason     string
	reenableAt time.Time
	cooldown   time.Duration
	now        func() time.Time
}

func (t *toggle) clock() func() time.Time {
	if t.now == nil {
		return time.Now
	}
	return t.now
}

// Enabled reports whether the provider may be called, re-enabling it when
// the cooldown has elapsed.
func (t *toggle) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.disabled {
		return true
	}
	if t.clock()().After(t.reenableAt) {
		t.disabled = false
		t.reason = ""
		return true
	}
	return false
}

// Disable puts the provider into back-off for the configured cooldown.
func (t *toggle) Disable(reason string) {
	cd := t.cooldown
	if cd <= 0 {
		cd = DefaultCooldown
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = true
	t.reason = reason
	t.reenableAt = t.clock()().Add(cd)
}

// Enable clears the back-off immediately.
func (t *toggle) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = false
	t.reason = ""
}

// DisabledError returns the fault for a disabled provider.
func (t *toggle) disabledError(name string) *fault.ProviderDisabled {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &fault.ProviderDisabled{Provider: name, Reason: t.reason}
}

// Registry maps provider names to adapters.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds an adapter under its name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
