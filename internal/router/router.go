// SPDX-License-Identifier: MIT

// Package router drives the strategy-ordered fallback chain across LLM
// providers: per-model retry on structured-output failures, skip-on-disabled,
// rate-limit back-off, cost accounting and best-effort audit logging.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/provider"
	"github.com/coursesmith/coursesmith/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursesmith",
			Name:      "router_attempts_total",
			Help:      "LLM call attempts by provider and result",
		},
		[]string{"provider", "model", "result"},
	)
	chainExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coursesmith",
			Name:      "router_chain_exhausted_total",
			Help:      "Routing chains exhausted without success",
		},
		[]string{"action", "strategy"},
	)
)

// DefaultMaxAttempts is the per-model attempt cap.
const DefaultMaxAttempts = 2

// LogCallback persists one audit record per attempt. It runs in an isolated
// transaction; its failure never interrupts the LLM flow.
type LogCallback func(ctx context.Context, res *provider.Response, success bool, errMsg string) error

// Options are per-call parameters.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Strategy     string
}

func (o Options) strategy() string {
	if o.Strategy == "" {
		return registry.DefaultStrategy
	}
	return o.Strategy
}

// Router resolves (action, strategy) to a model chain and walks it.
type Router struct {
	Registry    *registry.Registry
	Providers   *provider.Registry
	MaxAttempts int
	LogFn       LogCallback
}

// New creates a router with the default attempt cap.
func New(reg *registry.Registry, providers *provider.Registry, logFn LogCallback) *Router {
	return &Router{
		Registry:    reg,
		Providers:   providers,
		MaxAttempts: DefaultMaxAttempts,
		LogFn:       logFn,
	}
}

func (r *Router) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

// Complete runs a free-form completion through the fallback chain.
func (r *Router) Complete(ctx context.Context, action, prompt string, opts Options) (*provider.Response, error) {
	res, _, err := r.run(ctx, action, prompt, opts, nil)
	return res, err
}

// CompleteStructured runs a schema-validated completion through the chain.
func (r *Router) CompleteStructured(ctx context.Context, action, prompt string, schema provider.Schema, opts Options) (json.RawMessage, *provider.Response, error) {
	res, parsed, err := r.run(ctx, action, prompt, opts, &schema)
	return parsed, res, err
}

func (r *Router) run(ctx context.Context, action, prompt string, opts Options, schema *provider.Schema) (*provider.Response, json.RawMessage, error) {
	strategy := opts.strategy()
	chain, err := r.Registry.Chain(action, strategy)
	if err != nil {
		return nil, nil, err
	}

	req := provider.Request{
		Prompt:       prompt,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
		Action:       action,
		Strategy:     strategy,
	}

	var failures []fault.ModelFailure
	for _, model := range chain {
		adapter, err := r.Providers.Get(model.Provider)
		if err != nil {
			failures = append(failures, fault.ModelFailure{Model: model.ID, Reason: err.Error()})
			continue
		}
		if !adapter.Enabled() {
			// Disabled providers are skipped without consuming an attempt
			// and without an audit record.
			attemptsTotal.WithLabelValues(model.Provider, model.ID, "skipped_disabled").Inc()
			failures = append(failures, fault.ModelFailure{Model: model.ID, Reason: "provider disabled"})
			continue
		}

		req.Model = model.ID
		res, parsed, reason := r.tryModel(ctx, adapter, model, req, schema)
		if res != nil {
			return res, parsed, nil
		}
		failures = append(failures, fault.ModelFailure{Model: model.ID, Reason: reason})
	}

	chainExhausted.WithLabelValues(action, strategy).Inc()
	return nil, nil, &fault.AllModelsFailed{Action: action, Strategy: strategy, Failures: failures}
}

// tryModel runs up to maxAttempts sequential attempts against one model.
// A nil response means the model failed and the chain should advance.
func (r *Router) tryModel(ctx context.Context, adapter provider.Provider, model *registry.ModelConfig, req provider.Request, schema *provider.Schema) (res *provider.Response, parsed json.RawMessage, failReason string) {
	logger := log.WithComponentFromContext(ctx, "router")

	for attempt := 1; attempt <= r.maxAttempts(); attempt++ {
		var callRes *provider.Response
		var callParsed json.RawMessage
		var err error

		if schema != nil {
			callParsed, callRes, err = adapter.CompleteStructured(ctx, req, *schema)
		} else {
			callRes, err = adapter.Complete(ctx, req)
		}

		if err == nil {
			callRes.CostUSD = model.EstimateCost(callRes.TokensIn, callRes.TokensOut)
			attemptsTotal.WithLabelValues(model.Provider, model.ID, "success").Inc()
			r.audit(ctx, callRes, true, "")
			return callRes, callParsed, ""
		}

		// A disabled provider surfaced mid-chain: no attempt consumed,
		// no audit record.
		var pd *fault.ProviderDisabled
		if errors.As(err, &pd) {
			attemptsTotal.WithLabelValues(model.Provider, model.ID, "skipped_disabled").Inc()
			return nil, nil, "provider disabled: " + pd.Reason
		}

		attemptsTotal.WithLabelValues(model.Provider, model.ID, "failure").Inc()
		r.audit(ctx, auditStub(callRes, req, model), false, err.Error())

		var soErr *fault.StructuredOutputError
		if errors.As(err, &soErr) {
			// Schema failure: retry within the same model.
			logger.Warn().
				Str(log.FieldModel, model.ID).
				Int("attempt", attempt).
				Msg("structured output failed validation, retrying")
			failReason = "structured output invalid after retries: " + soErr.Cause.Error()
			continue
		}

		var apiErr *provider.APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			// Rate-limit signal: flip the provider into back-off, advance.
			adapter.Disable(fmt.Sprintf("rate limited (%d)", apiErr.StatusCode))
			logger.Warn().
				Str(log.FieldProvider, model.Provider).
				Str(log.FieldModel, model.ID).
				Msg("provider rate limited, disabling for cooldown")
			return nil, nil, "rate limited"
		}

		// Transport failure: advance to the next model.
		logger.Warn().
			Str(log.FieldModel, model.ID).
			Err(err).
			Msg("provider call failed, advancing chain")
		return nil, nil, err.Error()
	}
	return nil, nil, failReason
}

// auditStub builds a minimal response for attempts that failed before a
// usable response existed.
func auditStub(res *provider.Response, req provider.Request, model *registry.ModelConfig) *provider.Response {
	if res != nil {
		return res
	}
	return &provider.Response{
		Provider: model.Provider,
		Model:    model.ID,
		Action:   req.Action,
		Strategy: req.Strategy,
	}
}

// audit invokes the log callback, swallowing every failure mode: telemetry
// may never interrupt the LLM flow.
func (r *Router) audit(ctx context.Context, res *provider.Response, success bool, errMsg string) {
	if r.LogFn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.WithComponent("router").Error().Interface("panic_value", rec).Msg("audit callback panicked")
		}
	}()
	if err := r.LogFn(ctx, res, success, errMsg); err != nil {
		log.WithComponent("router").Warn().Err(err).Msg("audit callback failed")
	}
}
