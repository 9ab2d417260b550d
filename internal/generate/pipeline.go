// SPDX-License-Identifier: MIT

// Package generate runs the structure-generation pipeline: readiness check,
// scope fingerprinting, snapshot cache lookup, model invocation and snapshot
// persistence.
package generate

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/fingerprint"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/readiness"
	"github.com/coursesmith/coursesmith/internal/router"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/tree"
)

var generations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "coursesmith",
	Name:      "generate_runs_total",
	Help:      "Structure generation runs by mode and outcome",
}, []string{"mode", "outcome"})

// Request is one generation run over a course or subtree scope.
type Request struct {
	TenantID      string
	CourseID      string
	NodeID        string // empty means whole course
	Mode          model.GenerationMode
	PromptVersion string
}

// Pipeline generates course structures.
type Pipeline struct {
	Materials    *store.MaterialRepo
	Snapshots    *store.SnapshotRepo
	Fingerprints *fingerprint.Service
	Readiness    *readiness.Checker
	Router       *router.Router
}

// New wires a pipeline over the store and router.
func New(s *store.Store, rt *router.Router) *Pipeline {
	return &Pipeline{
		Materials:    s.Materials,
		Snapshots:    s.Snapshots,
		Fingerprints: fingerprint.New(s.Materials),
		Readiness:    readiness.New(s.Materials),
		Router:       rt,
	}
}

// Run produces the snapshot for the requested scope, reusing a cached one
// when the scope fingerprint and mode match. On a cache miss it invokes the
// model chain and persists the result as the canonical artifact.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.StructureSnapshot, error) {
	logger := log.WithComponentFromContext(ctx, "generate").With().
		Str(log.FieldCourseID, req.CourseID).
		Str("mode", string(req.Mode)).
		Logger()

	ready, stale, err := p.checkReadiness(ctx, req)
	if err != nil {
		return nil, err
	}
	if !ready {
		generations.WithLabelValues(string(req.Mode), "not_ready").Inc()
		return nil, &fault.NoReadyMaterials{Stale: stale}
	}

	roots, fp, err := p.fingerprintScope(ctx, req)
	if err != nil {
		return nil, err
	}

	if snap, err := p.Snapshots.FindByIdentity(ctx, req.TenantID, req.CourseID, req.NodeID, fp, req.Mode); err == nil {
		generations.WithLabelValues(string(req.Mode), "cache_hit").Inc()
		logger.Info().Str(log.FieldEvent, "generate.cache_hit").Str("snapshot_id", snap.ID).Msg("snapshot cache hit")
		return snap, nil
	} else if !errors.Is(err, fault.ErrNotFound) {
		return nil, err
	}

	prompt := buildPrompt(req.Mode, roots)
	parsed, res, err := p.Router.CompleteStructured(ctx, ActionCourseStructuring, prompt, StructureSchema, router.Options{
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		generations.WithLabelValues(string(req.Mode), "failed").Inc()
		return nil, err
	}

	version := req.PromptVersion
	if version == "" {
		version = DefaultPromptVersion
	}
	snap := &model.StructureSnapshot{
		TenantID:        req.TenantID,
		CourseID:        req.CourseID,
		NodeID:          req.NodeID,
		NodeFingerprint: fp,
		Mode:            req.Mode,
		Structure:       parsed,
		PromptVersion:   version,
		Model:           res.Model,
		TokensIn:        res.TokensIn,
		TokensOut:       res.TokensOut,
		CostUSD:         res.CostUSD,
	}
	if err := p.Snapshots.Create(ctx, snap); err != nil {
		// a concurrent run may have written the same identity first; the
		// existing snapshot is canonical
		if existing, ferr := p.Snapshots.FindByIdentity(ctx, req.TenantID, req.CourseID, req.NodeID, fp, req.Mode); ferr == nil {
			generations.WithLabelValues(string(req.Mode), "cache_hit").Inc()
			return existing, nil
		}
		return nil, err
	}

	generations.WithLabelValues(string(req.Mode), "generated").Inc()
	logger.Info().
		Str(log.FieldEvent, "generate.completed").
		Str("snapshot_id", snap.ID).
		Str(log.FieldModel, res.Model).
		Float64("cost_usd", res.CostUSD).
		Msg("structure generated")
	return snap, nil
}

func (p *Pipeline) checkReadiness(ctx context.Context, req Request) (bool, []fault.StaleEntry, error) {
	if req.NodeID == "" {
		return p.Readiness.CheckCourse(ctx, req.CourseID)
	}
	return p.Readiness.CheckSubtree(ctx, req.CourseID, req.NodeID)
}

// fingerprintScope materializes the scope's subtrees and returns them with
// their combined fingerprint.
func (p *Pipeline) fingerprintScope(ctx context.Context, req Request) ([]*tree.Node, string, error) {
	if req.NodeID != "" {
		root, err := tree.LoadSubtree(ctx, p.Materials, req.CourseID, req.NodeID)
		if err != nil {
			return nil, "", err
		}
		fp, err := p.Fingerprints.EnsureNodeFP(ctx, root)
		if err != nil {
			return nil, "", err
		}
		return []*tree.Node{root}, fp, nil
	}

	rootRows, err := p.Materials.ChildrenOf(ctx, req.CourseID, "")
	if err != nil {
		return nil, "", err
	}
	roots := make([]*tree.Node, 0, len(rootRows))
	for _, r := range rootRows {
		root, err := tree.LoadSubtree(ctx, p.Materials, req.CourseID, r.ID)
		if err != nil {
			return nil, "", err
		}
		roots = append(roots, root)
	}
	fp, err := p.Fingerprints.CourseFP(ctx, roots)
	if err != nil {
		return nil, "", err
	}
	return roots, fp, nil
}
