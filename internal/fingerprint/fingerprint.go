// SPDX-License-Identifier: MIT

// Package fingerprint computes content fingerprints over the material tree.
// Node fingerprints are Merkle hashes: bottom-up, order-independent, covering
// only processed content, so the snapshot cache hits even when sibling
// insertion order changes and misses as soon as new content is ingested.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/tree"
)

// Store persists computed fingerprints on their rows. All fingerprint
// mutations for one request happen inside a single session.
type Store interface {
	SaveEntryFingerprint(ctx context.Context, entryID, fp string) error
	SaveNodeFingerprint(ctx context.Context, nodeID, fp string) error
}

// Service computes and caches fingerprints.
type Service struct {
	store Store
}

// New creates a fingerprint service backed by the given store.
func New(store Store) *Service {
	return &Service{store: store}
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// EnsureEntryFP returns the cached content fingerprint or computes, persists
// and returns it. Entries without processed content fail.
func (s *Service) EnsureEntryFP(ctx context.Context, e *model.MaterialEntry) (string, error) {
	if e.ContentFingerprint != "" {
		return e.ContentFingerprint, nil
	}
	if e.ProcessedContent == "" {
		return "", &fault.UnprocessedEntry{EntryID: e.ID}
	}
	fp := hashHex(e.ProcessedContent)
	if err := s.store.SaveEntryFingerprint(ctx, e.ID, fp); err != nil {
		return "", err
	}
	e.ContentFingerprint = fp
	return fp, nil
}

// CourseFP combines the root fingerprints of a whole-course scope. Courses
// have no row to cache on, so the combination is recomputed per call; the
// per-root fingerprints underneath are still cached.
func (s *Service) CourseFP(ctx context.Context, roots []*tree.Node) (string, error) {
	parts := make([]string, 0, len(roots))
	for _, r := range roots {
		fp, err := s.EnsureNodeFP(ctx, r)
		if err != nil {
			return "", err
		}
		parts = append(parts, "n:"+fp)
	}
	sort.Strings(parts)
	return hashHex(strings.Join(parts, "\n")), nil
}

// EnsureNodeFP returns the cached node fingerprint or computes it bottom-up
// over the materialized subtree. Unprocessed entries are skipped so the
// fingerprint reflects only ready content.
func (s *Service) EnsureNodeFP(ctx context.Context, n *tree.Node) (string, error) {
	if n.NodeFingerprint != "" {
		return n.NodeFingerprint, nil
	}

	parts := make([]string, 0, len(n.Entries)+len(n.Children))
	for _, child := range n.Children {
		childFP, err := s.EnsureNodeFP(ctx, child)
		if err != nil {
			return "", err
		}
		parts = append(parts, "n:"+childFP)
	}
	for _, e := range n.Entries {
		if e.ProcessedContent == "" && e.ContentFingerprint == "" {
			continue
		}
		entryFP, err := s.EnsureEntryFP(ctx, e)
		if err != nil {
			return "", err
		}
		parts = append(parts, "m:"+entryFP)
	}

	sort.Strings(parts)
	fp := hashHex(strings.Join(parts, "\n"))
	if err := s.store.SaveNodeFingerprint(ctx, n.ID, fp); err != nil {
		return "", err
	}
	n.NodeFingerprint = fp
	return fp, nil
}
