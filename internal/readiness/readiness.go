// SPDX-License-Identifier: MIT

// Package readiness reports whether a material subtree is ready for
// structure generation.
package readiness

import (
	"context"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/tree"
)

// Checker walks subtrees and reports non-ready materials.
type Checker struct {
	loader tree.Loader
}

// New creates a readiness checker over the given tree loader.
func New(loader tree.Loader) *Checker {
	return &Checker{loader: loader}
}

// CheckCourse checks every root subtree of a course.
func (c *Checker) CheckCourse(ctx context.Context, courseID string) (bool, []fault.StaleEntry, error) {
	roots, err := c.loader.ChildrenOf(ctx, courseID, "")
	if err != nil {
		return false, nil, err
	}
	var stale []fault.StaleEntry
	for _, root := range roots {
		_, s, err := c.CheckSubtree(ctx, courseID, root.ID)
		if err != nil {
			return false, nil, err
		}
		stale = append(stale, s...)
	}
	return len(stale) == 0, stale, nil
}

// CheckSubtree loads all descendants of nodeID with their entries and reports
// every entry whose state blocks generation (RAW or INTEGRITY_BROKEN).
// PENDING and ERROR entries contribute no content but do not block.
func (c *Checker) CheckSubtree(ctx context.Context, courseID, nodeID string) (bool, []fault.StaleEntry, error) {
	root, err := tree.LoadSubtree(ctx, c.loader, courseID, nodeID)
	if err != nil {
		return false, nil, err
	}

	var stale []fault.StaleEntry
	for _, n := range tree.Flatten(root) {
		for _, e := range n.Entries {
			if !e.State.Blocking() {
				continue
			}
			stale = append(stale, fault.StaleEntry{
				EntryID:   e.ID,
				Filename:  e.Filename,
				State:     string(e.State),
				NodeID:    n.ID,
				NodeTitle: n.Title,
			})
		}
	}
	return len(stale) == 0, stale, nil
}
