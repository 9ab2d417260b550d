// SPDX-License-Identifier: MIT

// Package conflict decides whether a new generation request overlaps an
// active one on the same course. Two scopes overlap when neither subtree is
// disjoint from the other: whole-course scope covers everything, identical
// scopes overlap, and nesting in either direction overlaps.
package conflict

import (
	"context"
	"fmt"

	"github.com/coursesmith/coursesmith/internal/domain/fault"
	"github.com/coursesmith/coursesmith/internal/tree"
)

// ActiveJob is the scope of one queued or active generation job.
type ActiveJob struct {
	JobID  string
	NodeID string // empty means whole course
}

// Detect returns the first active job whose scope overlaps targetNodeID
// (empty for whole course), or nil when no job conflicts.
func Detect(ctx context.Context, targetNodeID string, active []ActiveJob, parents tree.ParentResolver) (*fault.Conflict, error) {
	for _, job := range active {
		overlap, reason, err := scopesOverlap(ctx, targetNodeID, job.NodeID, parents)
		if err != nil {
			return nil, err
		}
		if overlap {
			return &fault.Conflict{JobID: job.JobID, NodeID: job.NodeID, Reason: reason}, nil
		}
	}
	return nil, nil
}

func scopesOverlap(ctx context.Context, target, active string, parents tree.ParentResolver) (bool, string, error) {
	// Fast path, no tree walks.
	if active == "" {
		return true, "active job covers entire course", nil
	}
	if target == "" {
		return true, "request covers entire course while a scoped job is active", nil
	}
	if target == active {
		return true, "identical generation scope", nil
	}

	// Target nested inside the active scope?
	chain, err := tree.AncestorChain(ctx, parents, target)
	if err != nil {
		return false, "", err
	}
	for _, ancestor := range chain {
		if ancestor == active {
			return true, fmt.Sprintf("requested node is nested inside active job scope %s", active), nil
		}
	}

	// Active scope nested inside the new request?
	chain, err = tree.AncestorChain(ctx, parents, active)
	if err != nil {
		return false, "", err
	}
	for _, ancestor := range chain {
		if ancestor == target {
			return true, fmt.Sprintf("active job %s targets a node inside the requested scope", active), nil
		}
	}

	return false, "", nil
}
