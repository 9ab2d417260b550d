// SPDX-License-Identifier: MIT

// Package tree provides traversal utilities over the hierarchical material
// tree: BFS subtree loading, flattening, parent-chain walks with cycle
// guards, and guided-mode serialization.
package tree

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coursesmith/coursesmith/internal/domain/model"
)

// Loader supplies tree rows. Implemented by the material repository.
type Loader interface {
	NodeByID(ctx context.Context, courseID, nodeID string) (*model.MaterialNode, error)
	ChildrenOf(ctx context.Context, courseID, parentID string) ([]*model.MaterialNode, error)
	EntriesOf(ctx context.Context, nodeID string) ([]*model.MaterialEntry, error)
}

// Node is a materialized subtree node with its entries and children eagerly
// populated.
type Node struct {
	*model.MaterialNode
	Entries  []*model.MaterialEntry
	Children []*Node
}

// LoadSubtree loads the subtree rooted at rootID breadth-first by
// (course_id, parent_id), entries included.
func LoadSubtree(ctx context.Context, l Loader, courseID, rootID string) (*Node, error) {
	root, err := l.NodeByID(ctx, courseID, rootID)
	if err != nil {
		return nil, err
	}
	rn := &Node{MaterialNode: root}

	queue := []*Node{rn}
	seen := map[string]struct{}{rootID: {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := l.EntriesOf(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		cur.Entries = entries

		children, err := l.ChildrenOf(ctx, courseID, cur.ID)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(children, func(i, j int) bool { return children[i].Position < children[j].Position })
		for _, child := range children {
			if _, dup := seen[child.ID]; dup {
				return nil, fmt.Errorf("material tree cycle at node %s", child.ID)
			}
			seen[child.ID] = struct{}{}
			cn := &Node{MaterialNode: child}
			cur.Children = append(cur.Children, cn)
			queue = append(queue, cn)
		}
	}
	return rn, nil
}

// Flatten returns the subtree as a breadth-first slice, root first.
func Flatten(root *Node) []*Node {
	if root == nil {
		return nil
	}
	out := []*Node{root}
	for i := 0; i < len(out); i++ {
		out = append(out, out[i].Children...)
	}
	return out
}

// ParentResolver answers parent lookups for chain walks.
type ParentResolver interface {
	// ParentOf returns the parent node ID, or "" for roots.
	ParentOf(ctx context.Context, nodeID string) (string, error)
}

// AncestorChain walks the parent chain of nodeID up to the root, excluding
// nodeID itself. It bails out if it encounters a cycle.
func AncestorChain(ctx context.Context, r ParentResolver, nodeID string) ([]string, error) {
	var chain []string
	visited := map[string]struct{}{nodeID: {}}
	cur := nodeID
	for {
		parent, err := r.ParentOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			return chain, nil
		}
		if _, dup := visited[parent]; dup {
			return chain, nil // cycle, stop the walk
		}
		visited[parent] = struct{}{}
		chain = append(chain, parent)
		cur = parent
	}
}

// SerializeGuided renders the subtree as an indented outline for guided-mode
// generation prompts. Only titles, descriptions and ready entry filenames
// appear.
func SerializeGuided(root *Node) string {
	var b strings.Builder
	serializeGuided(&b, root, 0)
	return b.String()
}

func serializeGuided(b *strings.Builder, n *Node, depth int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString("- ")
	b.WriteString(n.Title)
	if n.Description != "" {
		b.WriteString(": ")
		b.WriteString(n.Description)
	}
	b.WriteString("\n")
	for _, e := range n.Entries {
		if e.State != model.EntryReady {
			continue
		}
		b.WriteString(indent)
		b.WriteString("  * ")
		b.WriteString(e.Filename)
		b.WriteString("\n")
	}
	for _, c := range n.Children {
		serializeGuided(b, c, depth+1)
	}
}
