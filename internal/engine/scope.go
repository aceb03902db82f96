package engine

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// lockScope returns the subtree lock keys an edit on ids may write under.
// Recalculation reaches past the targets' own products: aggregates and
// components notify the schemas whose blocks reference them, and a changed
// schema notifies the schemas embedding it as a sub-RBD. Every product root
// reachable that way is locked, together with the targets' own.
//
// Targets are expanded downward as well, since restore and recalculate
// recompute a product or container subtree; nodes reached through
// back-references are expanded upward only.
func (e *Engine) lockScope(ctx context.Context, ids []string) ([]string, error) {
	type visit struct {
		id   string
		down bool
	}
	var (
		keys  = make(map[string]struct{})
		seen  = make(map[visit]struct{})
		queue = make([]visit, 0, len(ids))
	)
	for _, id := range ids {
		queue = append(queue, visit{id: id, down: true})
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}

		n, err := e.store.Fetch(ctx, v.id)
		if errors.Is(err, node.ErrNotFound) {
			keys[v.id] = struct{}{}
			continue
		}
		if err != nil {
			return nil, err
		}
		root, err := e.rootOf(ctx, n)
		if err != nil {
			return nil, err
		}
		keys[root] = struct{}{}

		for schema := range n.RbdRefs {
			queue = append(queue, visit{id: schema})
		}
		switch {
		case n.Role.IsComponent():
			if n.Parent != "" {
				queue = append(queue, visit{id: n.Parent})
			}
		case n.Role.IsRBD():
			if n.Parent != "" {
				queue = append(queue, visit{id: n.Parent})
			}
		}
		if v.down && (n.Role == node.RoleProduct || n.Role == node.RoleContainer) {
			for _, child := range n.Children {
				queue = append(queue, visit{id: child, down: true})
			}
		}
	}

	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	return out, nil
}

// rootOf returns the lock key of n's subtree: its product, or n itself
// outside any product.
func (e *Engine) rootOf(ctx context.Context, n *node.Node) (string, error) {
	if n.Role == node.RoleProduct {
		return n.ID, nil
	}
	product, err := node.Ancestor(ctx, e.store, n, node.RoleProduct)
	if err != nil {
		return "", err
	}
	if product == nil {
		return n.ID, nil
	}
	return product.ID, nil
}
