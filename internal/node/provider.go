package node

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("node_not_found")
	ErrNotAnElement    = errors.New("not_an_rbd_element")
	ErrMultipleInputs  = errors.New("rbd_element_has_multiple_inputs")
	ErrMultipleOutputs = errors.New("rbd_element_has_multiple_outputs")
)

// Provider resolves a semantic id to its node. Implementations return an
// error wrapping ErrNotFound for unknown ids. Callers may mutate the returned
// node; it is never shared with the backing store.
type Provider interface {
	Fetch(ctx context.Context, id string) (*Node, error)
}

// Store is a Provider that can also persist nodes.
type Store interface {
	Provider
	Save(ctx context.Context, n *Node) error
}

// Ancestor walks Parent links upward from id (exclusive) and returns the
// nearest ancestor whose role is one of roles, or nil if there is none.
func Ancestor(ctx context.Context, p Provider, n *Node, roles ...Role) (*Node, error) {
	seen := map[string]struct{}{n.ID: {}}
	cur := n
	for cur.Parent != "" {
		if _, loop := seen[cur.Parent]; loop {
			return nil, fmt.Errorf("ancestor of %s: parent cycle at %s", n.ID, cur.Parent)
		}
		seen[cur.Parent] = struct{}{}
		parent, err := p.Fetch(ctx, cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("ancestor of %s: %w", n.ID, err)
		}
		for _, r := range roles {
			if parent.Role == r {
				return parent, nil
			}
		}
		cur = parent
	}
	return nil, nil
}
