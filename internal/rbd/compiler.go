package rbd

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// Compile builds the algebraic model of c. Blocks and sub-RBDs whose
// referenced element has no failure rate contribute nothing (no leaf at all),
// and groups whose branches all compile to nothing are dropped. A nil model
// with a nil error means nothing along the chain is calculable yet.
//
// All traversal of one call, nested branches included, shares a single step
// budget.
func (w *Walker) Compile(ctx context.Context, c Chain) (*Model, error) {
	budget := w.maxSteps
	return w.compile(ctx, c, &budget)
}

func (w *Walker) compile(ctx context.Context, c Chain, budget *int) (*Model, error) {
	var parts []*Model
	err := w.walk(ctx, c, budget, func(n *node.Node, g *Group) error {
		if g == nil {
			rate, ok, err := w.contributorRate(ctx, n)
			if err != nil {
				return err
			}
			if ok {
				parts = append(parts, Leaf(rate))
			}
			return nil
		}
		var branches []*Model
		for _, b := range g.Branches() {
			m, err := w.compile(ctx, b, budget)
			if err != nil {
				return fmt.Errorf("group %s: %w", g.Start.ID, err)
			}
			if m != nil {
				branches = append(branches, m)
			}
		}
		if len(branches) > 0 {
			parts = append(parts, Parallel(branches...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return Series(parts...), nil
}

// contributorRate resolves the failure rate a block or sub-RBD contributes:
// the referenced component's rate for a block, the referenced schema's
// computed rate for a sub-RBD. Unbound and dangling references are not
// calculable rather than malformed.
func (w *Walker) contributorRate(ctx context.Context, n *node.Node) (float64, bool, error) {
	if n.Ref == nil || *n.Ref == "" {
		return 0, false, nil
	}
	ref, err := w.nodes.Fetch(ctx, *n.Ref)
	if errors.Is(err, node.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s ref %s: %w", n.ID, *n.Ref, err)
	}
	if n.Role == node.RoleSubRbd && ref.Role != node.RoleSchema {
		return 0, false, fmt.Errorf("%s ref %s is a %s: %w", n.ID, ref.ID, ref.Role, ErrInvalidElement)
	}
	rate, ok := ref.FailureRate()
	return rate, ok, nil
}
