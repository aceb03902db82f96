package recalc

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/reliability"
)

// recomputeAggregate sets a container's or product's failure rate to the sum
// over its direct component children that have one. With no such child the
// aggregate's variables are cleared, not zeroed.
func (d *Driver) recomputeAggregate(ctx context.Context, t *TriggerSet, n *node.Node) error {
	var (
		sum    float64
		valued bool
	)
	for _, id := range n.Children {
		child, err := d.store.Fetch(ctx, id)
		if errors.Is(err, node.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !child.Role.IsComponent() {
			continue
		}
		if rate, ok := child.FailureRate(); ok {
			sum += rate
			valued = true
		}
	}

	var vars *node.Variables
	if valued {
		timespan, err := d.expectedLifeTime(ctx, n)
		if err != nil {
			return err
		}
		v, err := reliability.Derive(node.Variables{FailureRate: &sum}, timespan)
		if err != nil {
			return err
		}
		vars = &v
	}
	return d.saveVars(ctx, t, n, vars)
}

// recomputeSubtree recomputes n's whole component subtree bottom-up:
// children first, then n itself.
func (d *Driver) recomputeSubtree(ctx context.Context, t *TriggerSet, n *node.Node) error {
	switch n.Role {
	case node.RoleContainer, node.RoleProduct:
		for _, id := range n.Children {
			child, err := d.store.Fetch(ctx, id)
			if errors.Is(err, node.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !child.Role.IsComponent() {
				continue
			}
			if err := d.recomputeSubtree(ctx, t, child); err != nil {
				return fmt.Errorf("%s: %w", child.ID, err)
			}
		}
		return d.recomputeAggregate(ctx, t, n)

	case node.RoleElectric, node.RoleProxy:
		if n.Vars.Empty() {
			return nil
		}
		timespan, err := d.expectedLifeTime(ctx, n)
		if err != nil {
			return err
		}
		v, err := reliability.Derive(*n.Vars, timespan)
		if err != nil {
			return err
		}
		return d.saveVars(ctx, t, n, &v)
	}
	return nil
}

// expectedLifeTime returns the expected life time of the product n belongs
// to (n itself when it is the product).
func (d *Driver) expectedLifeTime(ctx context.Context, n *node.Node) (*float64, error) {
	product := n
	if n.Role != node.RoleProduct {
		var err error
		if product, err = node.Ancestor(ctx, d.store, n, node.RoleProduct); err != nil {
			return nil, err
		}
	}
	if product == nil {
		return nil, nil
	}
	return product.ExpectedLifeTime, nil
}

// saveVars persists vars when they differ from n's current ones. Schemas
// whose blocks reference n are registered for recomputation either way, since
// a drain may run after a plain data edit of n.
func (d *Driver) saveVars(ctx context.Context, t *TriggerSet, n *node.Node, vars *node.Variables) error {
	for _, schema := range sortedKeys(n.RbdRefs) {
		t.Register(Schemas, schema)
		t.Register(SchemaFlags, schema)
	}
	if sameVars(n.Vars, vars) {
		return nil
	}
	n.Vars = vars
	return d.store.Save(ctx, n)
}

func sameVars(a, b *node.Variables) bool {
	if a.Empty() && b.Empty() {
		return true
	}
	return reflect.DeepEqual(a, b)
}
