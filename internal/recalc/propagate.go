package recalc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// Propagate registers everything that becomes stale when id is edited.
//
//	component (container, proxy, electric): nearest container into elements,
//	    recursively; else nearest product into elements. Schemas referencing
//	    the component through RBD blocks are propagated too.
//	product: itself into products.
//	RBD graph node: its schema into schemas and schemas_flags.
//	schema: itself into schemas and schemas_flags.
func Propagate(ctx context.Context, p node.Provider, t *TriggerSet, id string) error {
	n, err := p.Fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("propagate %s: %w", id, err)
	}
	return propagateNode(ctx, p, t, n)
}

func propagateNode(ctx context.Context, p node.Provider, t *TriggerSet, n *node.Node) error {
	switch {
	case n.Role.IsComponent():
		anc, err := node.Ancestor(ctx, p, n, node.RoleContainer, node.RoleProduct)
		if err != nil {
			return fmt.Errorf("propagate %s: %w", n.ID, err)
		}
		if anc != nil {
			t.Register(Elements, anc.ID)
			if anc.Role == node.RoleContainer {
				if err := propagateNode(ctx, p, t, anc); err != nil {
					return err
				}
			}
		}
		for _, schema := range sortedKeys(n.RbdRefs) {
			err := Propagate(ctx, p, t, schema)
			if errors.Is(err, node.ErrNotFound) {
				continue // back-reference to a deleted schema
			}
			if err != nil {
				return err
			}
		}

	case n.Role == node.RoleProduct:
		t.Register(Products, n.ID)

	case n.Role.IsRBD():
		schema, err := node.Ancestor(ctx, p, n, node.RoleSchema)
		if err != nil {
			return fmt.Errorf("propagate %s: %w", n.ID, err)
		}
		if schema != nil {
			t.Register(Schemas, schema.ID)
			t.Register(SchemaFlags, schema.ID)
		}

	case n.Role == node.RoleSchema:
		t.Register(Schemas, n.ID)
		t.Register(SchemaFlags, n.ID)
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
