package rbd

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// DefaultMaxSteps bounds a single traversal when no budget is configured.
const DefaultMaxSteps = 100000

// Chain is a forward-traceable run of the graph from Source to Target,
// both inclusive.
type Chain struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Visitor is called for every contributor along a chain, in order.
// Blocks and sub-RBDs arrive with a nil group; a group start arrives with its
// resolved group, after which the walk resumes at the group end.
type Visitor func(n *node.Node, g *Group) error

// Walker traces chains through the RBD graph held by a node provider.
type Walker struct {
	nodes    node.Provider
	maxSteps int
}

// NewWalker returns a Walker. maxSteps <= 0 selects DefaultMaxSteps.
func NewWalker(p node.Provider, maxSteps int) *Walker {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Walker{nodes: p, maxSteps: maxSteps}
}

// Trace checks that target is reachable from source and returns the chain.
func (w *Walker) Trace(ctx context.Context, source, target string) (Chain, error) {
	src, err := w.nodes.Fetch(ctx, source)
	if err != nil {
		return Chain{}, fmt.Errorf("trace %s: %w", source, err)
	}
	dst, err := w.nodes.Fetch(ctx, target)
	if err != nil {
		return Chain{}, fmt.Errorf("trace %s: %w", target, err)
	}
	if src.Parent != dst.Parent {
		return Chain{}, fmt.Errorf("trace %s -> %s: different schemas: %w", source, target, ErrNotConnected)
	}
	c := Chain{Source: source, Target: target}
	if err := w.Walk(ctx, c, func(*node.Node, *Group) error { return nil }); err != nil {
		return Chain{}, err
	}
	return c, nil
}

// Walk visits the contributors of c in order. Nested groups are not
// descended into; the visitor decides whether to walk their branches.
func (w *Walker) Walk(ctx context.Context, c Chain, visit Visitor) error {
	budget := w.maxSteps
	return w.walk(ctx, c, &budget, visit)
}

func (w *Walker) walk(ctx context.Context, c Chain, budget *int, visit Visitor) error {
	cur, err := w.nodes.Fetch(ctx, c.Source)
	if err != nil {
		return fmt.Errorf("walk %s: %w", c.Source, err)
	}
	for {
		*budget--
		if *budget < 0 {
			return fmt.Errorf("walk %s -> %s: step budget exhausted at %s: %w", c.Source, c.Target, cur.ID, ErrInvalidElement)
		}
		switch cur.Role {
		case node.RoleBlock, node.RoleSubRbd:
			if err := visit(cur, nil); err != nil {
				return err
			}
		case node.RoleGroupStart:
			g, err := ResolveGroup(ctx, w.nodes, cur.ID, false)
			if err != nil {
				return err
			}
			if err := visit(cur, g); err != nil {
				return err
			}
			cur = g.End
		}

		if cur.ID == c.Target {
			return nil
		}

		out, err := cur.SingleOutput()
		if err != nil {
			return fmt.Errorf("walk %s -> %s: %w", c.Source, c.Target, err)
		}
		if out == nil {
			return fmt.Errorf("walk %s -> %s: %s has no output: %w", c.Source, c.Target, cur.ID, ErrInvalidElement)
		}
		if cur, err = w.nodes.Fetch(ctx, *out); err != nil {
			return fmt.Errorf("walk %s -> %s: %w", c.Source, c.Target, err)
		}
	}
}

// Semantics lists every block and sub-RBD along c, expanding nested groups
// branch by branch.
func (w *Walker) Semantics(ctx context.Context, c Chain) ([]string, error) {
	var ids []string
	budget := w.maxSteps
	var collect func(c Chain) error
	collect = func(c Chain) error {
		return w.walk(ctx, c, &budget, func(n *node.Node, g *Group) error {
			if g == nil {
				ids = append(ids, n.ID)
				return nil
			}
			for _, b := range g.Branches() {
				if err := collect(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := collect(c); err != nil {
		return nil, err
	}
	return ids, nil
}

// SchemaChain returns the chain running from the schema's input node to its
// output node.
func (w *Walker) SchemaChain(ctx context.Context, schema *node.Node) (Chain, error) {
	var c Chain
	for _, id := range schema.Children {
		child, err := w.nodes.Fetch(ctx, id)
		if err != nil {
			return Chain{}, fmt.Errorf("schema %s: %w", schema.ID, err)
		}
		switch child.Role {
		case node.RoleInput:
			c.Source = child.ID
		case node.RoleOutput:
			c.Target = child.ID
		}
	}
	if c.Source == "" || c.Target == "" {
		return Chain{}, fmt.Errorf("schema %s: missing input or output node: %w", schema.ID, ErrSchemaNotTraceable)
	}
	return c, nil
}
