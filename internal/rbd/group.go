package rbd

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// Group is a validated parallel section: a GroupStart, its paired GroupEnd
// and one branch per start output.
type Group struct {
	Start *node.Node
	End   *node.Node
}

// Branches returns one chain per output of the group start, each ending at
// the group end.
func (g *Group) Branches() []Chain {
	out := make([]Chain, 0, len(g.Start.Outputs))
	for _, o := range g.Start.Outputs {
		out = append(out, Chain{Source: o, Target: g.End.ID})
	}
	return out
}

// ResolveGroup fetches the group opened by startID and checks its
// well-formedness. With validate set, single-branch groups are rejected too;
// that check is for group creation only, evaluation tolerates them.
func ResolveGroup(ctx context.Context, p node.Provider, startID string, validate bool) (*Group, error) {
	start, err := p.Fetch(ctx, startID)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", startID, err)
	}
	if start.Role != node.RoleGroupStart || start.End == nil {
		return nil, fmt.Errorf("group %s: %w", startID, ErrInvalidGroup)
	}
	end, err := p.Fetch(ctx, *start.End)
	if err != nil {
		return nil, fmt.Errorf("group %s: end %s: %w", startID, *start.End, err)
	}
	if end.Role != node.RoleGroupEnd || end.Start == nil || *end.Start != start.ID {
		return nil, fmt.Errorf("group %s: end %s does not point back: %w", startID, end.ID, ErrInvalidGroup)
	}
	if len(start.Outputs) != len(end.Inputs) {
		return nil, fmt.Errorf("group %s: %d outputs vs %d inputs: %w",
			startID, len(start.Outputs), len(end.Inputs), ErrGroupNotTraceable)
	}
	if validate && len(start.Outputs) < 2 {
		return nil, fmt.Errorf("group %s: %w", startID, ErrGroupOneChainOnly)
	}
	return &Group{Start: start, End: end}, nil
}
