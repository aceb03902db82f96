package recalc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// State is the lifecycle position of an operation's trigger set.
type State int

const (
	Accumulating State = iota
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case Draining:
		return "draining"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Operation is one logical unit of work. The outermost operation owns the
// trigger set and drains it on commit; operations begun inside it share the
// owner's set and their commit is a no-op, so repeated edits coalesce until
// the outermost commit.
type Operation struct {
	ID       string
	triggers *TriggerSet
	owner    *Operation // nil for the owning operation
	state    State
}

type operationKey struct{}

// Begin starts an operation. If ctx already carries one, the new operation
// is nested and registrations pass through to the owner.
func Begin(ctx context.Context) (context.Context, *Operation) {
	if parent, ok := ctx.Value(operationKey{}).(*Operation); ok {
		owner := parent.root()
		op := &Operation{ID: owner.ID, triggers: owner.triggers, owner: owner}
		return context.WithValue(ctx, operationKey{}, op), op
	}
	op := &Operation{ID: uuid.NewString(), triggers: NewTriggerSet()}
	return context.WithValue(ctx, operationKey{}, op), op
}

// FromContext returns the operation carried by ctx, if any.
func FromContext(ctx context.Context) (*Operation, bool) {
	op, ok := ctx.Value(operationKey{}).(*Operation)
	return op, ok
}

// Owns reports whether this operation drains the trigger set.
func (o *Operation) Owns() bool { return o.owner == nil }

// State returns the owner's lifecycle state.
func (o *Operation) State() State { return o.root().state }

// Triggers returns the shared trigger set.
func (o *Operation) Triggers() *TriggerSet { return o.triggers }

// Register adds id to category c of the shared trigger set.
func (o *Operation) Register(c Category, id string) { o.triggers.Register(c, id) }

func (o *Operation) root() *Operation {
	if o.owner != nil {
		return o.owner
	}
	return o
}
