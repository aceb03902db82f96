package recalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/metrics"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/quad"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/rbd"
)

// DefaultMaxSchemaCascade bounds how many rounds of sub-RBD dependents one
// drain follows.
const DefaultMaxSchemaCascade = 32

// ErrCascadeTooDeep is returned when sub-RBD dependents keep changing past
// the cascade bound, which means schemas reference each other in a cycle.
var ErrCascadeTooDeep = errors.New("rbd_schema_cascade_too_deep")

// Settings tunes evaluation cost.
type Settings struct {
	Quadrature       quad.ExpSinh
	MaxTraceSteps    int
	MaxSchemaCascade int
}

// Report lists what a drain recomputed, per category, in processing order.
type Report struct {
	OperationID string              `json:"operation_id"`
	Recomputed  map[string][]string `json:"recomputed"`
}

func (r *Report) add(c Category, id string) {
	r.Recomputed[c.String()] = append(r.Recomputed[c.String()], id)
}

// Driver drains trigger sets against a node store.
type Driver struct {
	store    node.Store
	walker   *rbd.Walker
	settings Settings
}

// NewDriver returns a Driver over store.
func NewDriver(store node.Store, s Settings) *Driver {
	if s.MaxSchemaCascade <= 0 {
		s.MaxSchemaCascade = DefaultMaxSchemaCascade
	}
	return &Driver{
		store:    store,
		walker:   rbd.NewWalker(store, s.MaxTraceSteps),
		settings: s,
	}
}

// Settings returns the driver's evaluation settings.
func (d *Driver) Settings() Settings { return d.settings }

// Propagate registers the consequences of editing id into op's trigger set.
func (d *Driver) Propagate(ctx context.Context, op *Operation, id string) error {
	return Propagate(ctx, d.store, op.triggers, id)
}

// Restore registers id as a restored element (its whole subtree is
// recomputed) and propagates to its ancestors.
func (d *Driver) Restore(ctx context.Context, op *Operation, id string) error {
	op.Register(Restored, id)
	return d.Propagate(ctx, op, id)
}

// Commit ends op. Only the owning operation drains; nested operations return
// a nil report. Categories are drained in order and each is cleared once
// processed. The first failure aborts the remaining categories; categories
// already drained stay applied.
func (d *Driver) Commit(ctx context.Context, op *Operation) (*Report, error) {
	if !op.Owns() {
		return nil, nil
	}
	if op.state != Accumulating {
		return nil, fmt.Errorf("operation %s: commit in state %s", op.ID, op.state)
	}
	op.state = Draining
	defer func() { op.state = Done }()

	report := &Report{OperationID: op.ID, Recomputed: make(map[string][]string)}
	for _, c := range Categories {
		if op.triggers.Len(c) == 0 {
			continue
		}
		slog.Debug("draining triggers", "op", op.ID, "category", c.String(), "count", op.triggers.Len(c))
		if err := d.drain(ctx, op.triggers, c, report); err != nil {
			metrics.DrainFailures.WithLabelValues(c.String()).Inc()
			slog.Warn("recalculation aborted", "op", op.ID, "category", c.String(), "err", err)
			return report, fmt.Errorf("%s: %w", c, err)
		}
	}
	return report, nil
}

func (d *Driver) drain(ctx context.Context, t *TriggerSet, c Category, report *Report) error {
	if c == Schemas {
		return d.drainSchemas(ctx, t, report)
	}
	for _, id := range t.Take(c) {
		n, err := d.store.Fetch(ctx, id)
		if errors.Is(err, node.ErrNotFound) {
			slog.Debug("trigger target gone", "category", c.String(), "id", id)
			continue
		}
		if err != nil {
			return err
		}
		switch c {
		case Restored:
			err = d.recomputeSubtree(ctx, t, n)
		case Elements:
			switch n.Role {
			case node.RoleContainer, node.RoleProduct:
				err = d.recomputeAggregate(ctx, t, n)
			default:
				continue
			}
		case Products:
			err = d.recomputeSubtree(ctx, t, n)
		case SchemaFlags:
			err = d.auditSchema(ctx, n)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		metrics.Recomputations.WithLabelValues(c.String()).Inc()
		report.add(c, id)
	}
	return nil
}

// drainSchemas recomputes the registered schemas, then, round by round, the
// schemas embedding a changed one through a sub-RBD.
func (d *Driver) drainSchemas(ctx context.Context, t *TriggerSet, report *Report) error {
	for round := 0; t.Len(Schemas) > 0; round++ {
		if round >= d.settings.MaxSchemaCascade {
			return fmt.Errorf("%d rounds, still pending %v: %w", round, t.IDs(Schemas), ErrCascadeTooDeep)
		}
		for _, id := range t.Take(Schemas) {
			schema, err := d.store.Fetch(ctx, id)
			if errors.Is(err, node.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			changed, err := d.recomputeSchema(ctx, schema)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			metrics.Recomputations.WithLabelValues(Schemas.String()).Inc()
			report.add(Schemas, id)
			if !changed {
				continue
			}
			for _, dep := range sortedKeys(schema.RbdRefs) {
				t.Register(Schemas, dep)
				t.Register(SchemaFlags, dep)
			}
		}
	}
	return nil
}
