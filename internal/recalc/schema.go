package recalc

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/metrics"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/rbd"
)

// Evaluation is the reliability of a schema at one point in time.
// Absent fields mean the schema is not calculable yet.
type Evaluation struct {
	Schema      string   `json:"schema"`
	Model       string   `json:"model,omitempty"`
	Time        *float64 `json:"time,omitempty"`
	Reliability *float64 `json:"reliability,omitempty"`
	MTBF        *float64 `json:"mtbf,omitempty"`
	Unbounded   bool     `json:"mtbf_unbounded,omitempty"`
}

// EvaluateSchema compiles the schema's graph and evaluates it at t, or at
// the schema's expected life time when t is nil. Nothing is persisted.
func (d *Driver) EvaluateSchema(ctx context.Context, schema *node.Node, t *float64) (*Evaluation, error) {
	start := time.Now()
	defer func() {
		metrics.SchemaEvaluationDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	chain, err := d.walker.SchemaChain(ctx, schema)
	if err != nil {
		return nil, err
	}
	model, err := d.walker.Compile(ctx, chain)
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{Schema: schema.ID}
	if model == nil {
		return ev, nil
	}
	ev.Model = model.String()

	if t == nil {
		if t, err = d.schemaLifeTime(ctx, schema); err != nil {
			return nil, err
		}
	}
	if t != nil {
		ev.Time = t
		if r, ok := rbd.Evaluate(model, *t); ok {
			ev.Reliability = finite(r)
		}
	}
	mtbf := rbd.MTBF(model, d.settings.Quadrature)
	ev.MTBF = finite(mtbf)
	ev.Unbounded = math.IsInf(mtbf, 1)
	return ev, nil
}

// recomputeSchema re-evaluates a schema and persists its variables. The
// persisted failure rate is the equivalent constant rate 1/MTBF (zero when
// the MTBF is unbounded), which is what sub-RBDs embedding the schema
// contribute. Reports whether the variables changed.
func (d *Driver) recomputeSchema(ctx context.Context, schema *node.Node) (bool, error) {
	ev, err := d.EvaluateSchema(ctx, schema, nil)
	if err != nil {
		return false, err
	}
	var vars *node.Variables
	switch {
	case ev.Unbounded:
		vars = &node.Variables{FailureRate: node.Ptr(0.0)}
	case ev.MTBF != nil:
		vars = &node.Variables{MTBF: ev.MTBF, FailureRate: finite(1 / *ev.MTBF)}
	}
	if vars != nil && ev.Reliability != nil {
		vars.Reliability = ev.Reliability
		vars.FailureProbability = finite(1 - *ev.Reliability)
	}
	if sameVars(schema.Vars, vars) {
		return false, nil
	}
	schema.Vars = vars
	return true, d.store.Save(ctx, schema)
}

// auditSchema recomputes the structural-health flags of a schema.
func (d *Driver) auditSchema(ctx context.Context, schema *node.Node) error {
	chain, err := d.walker.SchemaChain(ctx, schema)
	if err != nil {
		return err
	}
	ids, err := d.walker.Semantics(ctx, chain)
	if err != nil {
		return err
	}

	var flags node.Flags
	refs := make(map[string]int)
	for _, id := range ids {
		n, err := d.store.Fetch(ctx, id)
		if err != nil {
			return err
		}
		if n.Ref == nil || *n.Ref == "" {
			flags.EmptyBlocks = true
			continue
		}
		refs[*n.Ref]++
		ref, err := d.store.Fetch(ctx, *n.Ref)
		if err != nil && !errors.Is(err, node.ErrNotFound) {
			return err
		}
		calculable := err == nil
		if calculable {
			_, calculable = ref.FailureRate()
		}
		if calculable {
			continue
		}
		if n.Role == node.RoleSubRbd {
			flags.SubsWithNotCalculatedSchemas = true
		} else {
			flags.BlocksWithElementsWoParameters = true
		}
	}
	for _, count := range refs {
		if count > 1 {
			flags.ContainsDuplicates = true
		}
	}

	if schema.Flags != nil && *schema.Flags == flags {
		return nil
	}
	schema.Flags = &flags
	return d.store.Save(ctx, schema)
}

// schemaLifeTime is the schema's own expected life time, falling back to its
// product's.
func (d *Driver) schemaLifeTime(ctx context.Context, schema *node.Node) (*float64, error) {
	if schema.ExpectedLifeTime != nil {
		return schema.ExpectedLifeTime, nil
	}
	return d.expectedLifeTime(ctx, schema)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
