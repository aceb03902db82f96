package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/config"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/metrics"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/quad"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/recalc"
)

// Kind names what an edit asks the engine to do with its targets.
type Kind string

const (
	// KindPropagate: the targets were edited; recompute whatever depends on them.
	KindPropagate Kind = "propagate"
	// KindRestore: the targets came back from the bin; recompute their
	// subtrees and their ancestors.
	KindRestore Kind = "restore"
	// KindRecalculate: recompute the targets themselves (schema, product or
	// container subtree) regardless of what changed.
	KindRecalculate Kind = "recalculate"
)

var (
	ErrUnknownKind = errors.New("unknown edit kind")
	ErrQueueFull   = errors.New("edit queue full")
	ErrTimeout     = errors.New("edit processing timeout")
)

// Edit is one request to the engine. All targets of an edit share one
// operation, so overlapping consequences are recomputed once.
type Edit struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Targets    []string  `json:"targets"`
	ReceivedAt time.Time `json:"-"`
}

// EditResult is the outcome of processing a single edit.
type EditResult struct {
	EditID      string              `json:"edit_id"`
	OperationID string              `json:"operation_id,omitempty"`
	DurationMs  int64               `json:"duration_ms"`
	Recomputed  map[string][]string `json:"recomputed,omitempty"`
	Error       string              `json:"error,omitempty"`

	err error
}

// Err returns the processing error, if any.
func (r *EditResult) Err() error { return r.err }

// Engine applies edits to a node store. Edits touching the same product
// subtree are serialized; edits on disjoint subtrees run concurrently on the
// worker pool.
type Engine struct {
	driver atomic.Pointer[recalc.Driver]
	store  node.Store
	locks  *keyLocks
	pool   *workerPool[*editWork]
	conf   *config.EngineConf
}

type editWork struct {
	ed      *Edit
	resultC chan *EditResult
}

// SettingsFrom converts the reliability config section into driver settings.
func SettingsFrom(c config.ReliabilityConf) recalc.Settings {
	return recalc.Settings{
		Quadrature:       quad.ExpSinh{Refinements: c.Refinements, Tolerance: c.Tolerance},
		MaxTraceSteps:    c.MaxTraceSteps,
		MaxSchemaCascade: c.MaxSchemaCascade,
	}
}

// New creates an Engine using conf and starts the worker pool.
func New(ctx context.Context, store node.Store, conf config.EngineConf, s recalc.Settings) *Engine {
	e := &Engine{
		store: store,
		locks: newKeyLocks(),
		conf:  &conf,
	}
	e.driver.Store(recalc.NewDriver(store, s))
	e.pool = newWorkerPool[*editWork](ctx, conf.Workers, conf.QueueDepth, func(ctx context.Context, w *editWork) {
		res := e.Apply(ctx, w.ed)
		if w.resultC != nil {
			w.resultC <- res
		}
	})
	return e
}

// SwapSettings atomically replaces the evaluation settings (used on hot-reload).
// Edits already running finish with the settings they started with.
func (e *Engine) SwapSettings(s recalc.Settings) {
	e.driver.Store(recalc.NewDriver(e.store, s))
}

// Settings returns the evaluation settings currently in effect.
func (e *Engine) Settings() recalc.Settings {
	return e.driver.Load().Settings()
}

// ProcessSync processes an edit on the pool and waits for its result.
func (e *Engine) ProcessSync(ctx context.Context, ed *Edit) (*EditResult, error) {
	resultC := make(chan *EditResult, 1)
	if !e.pool.Submit(&editWork{ed: ed, resultC: resultC}) {
		metrics.EditsDropped.Inc()
		return nil, fmt.Errorf("capacity %d: %w", e.conf.QueueDepth, ErrQueueFull)
	}
	metrics.EditsEnqueued.Inc()

	timeout := time.Duration(e.conf.EditTimeoutMs) * time.Millisecond
	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("after %v: %w", timeout, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues an edit for background processing. Returns false if the queue is full.
func (e *Engine) ProcessAsync(ed *Edit) bool {
	if !e.pool.Submit(&editWork{ed: ed}) {
		metrics.EditsDropped.Inc()
		return false
	}
	metrics.EditsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// BusyWorkers returns how many workers are applying an edit right now.
func (e *Engine) BusyWorkers() int { return e.pool.Busy() }

// Apply runs an edit in the calling goroutine: it locks the affected
// subtrees, registers the edit's consequences and drains them.
func (e *Engine) Apply(ctx context.Context, ed *Edit) *EditResult {
	start := time.Now()
	d := e.driver.Load()
	res := &EditResult{EditID: ed.ID}

	report, err := e.apply(ctx, d, ed)
	if report != nil {
		res.OperationID = report.OperationID
		res.Recomputed = report.Recomputed
	}
	status := "success"
	if err != nil {
		status = "error"
		res.err = err
		res.Error = err.Error()
	}
	res.DurationMs = time.Since(start).Milliseconds()
	metrics.EditsProcessed.WithLabelValues(string(ed.Kind), status).Inc()
	metrics.EditProcessingDuration.Observe(float64(res.DurationMs))
	return res
}

func (e *Engine) apply(ctx context.Context, d *recalc.Driver, ed *Edit) (*recalc.Report, error) {
	roots, err := e.lockScope(ctx, ed.Targets)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(roots...)
	defer unlock()

	ctx, op := recalc.Begin(ctx)
	for _, id := range ed.Targets {
		if err := e.register(ctx, d, op, ed.Kind, id); err != nil {
			return nil, err
		}
	}
	return d.Commit(ctx, op)
}

func (e *Engine) register(ctx context.Context, d *recalc.Driver, op *recalc.Operation, kind Kind, id string) error {
	switch kind {
	case KindPropagate:
		return d.Propagate(ctx, op, id)
	case KindRestore:
		return d.Restore(ctx, op, id)
	case KindRecalculate:
		n, err := e.store.Fetch(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case n.Role == node.RoleSchema:
			op.Register(recalc.Schemas, id)
			op.Register(recalc.SchemaFlags, id)
		case n.Role == node.RoleProduct:
			op.Register(recalc.Products, id)
		case n.Role.IsComponent():
			op.Register(recalc.Restored, id)
			return d.Propagate(ctx, op, id)
		default:
			return d.Propagate(ctx, op, id)
		}
		return nil
	}
	return fmt.Errorf("%q: %w", kind, ErrUnknownKind)
}

// EvaluateSchema evaluates a schema at t (nil: its expected life time)
// under the schema's subtree lock, without persisting anything.
func (e *Engine) EvaluateSchema(ctx context.Context, id string, t *float64) (*recalc.Evaluation, error) {
	n, err := e.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	root, err := e.rootOf(ctx, n)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(root)
	defer unlock()

	schema, err := e.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if schema.Role != node.RoleSchema {
		return nil, fmt.Errorf("%s is a %s, not a schema: %w", id, schema.Role, node.ErrNotAnElement)
	}
	return e.driver.Load().EvaluateSchema(ctx, schema, t)
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}
