package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/config"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/rbd/rbdtest"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/recalc"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/store"
)

var testConf = config.EngineConf{Workers: 2, QueueDepth: 16, EditTimeoutMs: 5000}

// P: e1 (λ=0.001) and e2 (λ=0.002) in series in schema P/S; Q holds a
// lone component.
func testStore() *store.Memory {
	b := rbdtest.New()
	b.Product("P", rbdtest.Rate(1000))
	b.Component("P/e1", node.RoleElectric, "P", rbdtest.Rate(0.001))
	b.Component("P/e2", node.RoleElectric, "P", rbdtest.Rate(0.002))
	b.Schema("P/S", "P")
	b.Block("P/S/A", "P/S", "P/e1")
	b.Block("P/S/B", "P/S", "P/e2")
	b.Chain(rbdtest.In("P/S"), "P/S/A", "P/S/B", rbdtest.Out("P/S"))
	b.Product("Q", nil)
	b.Component("Q/e", node.RoleProxy, "Q", rbdtest.Rate(0.5))
	return b.Store()
}

func newEngine(t *testing.T, st node.Store) *Engine {
	t.Helper()
	e := New(context.Background(), st, testConf, recalc.Settings{})
	t.Cleanup(e.Shutdown)
	return e
}

func TestApply_Propagate(t *testing.T) {
	st := testStore()
	e := newEngine(t, st)

	res := e.Apply(context.Background(), &Edit{ID: "ed-1", Kind: KindPropagate, Targets: []string{"P/e1", "P/e2"}})
	require.NoError(t, res.Err())
	assert.Equal(t, "ed-1", res.EditID)
	assert.NotEmpty(t, res.OperationID)
	assert.Equal(t, []string{"P"}, res.Recomputed["elements"])
	assert.Equal(t, []string{"P/S"}, res.Recomputed["schemas"])

	p, err := st.Fetch(context.Background(), "P")
	require.NoError(t, err)
	r, ok := p.FailureRate()
	require.True(t, ok)
	assert.InDelta(t, 0.003, r, 1e-15)
}

func TestApply_Recalculate(t *testing.T) {
	tests := []struct {
		target string
		want   map[string][]string
	}{
		{"P/S", map[string][]string{"schemas": {"P/S"}, "schemas_flags": {"P/S"}}},
		{"Q", map[string][]string{"products": {"Q"}}},
		{"Q/e", map[string][]string{"restored_elements": {"Q/e"}, "elements": {"Q"}}},
		{"P/S/A", map[string][]string{"schemas": {"P/S"}, "schemas_flags": {"P/S"}}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			e := newEngine(t, testStore())
			res := e.Apply(context.Background(), &Edit{ID: "x", Kind: KindRecalculate, Targets: []string{tt.target}})
			require.NoError(t, res.Err())
			assert.Equal(t, tt.want, res.Recomputed)
		})
	}
}

func TestApply_Restore(t *testing.T) {
	st := testStore()
	e := newEngine(t, st)
	res := e.Apply(context.Background(), &Edit{ID: "r", Kind: KindRestore, Targets: []string{"Q/e"}})
	require.NoError(t, res.Err())

	n, err := st.Fetch(context.Background(), "Q/e")
	require.NoError(t, err)
	require.NotNil(t, n.Vars.MTBF)
	assert.Equal(t, 2.0, *n.Vars.MTBF)
	assert.Nil(t, n.Vars.Reliability, "Q has no expected life time")
}

func TestApply_Errors(t *testing.T) {
	e := newEngine(t, testStore())
	ctx := context.Background()

	res := e.Apply(ctx, &Edit{ID: "k", Kind: "explode", Targets: []string{"P"}})
	assert.ErrorIs(t, res.Err(), ErrUnknownKind)
	assert.NotEmpty(t, res.Error)

	res = e.Apply(ctx, &Edit{ID: "m", Kind: KindPropagate, Targets: []string{"P/ghost"}})
	assert.ErrorIs(t, res.Err(), node.ErrNotFound)
}

func TestProcessSync(t *testing.T) {
	e := newEngine(t, testStore())
	res, err := e.ProcessSync(context.Background(), &Edit{ID: "s", Kind: KindPropagate, Targets: []string{"P/S"}})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, []string{"P/S"}, res.Recomputed["schemas"])
}

func TestProcessSync_Canceled(t *testing.T) {
	e := New(context.Background(), testStore(), config.EngineConf{Workers: 0, QueueDepth: 1, EditTimeoutMs: 5000}, recalc.Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ProcessSync(ctx, &Edit{ID: "c", Kind: KindPropagate, Targets: []string{"P"}})
	assert.True(t, errors.Is(err, context.Canceled))

	// the canceled edit still occupies the only slot
	_, err = e.ProcessSync(context.Background(), &Edit{ID: "d", Kind: KindPropagate, Targets: []string{"P"}})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, e.QueueUtilization())
}

func TestEvaluateSchema(t *testing.T) {
	e := newEngine(t, testStore())
	ctx := context.Background()

	ev, err := e.EvaluateSchema(ctx, "P/S", nil)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-3), *ev.Reliability, 1e-12)
	assert.InEpsilon(t, 1/0.003, *ev.MTBF, 1e-6)

	ev, err = e.EvaluateSchema(ctx, "P/S", node.Ptr(100.0))
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-0.3), *ev.Reliability, 1e-12)

	_, err = e.EvaluateSchema(ctx, "P/e1", nil)
	assert.ErrorIs(t, err, node.ErrNotAnElement)

	_, err = e.EvaluateSchema(ctx, "P/none", nil)
	assert.ErrorIs(t, err, node.ErrNotFound)
}

func TestSwapSettings(t *testing.T) {
	e := newEngine(t, testStore())
	e.SwapSettings(SettingsFrom(config.ReliabilityConf{Refinements: 3, Tolerance: 1e-4, MaxTraceSteps: 10, MaxSchemaCascade: 2}))
	s := e.Settings()
	assert.Equal(t, 3, s.Quadrature.Refinements)
	assert.Equal(t, 1e-4, s.Quadrature.Tolerance)
	assert.Equal(t, 10, s.MaxTraceSteps)
	assert.Equal(t, 2, s.MaxSchemaCascade)
}

// P/S uses P/e1 through a block; Q/S embeds P/S through a sub-RBD.
func crossProductStore() *store.Memory {
	b := rbdtest.New()
	b.Product("P", rbdtest.Rate(1000))
	b.Component("P/c", node.RoleContainer, "P", nil)
	b.Component("P/c/e1", node.RoleElectric, "P/c", rbdtest.Rate(0.001))
	b.Schema("P/S", "P")
	b.Block("P/S/A", "P/S", "P/c/e1")
	b.Chain(rbdtest.In("P/S"), "P/S/A", rbdtest.Out("P/S"))
	b.Product("Q", rbdtest.Rate(1000))
	b.Schema("Q/S", "Q")
	b.Sub("Q/S/sub", "Q/S", "P/S")
	b.Chain(rbdtest.In("Q/S"), "Q/S/sub", rbdtest.Out("Q/S"))
	b.Product("R", nil)
	return b.Store()
}

func TestLockScope(t *testing.T) {
	e := newEngine(t, crossProductStore())
	tests := []struct {
		name    string
		targets []string
		want    []string
	}{
		{"component reaches embedding schemas", []string{"P/c/e1"}, []string{"P", "Q"}},
		{"product subtree", []string{"P"}, []string{"P", "Q"}},
		{"rbd element", []string{"P/S/A"}, []string{"P", "Q"}},
		{"embedding schema stays local", []string{"Q/S"}, []string{"Q"}},
		{"unrelated product", []string{"R"}, []string{"R"}},
		{"unknown id locks itself", []string{"X/ghost"}, []string{"X/ghost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.lockScope(context.Background(), tt.targets)
			require.NoError(t, err)
			sort.Strings(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_WaitsForEmbeddingProductLock(t *testing.T) {
	st := crossProductStore()
	e := newEngine(t, st)

	unlock := e.locks.Lock("Q")
	done := make(chan *EditResult, 1)
	go func() {
		done <- e.Apply(context.Background(), &Edit{ID: "x", Kind: KindPropagate, Targets: []string{"P/c/e1"}})
	}()

	select {
	case res := <-done:
		t.Fatalf("edit finished while Q was locked: recomputed=%v", res.Recomputed)
	case <-time.After(100 * time.Millisecond):
	}
	qs, err := st.Fetch(context.Background(), "Q/S")
	require.NoError(t, err)
	assert.Nil(t, qs.Vars, "Q/S written without Q's lock")

	unlock()
	select {
	case res := <-done:
		require.NoError(t, res.Err())
		assert.Equal(t, []string{"P/S", "Q/S"}, res.Recomputed["schemas"])
	case <-time.After(5 * time.Second):
		t.Fatal("edit did not finish after Q was released")
	}
}

func TestProcessSync_Timeout(t *testing.T) {
	e := New(context.Background(), crossProductStore(), config.EngineConf{Workers: 1, QueueDepth: 4, EditTimeoutMs: 20}, recalc.Settings{})
	t.Cleanup(e.Shutdown)

	unlock := e.locks.Lock("P")
	_, err := e.ProcessSync(context.Background(), &Edit{ID: "t", Kind: KindPropagate, Targets: []string{"P"}})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Eventually(t, func() bool { return e.BusyWorkers() == 1 }, time.Second, time.Millisecond)
	unlock()
}
