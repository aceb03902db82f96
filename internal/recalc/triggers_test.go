package recalc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerSet_RegisterIsIdempotent(t *testing.T) {
	ts := NewTriggerSet()
	assert.True(t, ts.Empty())

	ts.Register(Schemas, "P/S")
	ts.Register(Schemas, "P/S")
	ts.Register(SchemaFlags, "P/S")

	assert.False(t, ts.Empty())
	assert.Equal(t, 1, ts.Len(Schemas))
	assert.True(t, ts.Has(SchemaFlags, "P/S"))
	assert.False(t, ts.Has(Products, "P/S"))
}

func TestTriggerSet_DrainOrder(t *testing.T) {
	ts := NewTriggerSet()
	for _, id := range []string{"P", "P/c/k", "P/c"} {
		ts.Register(Elements, id)
		ts.Register(Restored, id)
		ts.Register(Products, id)
	}

	// deepest first, so a container is summed after its sub-containers
	assert.Equal(t, []string{"P/c/k", "P/c", "P"}, ts.IDs(Elements))
	assert.Equal(t, []string{"P/c/k", "P/c", "P"}, ts.IDs(Restored))
	assert.Equal(t, []string{"P", "P/c", "P/c/k"}, ts.IDs(Products))
}

func TestTriggerSet_TakeClears(t *testing.T) {
	ts := NewTriggerSet()
	ts.Register(Products, "B")
	ts.Register(Products, "A")
	ts.Register(Schemas, "S")

	assert.Equal(t, []string{"A", "B"}, ts.Take(Products))
	assert.Zero(t, ts.Len(Products))
	assert.Equal(t, map[string][]string{"schemas": {"S"}}, ts.Snapshot())
	assert.Empty(t, ts.Take(Products))
}

func TestCategory_String(t *testing.T) {
	want := []string{"restored_elements", "elements", "products", "schemas", "schemas_flags"}
	for i, c := range Categories {
		assert.Equal(t, want[i], c.String())
	}
}

func TestOperation_Nesting(t *testing.T) {
	d := NewDriver(newStore(t), Settings{})

	ctx, outer := Begin(context.Background())
	require.True(t, outer.Owns())
	assert.NotEmpty(t, outer.ID)

	inner, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, outer, inner)

	nestedCtx, nested := Begin(ctx)
	assert.False(t, nested.Owns())
	assert.Equal(t, outer.ID, nested.ID)
	assert.Same(t, outer.Triggers(), nested.Triggers())

	nested.Register(Products, "P")
	report, err := d.Commit(nestedCtx, nested)
	require.NoError(t, err)
	assert.Nil(t, report, "nested commit must not drain")
	assert.Equal(t, Accumulating, outer.State())
	assert.True(t, outer.Triggers().Has(Products, "P"))

	// a third level still hangs off the outermost owner
	_, deeper := Begin(nestedCtx)
	assert.Equal(t, outer.ID, deeper.ID)

	report, err = d.Commit(ctx, outer)
	require.NoError(t, err)
	assert.Equal(t, outer.ID, report.OperationID)
	assert.Equal(t, []string{"P"}, report.Recomputed["products"])
	assert.Equal(t, Done, outer.State())
	assert.Equal(t, Done, nested.State())
	assert.True(t, outer.Triggers().Empty())

	_, err = d.Commit(ctx, outer)
	assert.Error(t, err)
}

func TestOperation_IndependentOwners(t *testing.T) {
	_, a := Begin(context.Background())
	_, b := Begin(context.Background())
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Triggers(), b.Triggers())
}
