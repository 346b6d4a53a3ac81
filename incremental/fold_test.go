package incremental

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/granularity"
	"github.com/hupe1980/rollup/internal/resource"
	"github.com/hupe1980/rollup/testutil"
)

type plainRow struct {
	Timestamp  int64
	Dimensions []Dimension
	Metrics    map[string]any
}

func plain(ix *Index) []plainRow {
	var out []plainRow
	for r := range ix.Rows() {
		out = append(out, plainRow{Timestamp: r.Timestamp, Dimensions: r.Dimensions, Metrics: r.Metrics})
	}
	return out
}

func foldRows() []Row {
	var rows []Row
	for i := range 60 {
		rows = append(rows, pageRow(minutes(90-i), fmt.Sprintf("p%d", i%6), i))
	}
	return rows
}

func TestFold_EqualsSingleIndex(t *testing.T) {
	rows := foldRows()

	whole := newIndex(t, pageSchema())
	for _, r := range rows {
		require.True(t, whole.Add(r).IsRowAdded())
	}

	left := newIndex(t, pageSchema())
	right := newIndex(t, pageSchema(), WithShards(3))
	for i, r := range rows {
		if i%3 == 0 {
			left.Add(r)
		} else {
			right.Add(r)
		}
	}

	rc := resource.NewController(resource.Config{MaxBackgroundWorkers: 4})
	merged := newIndex(t, pageSchema(), WithResourceController(rc))
	require.NoError(t, merged.Fold(t.Context(), right))
	require.NoError(t, merged.Fold(t.Context(), left))

	assert.Equal(t, whole.RowCount(), merged.RowCount())
	assert.Equal(t, plain(whole), plain(merged))
}

func TestFold_RandomPartitions(t *testing.T) {
	rng := testutil.NewRNG(11)
	events := rng.Events(2000, testutil.EventConfig{
		Dimensions:  []string{"page", "country"},
		Cardinality: 8,
		Skew:        1.2,
		Metrics:     []string{"bytes"},
		NullRate:    0.1,
	})
	// Distinct timestamps make first/last independent of arrival order.
	for i := range events {
		events[i].Timestamp = t0 + int64(i)*1000
	}

	schema := Schema{
		Granularity: granularity.Minute,
		Dimensions:  StringDimensions("page", "country"),
		Metrics: []aggregator.Spec{
			{Type: aggregator.TypeLongFirst, Name: "first", FieldName: "bytes"},
			{Type: aggregator.TypeLongLast, Name: "last", FieldName: "bytes"},
			{Type: aggregator.TypeLongSum, Name: "sum", FieldName: "bytes"},
			{Type: aggregator.TypeCount, Name: "rows"},
		},
		Rollup: true,
	}
	toRow := func(e testutil.Event) Row {
		return Row{Timestamp: e.Timestamp, Dimensions: e.Dimensions, Metrics: e.Metrics}
	}

	whole := newIndex(t, schema)
	for _, e := range events {
		require.True(t, whole.Add(toRow(e)).IsRowAdded())
	}

	merged := newIndex(t, schema)
	for _, part := range testutil.Partition(rng.Shuffle(events), 4) {
		ix := newIndex(t, schema, WithShards(2))
		for _, e := range part {
			require.True(t, ix.Add(toRow(e)).IsRowAdded())
		}
		require.NoError(t, merged.Fold(t.Context(), ix))
	}

	assert.Equal(t, plain(whole), plain(merged))
}

func TestFold_Errors(t *testing.T) {
	ix := newIndex(t, pageSchema())

	require.NoError(t, ix.Fold(t.Context(), nil))
	assert.Error(t, ix.Fold(t.Context(), ix))

	other := newIndex(t, pageSchema(), WithByteOrder(binary.BigEndian))
	assert.ErrorIs(t, ix.Fold(t.Context(), other), ErrIncompatibleLayout)

	schema := pageSchema()
	schema.Metrics = []aggregator.Spec{{Type: aggregator.TypeLongLast, Name: "first", FieldName: "v"}}
	other = newIndex(t, schema)
	assert.ErrorIs(t, ix.Fold(t.Context(), other), ErrIncompatibleLayout)
}

func TestFold_Rejection(t *testing.T) {
	src := newIndex(t, pageSchema())
	src.Add(pageRow(t0, "a", 1))
	src.Add(pageRow(t0, "b", 1))
	src.Add(pageRow(t0, "c", 1))

	dst := newIndex(t, pageSchema(), WithMaxRows(1))
	err := dst.Fold(t.Context(), src)

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Maximum number of rows [1] reached", rej.Reason)
	assert.Equal(t, 1, dst.RowCount())
}

func TestFold_Canceled(t *testing.T) {
	src := newIndex(t, pageSchema())
	src.Add(pageRow(t0, "a", 1))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dst := newIndex(t, pageSchema())
	assert.Error(t, dst.Fold(ctx, src))
}

func TestFold_RekeysUnderTargetPolicy(t *testing.T) {
	src := newIndex(t, pageSchema())
	src.Add(pageRow(minutes(2), "Home", 2))
	src.Add(pageRow(minutes(1), "home", 1))
	require.Equal(t, 2, src.RowCount())

	dst := newIndex(t, pageSchema(), WithKeyPolicy(CaseInsensitiveKeys{}))
	require.NoError(t, dst.Fold(t.Context(), src))

	rows := collect(dst)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].Metrics["rows"])
	assert.Equal(t, aggregator.Pair{Time: minutes(1), Value: int64(1)}, rows[0].Metrics["first"])
}
