package incremental

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/granularity"
	"github.com/hupe1980/rollup/internal/resource"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli()

func minutes(n int) int64 { return t0 + int64(n)*time.Minute.Milliseconds() }

func pageSchema() Schema {
	return Schema{
		Granularity: granularity.Hour,
		Dimensions:  StringDimensions("page"),
		Metrics: []aggregator.Spec{
			{Type: aggregator.TypeLongFirst, Name: "first", FieldName: "v"},
			{Type: aggregator.TypeCount, Name: "rows"},
		},
		Rollup: true,
	}
}

func pageRow(ts int64, page string, v any) Row {
	return Row{
		Timestamp:  ts,
		Dimensions: map[string]any{"page": page},
		Metrics:    map[string]any{"v": v},
	}
}

func newIndex(t *testing.T, schema Schema, opts ...Option) *Index {
	t.Helper()
	ix, err := New(schema, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func collect(ix *Index) []MaterializedRow {
	return slices.Collect(ix.Rows())
}

func requireOutcomeInvariant(t *testing.T, r AddResult) {
	t.Helper()
	parseFailed := r.HasParseError()
	_, rejected := r.RejectionReason()
	assert.False(t, parseFailed && rejected, "both parse failure and rejection set")
	assert.Equal(t, !parseFailed && !rejected, r.IsRowAdded())
	assert.Equal(t, parseFailed, r.ParseError() != nil)
}

func TestIndex_RollupMergesDuplicateKeys(t *testing.T) {
	ix := newIndex(t, pageSchema())

	rows := []Row{
		pageRow(minutes(15), "a", 5),
		pageRow(minutes(5), "a", 3),
		pageRow(minutes(20), "b", 7),
		pageRow(minutes(60), "a", 9),
		pageRow(minutes(30), "c", 1),
	}
	var last AddResult
	for _, r := range rows {
		last = ix.Add(r)
		require.True(t, last.IsRowAdded())
	}

	assert.Equal(t, 4, ix.RowCount())
	assert.Equal(t, 4, last.RowCount)

	got := collect(ix)
	require.Len(t, got, 4)
	assert.Equal(t, t0, got[0].Timestamp)
	page, ok := got[0].Dimension("page")
	require.True(t, ok)
	assert.Equal(t, "a", page)
	assert.Equal(t, aggregator.Pair{Time: minutes(5), Value: int64(3)}, got[0].Metrics["first"])
	assert.Equal(t, int64(2), got[0].Metrics["rows"])

	assert.Equal(t, minutes(60), got[3].Timestamp)
	assert.Equal(t, aggregator.Pair{Time: minutes(60), Value: int64(9)}, got[3].Metrics["first"])
}

func TestIndex_OutcomeInvariant(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	ix := newIndex(t, pageSchema(),
		WithMaxRows(2),
		WithTimestampWindow(t0, minutes(24*60)),
		WithResourceController(rc),
	)

	results := []AddResult{
		ix.Add(pageRow(minutes(1), "a", 1)),
		ix.Add(pageRow(minutes(1), "b", "oops")),
		ix.Add(pageRow(t0-1, "a", 1)),
		ix.Add(pageRow(minutes(2), "b", 2)),
		ix.Add(pageRow(minutes(3), "c", 3)),
		ix.Add(pageRow(minutes(4), "a", nil)),
		ix.AddParseFailure(&ParseError{Detail: "bad"}),
	}
	for i, r := range results {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			requireOutcomeInvariant(t, r)
		})
	}

	assert.True(t, results[0].IsRowAdded())
	assert.True(t, results[1].HasParseError())
	_, rejected := results[2].RejectionReason()
	assert.True(t, rejected)
	assert.True(t, results[3].IsRowAdded())
	_, rejected = results[4].RejectionReason()
	assert.True(t, rejected)
	assert.True(t, results[5].IsRowAdded())
	assert.True(t, results[6].HasParseError())
}

func TestIndex_ParseFailureLeavesIndexUnchanged(t *testing.T) {
	schema := pageSchema()
	schema.Dimensions.Dimensions = append(schema.Dimensions.Dimensions, DimensionSchema{Name: "status", Type: DimensionLong})
	ix := newIndex(t, schema)

	r := ix.Add(Row{
		Timestamp:  t0,
		Dimensions: map[string]any{"page": "a", "status": "teapot"},
		Metrics:    map[string]any{"v": "abc"},
	})
	require.True(t, r.HasParseError())
	pe := r.ParseError()
	assert.Equal(t, []string{"status", "v"}, pe.Columns)
	assert.Contains(t, pe.Error(), "found unparseable columns in row: [status, v]")
	assert.ErrorIs(t, pe, aggregator.ErrUnparseable)

	assert.Equal(t, 0, r.RowCount)
	assert.Equal(t, int64(0), r.BytesInMemory)
	assert.Empty(t, collect(ix))
}

func TestIndex_Rejections(t *testing.T) {
	t.Run("timestamp window", func(t *testing.T) {
		ix := newIndex(t, pageSchema(), WithTimestampWindow(0, 100))
		assert.True(t, ix.Add(pageRow(99, "a", 1)).IsRowAdded())

		r := ix.Add(pageRow(100, "a", 1))
		reason, ok := r.RejectionReason()
		require.True(t, ok)
		assert.Contains(t, reason, "outside the ingestion window")
		assert.Equal(t, 1, r.RowCount)
	})

	t.Run("parse failure precedes window", func(t *testing.T) {
		ix := newIndex(t, pageSchema(), WithTimestampWindow(minutes(0), minutes(60)))

		r := ix.Add(pageRow(minutes(120), "home", "not-a-number"))
		requireOutcomeInvariant(t, r)
		require.True(t, r.HasParseError())
		assert.Equal(t, []string{"v"}, r.ParseError().Columns)
		_, rejected := r.RejectionReason()
		assert.False(t, rejected)
		assert.Equal(t, 0, ix.RowCount())
	})

	t.Run("max rows", func(t *testing.T) {
		ix := newIndex(t, pageSchema(), WithMaxRows(2))
		require.True(t, ix.Add(pageRow(t0, "a", 1)).IsRowAdded())
		require.True(t, ix.Add(pageRow(t0, "b", 1)).IsRowAdded())

		r := ix.Add(pageRow(t0, "c", 1))
		reason, ok := r.RejectionReason()
		require.True(t, ok)
		assert.Equal(t, "Maximum number of rows [2] reached", reason)

		// Existing rows still accept updates at the cap.
		r = ix.Add(pageRow(minutes(1), "a", 1))
		assert.True(t, r.IsRowAdded())
		assert.Equal(t, 2, r.RowCount)
	})

	t.Run("memory budget", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})
		ix := newIndex(t, pageSchema(), WithResourceController(rc))

		r := ix.Add(pageRow(t0, "a", 1))
		reason, ok := r.RejectionReason()
		require.True(t, ok)
		assert.Equal(t, "Maximum bytes in memory [1] reached", reason)
		assert.Equal(t, 0, ix.RowCount())
		assert.Equal(t, int64(0), rc.MemoryUsage())
	})

	t.Run("arena full", func(t *testing.T) {
		probe := newIndex(t, pageSchema())
		ix := newIndex(t, pageSchema(), WithArenaBytes(probe.Layout().RowSize()))

		require.True(t, ix.Add(pageRow(t0, "a", 1)).IsRowAdded())
		r := ix.Add(pageRow(t0, "b", 1))
		reason, ok := r.RejectionReason()
		require.True(t, ok)
		assert.Equal(t, ReasonArenaFull, reason)
		assert.Equal(t, 1, r.RowCount)
	})
}

func TestIndex_RowCountMonotonicUnderMemoryPressure(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 2000})
	ix := newIndex(t, pageSchema(), WithShards(4), WithResourceController(rc))

	// Equal-width keys cost the same, so once one new row is refused all are.
	page := func(n int) string { return fmt.Sprintf("p%06d", n) }
	full := 0
	for ; ; full++ {
		if !ix.Add(pageRow(t0, page(full), 1)).IsRowAdded() {
			break
		}
	}
	require.Positive(t, full)
	require.Equal(t, full, ix.RowCount())

	const (
		workers = 8
		perWork = 2000
	)
	done := make(chan struct{})
	var (
		maxSeen   int
		decreases int
		readerWG  sync.WaitGroup
	)
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		last := ix.RowCount()
		maxSeen = last
		for {
			select {
			case <-done:
				return
			default:
			}
			n := ix.RowCount()
			if n < last {
				decreases++
			}
			maxSeen = max(maxSeen, n)
			last = n
		}
	}()

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWork {
				r := ix.Add(pageRow(t0, page(full+1+w*perWork+i), 1))
				_, rejected := r.RejectionReason()
				assert.True(t, rejected)
				assert.Equal(t, full, r.RowCount)
			}
		}()
	}
	wg.Wait()
	close(done)
	readerWG.Wait()

	assert.Zero(t, decreases)
	assert.Equal(t, full, maxSeen)
	assert.Equal(t, full, ix.RowCount())
}

func TestIndex_MemoryAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	ix, err := New(pageSchema(), WithResourceController(rc))
	require.NoError(t, err)

	prev := int64(0)
	for i := range 10 {
		r := ix.Add(pageRow(t0, fmt.Sprintf("p%d", i%5), i))
		require.True(t, r.IsRowAdded())
		assert.GreaterOrEqual(t, r.BytesInMemory, prev)
		prev = r.BytesInMemory
	}
	assert.Equal(t, 5, ix.RowCount())
	assert.Equal(t, ix.BytesInMemory(), rc.MemoryUsage())

	require.NoError(t, ix.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
	require.NoError(t, ix.Close())
}

func TestIndex_DetachMemory(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	ix, err := New(pageSchema(), WithResourceController(rc))
	require.NoError(t, err)
	for i := range 5 {
		require.True(t, ix.Add(pageRow(t0, fmt.Sprintf("p%d", i), i)).IsRowAdded())
	}
	held := ix.BytesInMemory()
	require.Equal(t, held, rc.MemoryUsage())

	ix.DetachMemory()
	ix.DetachMemory()
	assert.Equal(t, int64(0), rc.MemoryUsage())

	require.NoError(t, ix.AttachMemory())
	require.NoError(t, ix.AttachMemory())
	assert.Equal(t, held, rc.MemoryUsage())

	// A detached index does not release its reservation twice.
	ix.DetachMemory()
	require.NoError(t, rc.ReserveMemory(10))
	require.NoError(t, ix.Close())
	assert.Equal(t, int64(10), rc.MemoryUsage())
}

func TestIndex_RollupDisabledKeepsEveryRow(t *testing.T) {
	schema := pageSchema()
	schema.Rollup = false
	ix := newIndex(t, schema)

	for range 3 {
		require.True(t, ix.Add(pageRow(t0, "a", 1)).IsRowAdded())
	}
	assert.Equal(t, 3, ix.RowCount())
	for row := range ix.Rows() {
		assert.Equal(t, int64(1), row.Metrics["rows"])
	}
}

func TestIndex_DiscoveryMode(t *testing.T) {
	ix := newIndex(t, Schema{
		Dimensions: DimensionsSpec{Exclusions: []string{"ignored"}},
		Metrics:    []aggregator.Spec{{Type: aggregator.TypeCount, Name: "rows"}},
		Rollup:     true,
	})

	ix.Add(Row{Timestamp: 1, Dimensions: map[string]any{"b": "1", "a": "2", "ignored": "x"}})
	ix.Add(Row{Timestamp: 1, Dimensions: map[string]any{"a": "2", "b": 1, "ignored": "y"}})
	ix.Add(Row{Timestamp: 1, Dimensions: map[string]any{"c": "3"}})

	assert.Equal(t, 2, ix.RowCount())
	assert.Equal(t, []string{"a", "b", "c"}, ix.DimensionNames())

	rows := collect(ix)
	for _, r := range rows {
		if _, ok := r.Dimension("a"); ok {
			assert.Equal(t, []Dimension{{Name: "a", Value: "2"}, {Name: "b", Value: "1"}}, r.Dimensions)
			assert.Equal(t, int64(2), r.Metrics["rows"])
		}
	}
}

func TestIndex_TypedDimensions(t *testing.T) {
	ix := newIndex(t, Schema{
		Dimensions: DimensionsSpec{Dimensions: []DimensionSchema{
			{Name: "tags"},
			{Name: "status", Type: DimensionLong},
			{Name: "ratio", Type: DimensionDouble},
			{Name: "loc", Type: DimensionSpatial},
		}},
		Metrics: []aggregator.Spec{{Type: aggregator.TypeCount, Name: "rows"}},
		Rollup:  true,
	})

	r := ix.Add(Row{Timestamp: 1, Dimensions: map[string]any{
		"tags":   []any{"x", "y"},
		"status": "200",
		"ratio":  0.5,
		"loc":    "52.52,13.40",
	}})
	require.True(t, r.IsRowAdded())

	rows := collect(ix)
	require.Len(t, rows, 1)
	assert.Equal(t, []Dimension{
		{Name: "tags", Value: []string{"x", "y"}},
		{Name: "status", Value: int64(200)},
		{Name: "ratio", Value: 0.5},
		{Name: "loc", Value: Point{Lat: 52.52, Lon: 13.40}},
	}, rows[0].Dimensions)

	r = ix.Add(Row{Timestamp: 1, Dimensions: map[string]any{"loc": "91,0"}})
	require.True(t, r.HasParseError())
	assert.Equal(t, []string{"loc"}, r.ParseError().Columns)
}

func TestIndex_CaseInsensitiveKeys(t *testing.T) {
	ix := newIndex(t, pageSchema(), WithKeyPolicy(CaseInsensitiveKeys{}))

	ix.Add(pageRow(t0, "Home", 1))
	ix.Add(pageRow(t0, "HOME", 2))
	ix.Add(pageRow(t0, "home", 3))

	rows := collect(ix)
	require.Len(t, rows, 1)
	page, _ := rows[0].Dimension("page")
	assert.Equal(t, "Home", page)
	assert.Equal(t, int64(3), rows[0].Metrics["rows"])

	exact := newIndex(t, pageSchema())
	exact.Add(pageRow(t0, "Home", 1))
	exact.Add(pageRow(t0, "home", 1))
	assert.Equal(t, 2, exact.RowCount())
}

func TestIndex_GetReflectsLaterAdds(t *testing.T) {
	ix := newIndex(t, pageSchema())
	ix.Add(pageRow(minutes(10), "a", 10))

	rows := collect(ix)
	require.Len(t, rows, 1)

	ix.Add(pageRow(minutes(1), "a", 1))

	v, ok := ix.Get(rows[0], "first")
	require.True(t, ok)
	assert.Equal(t, aggregator.Pair{Time: minutes(1), Value: int64(1)}, v)
	assert.Equal(t, aggregator.Pair{Time: minutes(10), Value: int64(10)}, rows[0].Metrics["first"])

	_, ok = ix.Get(rows[0], "missing")
	assert.False(t, ok)
}

func TestIndex_RowsOrder(t *testing.T) {
	ix := newIndex(t, Schema{
		Granularity: granularity.None,
		Dimensions:  StringDimensions("page"),
		Metrics:     []aggregator.Spec{{Type: aggregator.TypeCount, Name: "rows"}},
		Rollup:      true,
	})
	for _, ts := range []int64{30, 10, 20, math.MinInt64 + 1} {
		ix.Add(pageRow(ts, "z", nil))
		ix.Add(pageRow(ts, "a", nil))
	}

	var got []int64
	var pages []any
	for r := range ix.Rows() {
		got = append(got, r.Timestamp)
		p, _ := r.Dimension("page")
		pages = append(pages, p)
	}
	assert.True(t, slices.IsSorted(got))
	assert.Equal(t, "a", pages[0])
	assert.Equal(t, "z", pages[1])
}

func TestIndex_ConcurrentAdds(t *testing.T) {
	ix := newIndex(t, Schema{
		Granularity: granularity.Minute,
		Dimensions:  StringDimensions("page"),
		Metrics: []aggregator.Spec{
			{Type: aggregator.TypeCount, Name: "rows"},
			{Type: aggregator.TypeLongSum, Name: "sum", FieldName: "v"},
			{Type: aggregator.TypeLongFirst, Name: "first", FieldName: "v"},
		},
		Rollup: true,
	}, WithShards(4))

	const (
		workers = 8
		perWork = 500
		pages   = 7
	)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWork {
				n := w*perWork + i
				r := ix.Add(Row{
					Timestamp:  t0 + int64(n),
					Dimensions: map[string]any{"page": fmt.Sprintf("p%d", n%pages)},
					Metrics:    map[string]any{"v": n},
				})
				assert.True(t, r.IsRowAdded())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, pages, ix.RowCount())
	var count, sum int64
	for r := range ix.Rows() {
		count += r.Metrics["rows"].(int64)
		sum += r.Metrics["sum"].(int64)
		first := r.Metrics["first"].(aggregator.Pair)
		page, _ := r.Dimension("page")
		var p int
		_, err := fmt.Sscanf(page.(string), "p%d", &p)
		require.NoError(t, err)
		// n == p is the earliest row of page p.
		assert.Equal(t, aggregator.Pair{Time: t0 + int64(p), Value: int64(p)}, first)
	}
	n := int64(workers * perWork)
	assert.Equal(t, n, count)
	assert.Equal(t, n*(n-1)/2, sum)
}

func TestNew_InvalidSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"time dimension", Schema{Dimensions: StringDimensions(TimeColumn)}},
		{"duplicate dimension", Schema{Dimensions: StringDimensions("a", "a")}},
		{"unknown dimension type", Schema{Dimensions: DimensionsSpec{Dimensions: []DimensionSchema{{Name: "a", Type: "blob"}}}}},
		{"unknown metric", Schema{Metrics: []aggregator.Spec{{Type: "median", Name: "m"}}}},
		{"metric shadows dimension", Schema{
			Dimensions: StringDimensions("a"),
			Metrics:    []aggregator.Spec{{Type: aggregator.TypeCount, Name: "a"}},
		}},
		{"duplicate metric", Schema{Metrics: []aggregator.Spec{
			{Type: aggregator.TypeCount, Name: "m"},
			{Type: aggregator.TypeCount, Name: "m"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schema)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}
