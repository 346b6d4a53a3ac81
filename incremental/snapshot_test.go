package incremental

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/codec"
	"github.com/hupe1980/rollup/granularity"
	"github.com/hupe1980/rollup/internal/compress"
	"github.com/hupe1980/rollup/internal/resource"
)

func snapshotFixture(t *testing.T, opts ...Option) *Index {
	t.Helper()
	ix := newIndex(t, Schema{
		Granularity: granularity.Hour,
		Dimensions: DimensionsSpec{Dimensions: []DimensionSchema{
			{Name: "page"},
			{Name: "tags"},
			{Name: "status", Type: DimensionLong},
			{Name: "loc", Type: DimensionSpatial},
		}},
		Metrics: []aggregator.Spec{
			{Type: aggregator.TypeLongFirst, Name: "first", FieldName: "v"},
			{Type: aggregator.TypeDoubleLast, Name: "last", FieldName: "v"},
			{Type: aggregator.TypeCount, Name: "rows"},
		},
		Rollup: true,
	}, opts...)

	for _, r := range foldRows() {
		r.Dimensions["tags"] = []any{"x", r.Dimensions["page"]}
		r.Dimensions["status"] = 200
		r.Dimensions["loc"] = "48.1,11.6"
		require.True(t, ix.Add(r).IsRowAdded())
	}
	ix.Add(Row{Timestamp: t0, Metrics: map[string]any{"v": nil}})
	return ix
}

func TestSnapshot_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts SnapshotOptions
	}{
		{"none", SnapshotOptions{}},
		{"lz4", SnapshotOptions{Compression: compress.LZ4, BlockSize: 512}},
		{"zstd", SnapshotOptions{Compression: compress.ZSTD}},
		{"std json", SnapshotOptions{Codec: codec.JSON{}, Compression: compress.ZSTD, BlockSize: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := snapshotFixture(t)

			var buf bytes.Buffer
			n, err := ix.WriteSnapshot(t.Context(), &buf, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			restored, err := ReadSnapshot(t.Context(), &buf)
			require.NoError(t, err)
			t.Cleanup(func() { _ = restored.Close() })

			assert.Equal(t, ix.RowCount(), restored.RowCount())
			assert.Equal(t, plain(ix), plain(restored))
			assert.Equal(t, ix.Schema().Granularity.String(), restored.Schema().Granularity.String())
			assert.True(t, ix.Layout().Compatible(restored.Layout()))
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	a := snapshotFixture(t)
	b := snapshotFixture(t, WithShards(5))

	var bufA, bufB bytes.Buffer
	_, err := a.WriteSnapshot(t.Context(), &bufA, SnapshotOptions{Compression: compress.LZ4})
	require.NoError(t, err)
	_, err = b.WriteSnapshot(t.Context(), &bufB, SnapshotOptions{Compression: compress.LZ4})
	require.NoError(t, err)
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}

func TestSnapshot_KeepsByteOrder(t *testing.T) {
	ix := snapshotFixture(t, WithByteOrder(binary.BigEndian))

	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{})
	require.NoError(t, err)

	restored, err := ReadSnapshot(t.Context(), &buf)
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, binary.BigEndian, restored.Layout().ByteOrder())
	assert.Equal(t, plain(ix), plain(restored))

	// A little-endian index cannot absorb it.
	le := snapshotFixture(t)
	assert.ErrorIs(t, le.Fold(t.Context(), restored), ErrIncompatibleLayout)
}

func TestSnapshot_RollupDisabled(t *testing.T) {
	schema := pageSchema()
	schema.Rollup = false
	ix := newIndex(t, schema)
	for range 3 {
		ix.Add(pageRow(t0, "a", 1))
	}

	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{})
	require.NoError(t, err)

	restored, err := ReadSnapshot(t.Context(), &buf)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, 3, restored.RowCount())
}

func TestSnapshot_Empty(t *testing.T) {
	ix := newIndex(t, pageSchema())

	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{Compression: compress.ZSTD})
	require.NoError(t, err)

	restored, err := ReadSnapshot(t.Context(), &buf)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, 0, restored.RowCount())
}

func TestSnapshot_Corruption(t *testing.T) {
	ix := snapshotFixture(t)
	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{})
	require.NoError(t, err)
	good := buf.Bytes()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"flipped slot byte", func(b []byte) []byte { b[len(b)-5] ^= 0xFF; return b }},
		{"flipped checksum", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-40] }},
		{"missing trailer", func(b []byte) []byte { return b[:len(b)-4] }},
		{"empty", func([]byte) []byte { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(good))
			_, err := ReadSnapshot(t.Context(), bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestSnapshot_MemoryBudgetOnRestore(t *testing.T) {
	ix := snapshotFixture(t)
	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{})
	require.NoError(t, err)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 256})
	_, err = ReadSnapshot(t.Context(), &buf, WithResourceController(rc))
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "Maximum bytes in memory")
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestSnapshot_ThrottledIO(t *testing.T) {
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	ix := snapshotFixture(t)

	var buf bytes.Buffer
	_, err := ix.WriteSnapshot(t.Context(), &buf, SnapshotOptions{Resource: rc, Compression: compress.ZSTD})
	require.NoError(t, err)

	restored, err := ReadSnapshot(t.Context(), &buf, WithResourceController(rc))
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, ix.RowCount(), restored.RowCount())
}
