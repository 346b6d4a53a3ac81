package incremental

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/granularity"
	"github.com/hupe1980/rollup/internal/arena"
	"github.com/hupe1980/rollup/internal/hash"
)

// entryOverhead approximates the map and slice bookkeeping of one row.
const entryOverhead = 64

// Row is one input event.
type Row struct {
	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp  int64
	Dimensions map[string]any
	Metrics    map[string]any
}

// MaterializedRow is a snapshot of one aggregated row.
type MaterializedRow struct {
	// Timestamp is the truncated bucket start.
	Timestamp  int64
	Dimensions []Dimension
	// Metrics maps aggregator names to decoded values.
	Metrics map[string]any

	lane   int
	offset uint64
}

// Dimension returns the value of the named dimension.
func (r MaterializedRow) Dimension(name string) (any, bool) {
	for _, d := range r.Dimensions {
		if d.Name == name {
			return d.Value, true
		}
	}
	return nil, false
}

type entry struct {
	key    string
	bucket int64
	dims   []Dimension
	offset uint64
}

type lane struct {
	mu      sync.Mutex
	byKey   map[string]int
	entries []entry
}

// Index is a mutable, concurrently writable rollup index.
//
// Rows are grouped by truncated timestamp and dimensions; each group owns one
// fixed-width row of aggregator slots in a pre-sized arena. The grouping key's
// hash selects a lane, and all slot reads and writes of a lane happen under the
// lane's lock.
type Index struct {
	schema Schema
	layout *aggregator.Layout
	opts   options
	arena  *arena.FlatArena
	lanes  []*lane

	rowCount atomic.Int64
	// admitted counts rows that passed the row cap, including rows still
	// being allocated. rowCount only counts rows that exist.
	admitted atomic.Int64
	bytes    atomic.Int64
	seq      atomic.Uint64
	closed   atomic.Bool
	detached atomic.Bool
}

// New creates an empty index.
func New(schema Schema, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if schema.Granularity == nil {
		schema.Granularity = granularity.None
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	layout, err := aggregator.NewLayout(o.order, schema.Metrics...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	size := o.arenaBytes
	if size <= 0 {
		size = DefaultArenaBytes
		if o.maxRows > 0 {
			size = o.maxRows * layout.RowSize()
		}
	}

	ix := &Index{
		schema: schema,
		layout: layout,
		opts:   o,
		arena:  arena.NewFlat(size),
		lanes:  make([]*lane, o.shards),
	}
	for i := range ix.lanes {
		ix.lanes[i] = &lane{byKey: make(map[string]int)}
	}
	return ix, nil
}

// Schema returns the schema the index was created with.
func (ix *Index) Schema() Schema { return ix.schema }

// Layout returns the slot layout of a row.
func (ix *Index) Layout() *aggregator.Layout { return ix.layout }

// RowCount returns the number of distinct rows.
func (ix *Index) RowCount() int { return int(ix.rowCount.Load()) }

// BytesInMemory returns the estimated footprint of all rows.
func (ix *Index) BytesInMemory() int64 { return ix.bytes.Load() }

// Close releases the index's memory reservation. The index must not be used afterwards.
func (ix *Index) Close() error {
	if ix.closed.Swap(true) {
		return nil
	}
	if !ix.detached.Load() {
		ix.opts.resource.ReleaseMemory(ix.bytes.Load())
	}
	return nil
}

// DetachMemory returns the index's memory reservation to its resource
// controller, for example while a replacement is read into the same budget.
// Rows must not be added until AttachMemory succeeds. Close does not release
// a detached reservation again.
func (ix *Index) DetachMemory() {
	if ix.detached.Swap(true) {
		return
	}
	ix.opts.resource.ReleaseMemory(ix.bytes.Load())
}

// AttachMemory reserves the memory released by DetachMemory again.
func (ix *Index) AttachMemory() error {
	if !ix.detached.Load() {
		return nil
	}
	if err := ix.opts.resource.ReserveMemory(ix.bytes.Load()); err != nil {
		return err
	}
	ix.detached.Store(false)
	return nil
}

func (ix *Index) result(o Outcome) AddResult {
	return AddResult{
		RowCount:      ix.RowCount(),
		BytesInMemory: ix.BytesInMemory(),
		Outcome:       o,
	}
}

// AddParseFailure records a row that failed to parse before reaching the index.
func (ix *Index) AddParseFailure(err *ParseError) AddResult {
	return ix.result(ParseFailed{Err: err})
}

// Add aggregates row into the index.
//
// A row with uninterpretable dimension or metric values yields ParseFailed.
// A row outside the timestamp window, or one that needs a new row when the row
// cap, memory budget or arena is exhausted, yields Rejected. A row that is both
// malformed and out of window is ParseFailed. In both cases the index is
// unchanged.
func (ix *Index) Add(row Row) AddResult {
	dims, badDims, dimErr := ix.schema.Dimensions.dimensions(row.Dimensions)
	inputs, badMetrics, metricErr := ix.inputs(row)
	if len(badDims) > 0 || len(badMetrics) > 0 {
		return ix.result(ParseFailed{Err: &ParseError{
			Columns: append(badDims, badMetrics...),
			Err:     errors.Join(dimErr, metricErr),
		}})
	}

	if row.Timestamp < ix.opts.minTimestamp || row.Timestamp >= ix.opts.maxTimestamp {
		return ix.result(Rejected{Reason: reasonWindow(row.Timestamp, ix.opts.minTimestamp, ix.opts.maxTimestamp)})
	}

	bucket := ix.schema.Granularity.Truncate(row.Timestamp)
	key := ix.key(bucket, dims)

	l := ix.lanes[hash.Lane(key, len(ix.lanes))]
	l.mu.Lock()
	off, reason := ix.slot(l, key, bucket, dims)
	if reason != "" {
		l.mu.Unlock()
		return ix.result(Rejected{Reason: reason})
	}
	buf := ix.arena.Bytes()
	for i := range ix.layout.Len() {
		ix.layout.Aggregator(i).Aggregate(buf, int(off)+ix.layout.Offset(i), inputs[i])
	}
	l.mu.Unlock()

	return ix.result(Added{})
}

func (ix *Index) inputs(row Row) ([]aggregator.Input, []string, error) {
	inputs := make([]aggregator.Input, ix.layout.Len())
	var bad []string
	var errs []error
	for i := range inputs {
		spec := ix.layout.Spec(i)
		if !spec.ReadsField() {
			inputs[i] = aggregator.NullInput(row.Timestamp)
			continue
		}
		in, err := aggregator.NewInput(row.Timestamp, row.Metrics[spec.Field()])
		if err != nil {
			if !slices.Contains(bad, spec.Field()) {
				bad = append(bad, spec.Field())
				errs = append(errs, fmt.Errorf("%s: %w", spec.Field(), err))
			}
			continue
		}
		inputs[i] = in
	}
	return inputs, bad, errors.Join(errs...)
}

func (ix *Index) key(bucket int64, dims []Dimension) []byte {
	key := ix.opts.keys.AppendKey(nil, bucket, dims)
	if !ix.schema.Rollup {
		key = binary.BigEndian.AppendUint64(key, ix.seq.Add(1))
	}
	return key
}

// slot returns the row offset for key, allocating and initializing a new row
// if needed. It must be called with l.mu held. A non-empty reason means the
// row could not be created.
func (ix *Index) slot(l *lane, key []byte, bucket int64, dims []Dimension) (uint64, string) {
	if i, ok := l.byKey[string(key)]; ok {
		return l.entries[i].offset, ""
	}

	if maxRows := int64(ix.opts.maxRows); maxRows > 0 {
		for {
			n := ix.admitted.Load()
			if n >= maxRows {
				return 0, reasonMaxRows(ix.opts.maxRows)
			}
			if ix.admitted.CompareAndSwap(n, n+1) {
				break
			}
		}
	} else {
		ix.admitted.Add(1)
	}

	cost := int64(ix.layout.RowSize()+len(key)+entryOverhead) + dimsSize(dims)
	if err := ix.opts.resource.ReserveMemory(cost); err != nil {
		ix.admitted.Add(-1)
		return 0, reasonMaxBytes(ix.opts.resource.MemoryLimit())
	}

	off, err := ix.arena.Alloc(uint64(ix.layout.RowSize()))
	if err != nil {
		ix.admitted.Add(-1)
		ix.opts.resource.ReleaseMemory(cost)
		return 0, ReasonArenaFull
	}
	ix.layout.InitRow(ix.arena.Bytes(), int(off))

	k := string(key)
	l.byKey[k] = len(l.entries)
	l.entries = append(l.entries, entry{key: k, bucket: bucket, dims: dims, offset: off})
	ix.bytes.Add(cost)
	ix.rowCount.Add(1)
	return off, ""
}

// Rows returns all rows ordered by timestamp, then by grouping key.
// Each lane is read under its lock, so no row is observed mid-update.
func (ix *Index) Rows() iter.Seq[MaterializedRow] {
	return func(yield func(MaterializedRow) bool) {
		type keyed struct {
			key string
			row MaterializedRow
		}
		var all []keyed
		buf := ix.arena.Bytes()
		for li, l := range ix.lanes {
			l.mu.Lock()
			for _, e := range l.entries {
				all = append(all, keyed{key: e.key, row: MaterializedRow{
					Timestamp:  e.bucket,
					Dimensions: e.dims,
					Metrics:    ix.decode(buf, e.offset),
					lane:       li,
					offset:     e.offset,
				}})
			}
			l.mu.Unlock()
		}
		slices.SortFunc(all, func(a, b keyed) int {
			if c := cmp.Compare(a.row.Timestamp, b.row.Timestamp); c != 0 {
				return c
			}
			return strings.Compare(a.key, b.key)
		})
		for _, k := range all {
			if !yield(k.row) {
				return
			}
		}
	}
}

func (ix *Index) decode(buf []byte, off uint64) map[string]any {
	m := make(map[string]any, ix.layout.Len())
	for i := range ix.layout.Len() {
		m[ix.layout.Spec(i).Name] = ix.layout.Get(buf, int(off), i)
	}
	return m
}

// Get reads the current value of metric for a row returned by Rows.
// Unlike row.Metrics it reflects adds made after Rows was called.
func (ix *Index) Get(row MaterializedRow, metric string) (any, bool) {
	i, ok := ix.layout.Index(metric)
	if !ok || row.lane < 0 || row.lane >= len(ix.lanes) {
		return nil, false
	}
	l := ix.lanes[row.lane]
	l.mu.Lock()
	defer l.mu.Unlock()
	return ix.layout.Get(ix.arena.Bytes(), int(row.offset), i), true
}

// DimensionNames returns the declared dimensions, or in discovery mode the
// sorted union of dimensions seen so far.
func (ix *Index) DimensionNames() []string {
	if !ix.schema.Dimensions.Discovery() {
		names := make([]string, len(ix.schema.Dimensions.Dimensions))
		for i, d := range ix.schema.Dimensions.Dimensions {
			names[i] = d.Name
		}
		return names
	}
	seen := map[string]struct{}{}
	for _, l := range ix.lanes {
		l.mu.Lock()
		for _, e := range l.entries {
			for _, d := range e.dims {
				seen[d.Name] = struct{}{}
			}
		}
		l.mu.Unlock()
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// rawRow is a row detached from the arena.
type rawRow struct {
	key    string
	bucket int64
	dims   []Dimension
	slot   []byte
}

// laneRows copies the rows of lane li.
func (ix *Index) laneRows(li int) []rawRow {
	l := ix.lanes[li]
	size := ix.layout.RowSize()
	buf := ix.arena.Bytes()

	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]rawRow, len(l.entries))
	slots := make([]byte, len(l.entries)*size)
	for i, e := range l.entries {
		slot := slots[i*size : (i+1)*size : (i+1)*size]
		copy(slot, buf[e.offset:e.offset+uint64(size)])
		rows[i] = rawRow{key: e.key, bucket: e.bucket, dims: e.dims, slot: slot}
	}
	return rows
}

// insertRaw folds a detached row into the index under this index's key policy.
func (ix *Index) insertRaw(r rawRow) (string, error) {
	raw := make(map[string]any, len(r.dims))
	for _, d := range r.dims {
		raw[d.Name] = d.Value
	}
	dims, bad, err := ix.schema.Dimensions.dimensions(raw)
	if len(bad) > 0 {
		return "", fmt.Errorf("re-key dimensions %v: %w", bad, err)
	}

	bucket := ix.schema.Granularity.Truncate(r.bucket)
	key := ix.key(bucket, dims)

	l := ix.lanes[hash.Lane(key, len(ix.lanes))]
	l.mu.Lock()
	defer l.mu.Unlock()
	off, reason := ix.slot(l, key, bucket, dims)
	if reason != "" {
		return reason, nil
	}
	ix.layout.FoldRow(ix.arena.Bytes(), int(off), r.slot, 0)
	return "", nil
}
