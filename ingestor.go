package rollup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rollup/blobstore"
	"github.com/hupe1980/rollup/blobstore/location"
	"github.com/hupe1980/rollup/colindex"
	"github.com/hupe1980/rollup/filter"
	"github.com/hupe1980/rollup/incremental"
	"github.com/hupe1980/rollup/internal/compress"
	"github.com/hupe1980/rollup/internal/resource"
	"github.com/hupe1980/rollup/segment"
)

// snapshotSuffix ends the name of every snapshot blob.
const snapshotSuffix = ".snap"

// Ingestor owns the incremental index of one data source and connects it to
// parsing, persistence and querying.
type Ingestor struct {
	mu     sync.RWMutex
	ix     *incremental.Index
	closed bool

	schema      incremental.Schema
	opts        options
	rc          *resource.Controller
	store       blobstore.BlobStore
	compression compress.Type
	parser      incremental.Parser
	logger      *Logger
	metrics     MetricsCollector
	seq         atomic.Uint64
}

// New creates an Ingestor with an empty index for schema.
//
// A store configured with WithLocation is opened here; ctx bounds that call.
func New(ctx context.Context, schema incremental.Schema, optFns ...Option) (*Ingestor, error) {
	o := applyOptions(optFns)

	comp, err := compress.ParseType(o.compression)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil && o.location != "" {
		store, err = location.Open(ctx, o.location, o.locationConfig)
		if err != nil {
			return nil, err
		}
	}

	g := &Ingestor{
		schema:      schema,
		opts:        o,
		rc:          resource.NewController(o.resource),
		store:       store,
		compression: comp,
		parser:      o.parser,
		logger:      o.logger,
		metrics:     o.metricsCollector,
	}
	if o.dataSource != "" {
		g.logger = g.logger.WithDataSource(o.dataSource)
	}
	if g.parser == nil {
		g.parser = defaultParser(schema)
	}

	g.ix, err = incremental.New(schema, g.indexOptions()...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func defaultParser(schema incremental.Schema) incremental.JSONParser {
	p := incremental.JSONParser{}
	for _, spec := range schema.Metrics {
		if spec.ReadsField() && !slices.Contains(p.Metrics, spec.Field()) {
			p.Metrics = append(p.Metrics, spec.Field())
		}
	}
	for _, d := range schema.Dimensions.Dimensions {
		p.Dimensions = append(p.Dimensions, d.Name)
	}
	return p
}

func (g *Ingestor) indexOptions() []incremental.Option {
	return append(slices.Clone(g.opts.indexOptions), incremental.WithResourceController(g.rc))
}

// Index returns the current index. Restore replaces it.
func (g *Ingestor) Index() *incremental.Index {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ix
}

// RowCount returns the number of aggregated rows.
func (g *Ingestor) RowCount() int {
	return g.Index().RowCount()
}

// BytesInMemory returns the memory estimate of the index.
func (g *Ingestor) BytesInMemory() int64 {
	return g.Index().BytesInMemory()
}

func (g *Ingestor) record(ctx context.Context, start time.Time, r incremental.AddResult) {
	kind, detail := outcomeOf(r)
	g.metrics.RecordAdd(kind, time.Since(start))
	g.logger.LogAdd(ctx, kind, detail)
}

// Add aggregates one row. Parse failures and rejections are reported in the
// result, never as an error.
func (g *Ingestor) Add(ctx context.Context, row incremental.Row) (incremental.AddResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return incremental.AddResult{}, ErrClosed
	}

	start := time.Now()
	r := g.ix.Add(row)
	g.record(ctx, start, r)
	return r, nil
}

// AddBatch aggregates rows in order. It stops early with ctx's error and
// returns the results collected so far.
func (g *Ingestor) AddBatch(ctx context.Context, rows []incremental.Row) ([]incremental.AddResult, error) {
	return g.batch(ctx, len(rows), func(ix *incremental.Index, i int) incremental.AddResult {
		return ix.Add(rows[i])
	})
}

// Ingest parses each record with the configured parser and aggregates it.
// Records that do not parse become ParseFailed results.
func (g *Ingestor) Ingest(ctx context.Context, records [][]byte) ([]incremental.AddResult, error) {
	return g.batch(ctx, len(records), func(ix *incremental.Index, i int) incremental.AddResult {
		row, err := g.parser.Parse(records[i])
		if err != nil {
			var pe *incremental.ParseError
			if !errors.As(err, &pe) {
				pe = &incremental.ParseError{Detail: fmt.Sprintf("record %d", i), Err: err}
			}
			return ix.AddParseFailure(pe)
		}
		return ix.Add(row)
	})
}

func (g *Ingestor) batch(ctx context.Context, n int, add func(*incremental.Index, int) incremental.AddResult) ([]incremental.AddResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	results := make([]incremental.AddResult, 0, n)
	failed := 0
	for i := range n {
		if err := ctx.Err(); err != nil {
			g.metrics.RecordBatch(len(results), failed, time.Since(start))
			return results, err
		}
		rowStart := time.Now()
		r := add(g.ix, i)
		g.record(ctx, rowStart, r)
		if !r.IsRowAdded() {
			failed++
		}
		results = append(results, r)
	}
	g.metrics.RecordBatch(n, failed, time.Since(start))
	g.logger.LogBatch(ctx, n, failed)
	return results, nil
}

// Fold merges the rows of other into the index. other must share the
// aggregation layout. Fold is not atomic: on a rejection the rows folded so
// far stay in the index.
func (g *Ingestor) Fold(ctx context.Context, other *incremental.Index) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrClosed
	}

	start := time.Now()
	err := translateError(g.ix.Fold(ctx, other))
	rows := g.ix.RowCount()
	g.metrics.RecordFold(rows, time.Since(start), err)
	g.logger.LogFold(ctx, rows, err)
	return err
}

func (g *Ingestor) snapshotPrefix() string {
	if g.opts.dataSource == "" {
		return "snapshots/"
	}
	return path.Join("snapshots", g.opts.dataSource) + "/"
}

// Persist writes a snapshot of the index to the store and commits it as the
// current snapshot. Adds may continue while it runs and may or may not be
// included. It returns the name of the snapshot blob.
func (g *Ingestor) Persist(ctx context.Context) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return "", ErrClosed
	}
	if g.store == nil {
		return "", ErrNoStore
	}

	start := time.Now()
	name := fmt.Sprintf("%s%020d-%06d%s", g.snapshotPrefix(), start.UnixMilli(), g.seq.Add(1), snapshotSuffix)
	n, err := g.persist(ctx, name)
	g.metrics.RecordPersist(n, time.Since(start), err)
	g.logger.LogPersist(ctx, name, n, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return name, nil
}

func (g *Ingestor) persist(ctx context.Context, name string) (int64, error) {
	w, err := g.store.Create(ctx, name)
	if err != nil {
		return 0, &PersistError{Op: "create", Name: name, cause: err}
	}
	n, err := g.ix.WriteSnapshot(ctx, w, incremental.SnapshotOptions{
		Codec:       g.opts.codec,
		Compression: g.compression,
		Resource:    g.rc,
	})
	if err == nil {
		err = w.Sync()
	}
	if err != nil {
		_ = w.Close()
		_ = g.store.Delete(ctx, name)
		return n, &PersistError{Op: "write", Name: name, cause: err}
	}
	if err := w.Close(); err != nil {
		return n, &PersistError{Op: "write", Name: name, cause: err}
	}
	if err := g.store.Put(ctx, blobstore.CurrentPointer, []byte(name)); err != nil {
		return n, &PersistError{Op: "commit", Name: name, cause: err}
	}
	return n, nil
}

// Restore replaces the index with the current snapshot of the store. It
// returns ErrNoSnapshot when nothing was committed yet and ErrIncompatible
// when the snapshot's layout differs from the schema's. The snapshot is read
// within the memory limit that the replaced index held; on failure the
// replaced index keeps its reservation.
func (g *Ingestor) Restore(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.store == nil {
		return ErrNoStore
	}

	start := time.Now()
	name, err := g.restore(ctx)
	err = translateError(err)
	rows := 0
	if err == nil {
		rows = g.ix.RowCount()
	}
	g.metrics.RecordRestore(rows, time.Since(start), err)
	g.logger.LogRestore(ctx, name, rows, err)
	return err
}

func (g *Ingestor) restore(ctx context.Context) (string, error) {
	ptr, err := blobstore.Get(ctx, g.store, blobstore.CurrentPointer)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", &PersistError{Op: "read", Name: blobstore.CurrentPointer, cause: err}
	}
	name := strings.TrimSpace(string(ptr))

	blob, err := g.store.Open(ctx, name)
	if err != nil {
		return name, &PersistError{Op: "open", Name: name, cause: err}
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return name, &PersistError{Op: "read", Name: name, cause: err}
	}
	defer rc.Close()

	// The snapshot is read into the budget the live index holds.
	old := g.ix
	old.DetachMemory()
	fail := func(err error) (string, error) {
		if aerr := old.AttachMemory(); aerr != nil {
			err = errors.Join(err, aerr)
		}
		return name, err
	}

	restored, err := incremental.ReadSnapshot(ctx, rc, g.indexOptions()...)
	if err != nil {
		return fail(err)
	}
	if !restored.Layout().Compatible(old.Layout()) {
		_ = restored.Close()
		return fail(fmt.Errorf("%w: snapshot %q has %v", incremental.ErrIncompatibleLayout, name, restored.Layout().Specs()))
	}

	g.ix = restored
	return name, old.Close()
}

// Prune deletes all but the newest keep snapshots of this data source. The
// committed snapshot is never deleted. It returns the number of deleted blobs.
func (g *Ingestor) Prune(ctx context.Context, keep int) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return 0, ErrClosed
	}
	if g.store == nil {
		return 0, ErrNoStore
	}

	names, err := g.store.List(ctx, g.snapshotPrefix())
	if err != nil {
		return 0, err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return !strings.HasSuffix(n, snapshotSuffix) })

	current := ""
	if ptr, err := blobstore.Get(ctx, g.store, blobstore.CurrentPointer); err == nil {
		current = strings.TrimSpace(string(ptr))
	}

	deleted := 0
	for i := 0; i < len(names)-max(keep, 0); i++ {
		if names[i] == current {
			continue
		}
		if err := g.store.Delete(ctx, names[i]); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Segment materializes the index into an immutable, indexed segment.
func (g *Ingestor) Segment() (*segment.Segment, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return nil, ErrClosed
	}
	return segment.Build(g.ix, segment.WithSpatialConfig(g.opts.spatial))
}

// Filter builds a segment and returns the rows matching f, keyed by column
// name and ordered by time.
func (g *Ingestor) Filter(ctx context.Context, f filter.Filter) ([]map[string]any, error) {
	seg, err := g.Segment()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	bm, accelerated := filter.Apply(seg, f)
	defer colindex.PutBitmap(bm)
	g.metrics.RecordFilter(accelerated, time.Since(start))
	g.logger.LogFilter(ctx, f.String(), bm.Cardinality(), accelerated)

	rows := make([]map[string]any, 0, bm.Cardinality())
	for row := range bm.Rows() {
		rows = append(rows, seg.Row(int(row)))
	}
	return rows, nil
}

// Close releases the index. Further calls return ErrClosed.
func (g *Ingestor) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.ix.Close()
}
