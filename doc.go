// Package rollup provides an embeddable, time-bucketed rollup engine for
// event streams.
//
// An Ingestor owns one incremental index. Events are grouped by their
// truncated timestamp and dimension values, and each group keeps one slot per
// configured aggregator (first/last by time, sums, counts, min/max).
//
// # Quick Start
//
//	ctx := context.Background()
//	ing, _ := rollup.New(ctx, incremental.Schema{
//	    Granularity: granularity.Minute,
//	    Dimensions:  incremental.StringDimensions("page", "country"),
//	    Metrics: []aggregator.Spec{
//	        {Type: aggregator.TypeLongFirst, Name: "firstAdded", FieldName: "added"},
//	        {Type: aggregator.TypeLongLast, Name: "lastAdded", FieldName: "added"},
//	        {Type: aggregator.TypeCount, Name: "rows"},
//	    },
//	    Rollup: true,
//	}, rollup.WithLocation("./data", location.Config{}))
//	defer ing.Close()
//
//	results, _ := ing.Ingest(ctx, records) // newline-free JSON objects
//	for _, r := range results {
//	    if reason, ok := r.RejectionReason(); ok {
//	        // the index is full: persist and start over
//	    }
//	}
//
// # Persistence
//
// Persist writes a snapshot blob and then commits it by pointing CURRENT at
// it. Restore loads whatever CURRENT names. Stores are opened from a URI:
//
//	./data  file:///var/rollups  mem://test  s3://bucket/prefix  minio://host/bucket
//
// Snapshot rows can be compressed with lz4 or zstd (WithCompression).
//
// # Querying
//
// Segment freezes the index into immutable columns with value, range,
// array-element and spatial indexes. Filter evaluates a filter.Filter against
// such a segment and falls back to row scans where a column lacks the needed
// index.
//
//	rows, _ := ing.Filter(ctx, filter.And{
//	    filter.Equals{Column: "page", Value: "home"},
//	    filter.NumericBound{Column: "rows", Range: colindex.AtLeast(10)},
//	})
//
// # Thread Safety
//
// Ingestor is safe for concurrent use. Add, Ingest, Fold and Persist share a
// read lock so they proceed in parallel; Restore and Close take the write
// lock because they replace or release the index.
//
// # Observability
//
// Use WithLogger for structured slog output and WithMetricsCollector to
// plug in a monitoring backend. BasicMetricsCollector keeps in-memory
// counters.
package rollup
