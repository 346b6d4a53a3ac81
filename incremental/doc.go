// Package incremental provides the mutable, in-memory rollup index that
// ingestion writes into.
//
// Rows are grouped by their truncated timestamp and dimension values. Each
// group owns a fixed-width row of aggregator slots (see package aggregator)
// inside one pre-sized arena:
//
//	ix, _ := incremental.New(incremental.Schema{
//	    Granularity: granularity.Hour,
//	    Dimensions:  incremental.StringDimensions("page", "user"),
//	    Metrics: []aggregator.Spec{
//	        {Type: aggregator.TypeLongFirst, Name: "firstAdded", FieldName: "added"},
//	        {Type: aggregator.TypeCount, Name: "rows"},
//	    },
//	    Rollup: true,
//	})
//	res := ix.Add(incremental.Row{Timestamp: ts, Dimensions: dims, Metrics: metrics})
//	if reason, ok := res.RejectionReason(); ok {
//	    // back off, persist, start a new index
//	}
//
// # Add Outcomes
//
// Add never returns an error. Its AddResult carries exactly one of Added,
// ParseFailed or Rejected together with the row count and memory estimate.
// Failed and rejected rows leave the index unchanged.
//
// # Thread Safety
//
// Index is safe for concurrent use. The grouping key's hash selects one of
// several lanes; slot updates happen under the lane's lock, so adds to
// different lanes do not contend. Slot allocation is a lock-free bump of the
// arena pointer. Readers (Rows, Get, WriteSnapshot) lock one lane at a time
// and never observe a partially updated row.
//
// # Persistence
//
// WriteSnapshot serializes the schema, byte order and all rows; ReadSnapshot
// restores them. Fold merges another index with an identical slot layout,
// for example a partition built on another goroutine or host.
package incremental
