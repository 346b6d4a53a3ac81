package rollup

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/rollup/incremental"
)

// OutcomeKind classifies the result of adding one row.
type OutcomeKind int

const (
	// OutcomeAdded means the row was aggregated.
	OutcomeAdded OutcomeKind = iota
	// OutcomeParseFailed means the row could not be interpreted.
	OutcomeParseFailed
	// OutcomeRejected means the index refused the row.
	OutcomeRejected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAdded:
		return "added"
	case OutcomeParseFailed:
		return "parse_failed"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func outcomeOf(r incremental.AddResult) (OutcomeKind, string) {
	switch o := r.Outcome.(type) {
	case incremental.ParseFailed:
		return OutcomeParseFailed, o.Err.Error()
	case incremental.Rejected:
		return OutcomeRejected, o.Reason
	default:
		return OutcomeAdded, ""
	}
}

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    rejected prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordAdd(kind rollup.OutcomeKind, d time.Duration) {
//	    if kind == rollup.OutcomeRejected {
//	        p.rejected.Inc()
//	    }
//	}
type MetricsCollector interface {
	// RecordAdd is called after each added row.
	RecordAdd(kind OutcomeKind, duration time.Duration)

	// RecordBatch is called after each batch. total is the number of rows
	// attempted, failed the number that were not added.
	RecordBatch(total, failed int, duration time.Duration)

	// RecordPersist is called after each persist with the snapshot size.
	RecordPersist(bytes int64, duration time.Duration, err error)

	// RecordRestore is called after each restore with the restored row count.
	RecordRestore(rows int, duration time.Duration, err error)

	// RecordFold is called after each fold with the resulting row count.
	RecordFold(rows int, duration time.Duration, err error)

	// RecordFilter is called after each filter evaluation.
	RecordFilter(accelerated bool, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(OutcomeKind, time.Duration)      {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordPersist(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRestore(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordFold(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordFilter(bool, time.Duration)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount          atomic.Int64
	AddParseFailures  atomic.Int64
	AddRejections     atomic.Int64
	AddTotalNanos     atomic.Int64
	BatchCount        atomic.Int64
	BatchRows         atomic.Int64
	BatchFailed       atomic.Int64
	PersistCount      atomic.Int64
	PersistErrors     atomic.Int64
	PersistBytes      atomic.Int64
	RestoreCount      atomic.Int64
	RestoreErrors     atomic.Int64
	FoldCount         atomic.Int64
	FoldErrors        atomic.Int64
	FilterCount       atomic.Int64
	FilterAccelerated atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(kind OutcomeKind, duration time.Duration) {
	b.AddCount.Add(1)
	b.AddTotalNanos.Add(duration.Nanoseconds())
	switch kind {
	case OutcomeParseFailed:
		b.AddParseFailures.Add(1)
	case OutcomeRejected:
		b.AddRejections.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(total, failed int, duration time.Duration) {
	b.BatchCount.Add(1)
	b.BatchRows.Add(int64(total))
	b.BatchFailed.Add(int64(failed))
}

// RecordPersist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersist(bytes int64, duration time.Duration, err error) {
	b.PersistCount.Add(1)
	if err != nil {
		b.PersistErrors.Add(1)
		return
	}
	b.PersistBytes.Add(bytes)
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(rows int, duration time.Duration, err error) {
	b.RestoreCount.Add(1)
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// RecordFold implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFold(rows int, duration time.Duration, err error) {
	b.FoldCount.Add(1)
	if err != nil {
		b.FoldErrors.Add(1)
	}
}

// RecordFilter implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilter(accelerated bool, duration time.Duration) {
	b.FilterCount.Add(1)
	if accelerated {
		b.FilterAccelerated.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:          b.AddCount.Load(),
		AddParseFailures:  b.AddParseFailures.Load(),
		AddRejections:     b.AddRejections.Load(),
		AddAvgNanos:       b.getAvgAddNanos(),
		BatchCount:        b.BatchCount.Load(),
		BatchRows:         b.BatchRows.Load(),
		BatchFailed:       b.BatchFailed.Load(),
		PersistCount:      b.PersistCount.Load(),
		PersistErrors:     b.PersistErrors.Load(),
		PersistBytes:      b.PersistBytes.Load(),
		RestoreCount:      b.RestoreCount.Load(),
		RestoreErrors:     b.RestoreErrors.Load(),
		FoldCount:         b.FoldCount.Load(),
		FoldErrors:        b.FoldErrors.Load(),
		FilterCount:       b.FilterCount.Load(),
		FilterAccelerated: b.FilterAccelerated.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAddNanos() int64 {
	count := b.AddCount.Load()
	if count == 0 {
		return 0
	}
	return b.AddTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount          int64
	AddParseFailures  int64
	AddRejections     int64
	AddAvgNanos       int64
	BatchCount        int64
	BatchRows         int64
	BatchFailed       int64
	PersistCount      int64
	PersistErrors     int64
	PersistBytes      int64
	RestoreCount      int64
	RestoreErrors     int64
	FoldCount         int64
	FoldErrors        int64
	FilterCount       int64
	FilterAccelerated int64
}
