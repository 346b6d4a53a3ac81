package incremental

import (
	"fmt"
	"strings"
)

// Outcome is the per-row result of an add. It is one of Added, ParseFailed or Rejected.
type Outcome interface {
	outcome()
}

// Added means the row was aggregated into the index.
type Added struct{}

// ParseFailed means the row could not be interpreted. The index is unchanged.
type ParseFailed struct {
	Err *ParseError
}

// Rejected means the row was well-formed but the index refused it. The index is unchanged.
type Rejected struct {
	Reason string
}

func (Added) outcome()       {}
func (ParseFailed) outcome() {}
func (Rejected) outcome()    {}

// AddResult reports the outcome of one add together with the index size after it.
type AddResult struct {
	// RowCount is the number of distinct rows after the add.
	RowCount int
	// BytesInMemory is the estimated footprint after the add.
	BytesInMemory int64
	Outcome       Outcome
}

// IsRowAdded reports whether the row was aggregated.
func (r AddResult) IsRowAdded() bool {
	_, ok := r.Outcome.(Added)
	return ok
}

// HasParseError reports whether the row failed to parse.
func (r AddResult) HasParseError() bool {
	_, ok := r.Outcome.(ParseFailed)
	return ok
}

// ParseError returns the parse failure, or nil.
func (r AddResult) ParseError() *ParseError {
	if pf, ok := r.Outcome.(ParseFailed); ok {
		return pf.Err
	}
	return nil
}

// RejectionReason returns the reason of a rejection and whether the row was rejected.
func (r AddResult) RejectionReason() (string, bool) {
	if rj, ok := r.Outcome.(Rejected); ok {
		return rj.Reason, true
	}
	return "", false
}

// ParseError describes a row whose values could not be interpreted.
type ParseError struct {
	// Columns lists the offending columns, if known.
	Columns []string
	// Detail is a human readable description, such as the offending input fragment.
	Detail string
	// Err is the underlying cause.
	Err error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if len(e.Columns) > 0 {
		fmt.Fprintf(&sb, "found unparseable columns in row: [%s]", strings.Join(e.Columns, ", "))
	} else {
		sb.WriteString("unparseable row")
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// RejectedError is returned by bulk operations such as Fold when the target
// index refuses a row.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "row rejected: " + e.Reason
}

// Rejection reasons.
const (
	ReasonArenaFull = "aggregation buffer is full"
)

func reasonMaxRows(n int) string {
	return fmt.Sprintf("Maximum number of rows [%d] reached", n)
}

func reasonMaxBytes(n int64) string {
	return fmt.Sprintf("Maximum bytes in memory [%d] reached", n)
}

func reasonWindow(ts, lo, hi int64) string {
	return fmt.Sprintf("timestamp [%d] is outside the ingestion window [%d, %d)", ts, lo, hi)
}
