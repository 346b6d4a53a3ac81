// Package resource governs the shared budgets of an ingestion process.
//
// A Controller tracks three things:
//
//   - Memory: bytes held by in-memory indexes. ReserveMemory never blocks; it
//     fails with ErrMemoryLimitExceeded so the caller can reject the row.
//   - Background workers: a bound on concurrent fold and persist jobs.
//   - IO: a token bucket shared by snapshot writers and readers.
//
// Example:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.ReserveMemory(rowBytes); err != nil {
//	    // reject the row
//	}
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// Every method on a nil *Controller is a no-op that grants the request, so
// budgets stay optional for callers.
package resource
