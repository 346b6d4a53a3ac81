// Package aggregator implements buffer-resident aggregation.
//
// Every aggregator owns a fixed-width slot inside a larger shared byte region and
// reads/writes it at static offsets. The caller (normally the incremental index)
// decides where the slot lives; the aggregator never allocates.
//
// # Slot Layout
//
// First/last-by-time aggregators use:
//
//	[time int64 @0][null flag @8][value @9, 4 or 8 bytes]
//
// Sum, min, max and count use a single 8-byte value at offset 0.
//
// The byte order is chosen when the aggregator is built and must be identical
// for every producer that folds into the same buffer.
//
// # Tie Break
//
// First-by-time keeps the earliest timestamp; an equal timestamp never overwrites,
// so the first processed row wins. Last-by-time keeps the latest timestamp and an
// equal timestamp overwrites, so the last processed row wins. Both rules are
// order-dependent for equal timestamps and order-independent otherwise.
//
// # Thread Safety
//
// Aggregators are stateless and safe for concurrent use. Slots are not: callers
// must serialize Init, Aggregate and Fold on the same slot, and must call Init
// before any other operation on a slot.
package aggregator
