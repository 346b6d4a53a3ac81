// Package arena provides the pre-sized byte region that holds aggregation slots.
//
// A FlatArena is allocated once, up front, and never grows. Allocation is a
// lock-free bump of an atomic cursor; when the region is exhausted Alloc returns
// ErrArenaFull and the caller turns that into a rejection instead of growing or
// waiting.
//
// # Thread Safety
//
// Alloc may be called concurrently. Writes into distinct allocations never
// overlap; writes into the same allocation must be serialized by the caller.
package arena
