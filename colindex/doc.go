// Package colindex supplies per-column index capabilities to filter evaluators.
//
// A column is a Supplier. Callers probe it with As(kind) or with the typed
// accessors (ValueIndexOf, NumericRangeIndexOf, ...) and fall back to reading
// Column.Value row by row when the column cannot serve the kind:
//
//	if idx, ok := colindex.ValueIndexOf(col); ok {
//		rows := idx.ForValue("home")
//		...
//	}
//
// Kinds are a closed set. A lookup for an unsupported kind, or on a nil
// supplier, returns false and never panics.
//
// # Column types
//
//   - StringColumn: sorted dictionary with one roaring posting list per id.
//   - NumericColumn: long or double values with exact posting lists and a
//     B-tree over distinct values for range lookups.
//   - ArrayColumn: multi-value strings indexed by element.
//   - SpatialColumn: points sorted by s2 leaf cell; lookups scan the cells of
//     a RegionCoverer covering and check containment exactly.
//
// # Thread Safety
//
// Columns are immutable after Build and safe for concurrent use. Each call to
// As returns a new capability; capabilities must not be shared between
// goroutines. Returned bitmaps are owned by the caller.
package colindex
