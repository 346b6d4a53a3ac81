// Package filter evaluates row filters over indexed columns.
//
// Apply answers each leaf filter from the column's colindex capabilities
// when the column supplies a suitable one, and otherwise reads the column
// value by value. Both paths select the same rows:
//
//	rows, accelerated := filter.Apply(seg, filter.And{
//		filter.Equals{Column: "page", Value: "home"},
//		filter.NumericBound{Column: "__time", Range: colindex.AtLeast(ts)},
//	})
//
// Columns missing from the selector read as null in every row.
//
// # Thread Safety
//
// Filters are immutable values. Apply is safe for concurrent use as long as
// Predicate functions are.
package filter
