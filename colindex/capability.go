package colindex

import (
	"math"
)

// NullValueIndex finds rows whose value is null.
type NullValueIndex interface {
	Capability
	Nulls() *Bitmap
}

// ValueIndex finds rows equal to one value. A nil value matches null rows.
// Values the column cannot hold match nothing.
type ValueIndex interface {
	Capability
	ForValue(v any) *Bitmap
}

// ValueSetIndex finds rows equal to any of a set of values.
type ValueSetIndex interface {
	Capability
	ForValues(vs []any) *Bitmap
}

// UTF8ValueSetIndex finds rows equal to any of a set of UTF-8 encoded strings.
type UTF8ValueSetIndex interface {
	Capability
	ForUTF8Values(vs [][]byte) *Bitmap
}

// StringRange bounds a lexicographic range. A nil bound is open.
type StringRange struct {
	Lower, Upper             *string
	LowerStrict, UpperStrict bool
}

// LexicographicRangeIndex finds rows whose string value falls in a range.
// Nulls never match.
type LexicographicRangeIndex interface {
	Capability
	ForRange(r StringRange) *Bitmap
}

// NumericRange bounds a numeric range. Infinite bounds are open.
//
// Long columns compare against the integer bounds of the range. Use
// LongBetween for bounds that a float64 cannot represent exactly.
type NumericRange struct {
	Lower, Upper             float64
	LowerStrict, UpperStrict bool

	exact  bool
	lo, hi int64
}

// LongBetween returns the closed range [lo, hi] with exact integer bounds.
func LongBetween(lo, hi int64) NumericRange {
	return NumericRange{Lower: float64(lo), Upper: float64(hi), exact: true, lo: lo, hi: hi}
}

// AtLeast returns the range [v, +Inf).
func AtLeast(v float64) NumericRange {
	return NumericRange{Lower: v, Upper: math.Inf(1)}
}

// AtMost returns the range (-Inf, v].
func AtMost(v float64) NumericRange {
	return NumericRange{Lower: math.Inf(-1), Upper: v}
}

// Between returns the closed range [lo, hi].
func Between(lo, hi float64) NumericRange {
	return NumericRange{Lower: lo, Upper: hi}
}

// Contains reports whether v is inside r.
func (r NumericRange) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if v < r.Lower || (r.LowerStrict && v == r.Lower) {
		return false
	}
	if v > r.Upper || (r.UpperStrict && v == r.Upper) {
		return false
	}
	return true
}

// LongBounds returns the closed integer bounds of r. ok is false when no
// integer lies in r.
func (r NumericRange) LongBounds() (lo, hi int64, ok bool) {
	if r.exact {
		return r.lo, r.hi, r.lo <= r.hi
	}
	const limit = 1 << 63

	switch {
	case math.IsNaN(r.Lower) || r.Lower < -limit:
		lo = math.MinInt64
	case r.Lower >= limit:
		return 0, 0, false
	default:
		c := math.Ceil(r.Lower)
		lo = int64(c)
		if r.LowerStrict && c == r.Lower {
			if lo == math.MaxInt64 {
				return 0, 0, false
			}
			lo++
		}
	}

	switch {
	case math.IsNaN(r.Upper) || r.Upper >= limit:
		hi = math.MaxInt64
	case r.Upper < -limit:
		return 0, 0, false
	default:
		f := math.Floor(r.Upper)
		hi = int64(f)
		if r.UpperStrict && f == r.Upper {
			if hi == math.MinInt64 {
				return 0, 0, false
			}
			hi--
		}
	}
	return lo, hi, lo <= hi
}

// ContainsLong reports whether the integer v is inside r.
func (r NumericRange) ContainsLong(v int64) bool {
	lo, hi, ok := r.LongBounds()
	return ok && lo <= v && v <= hi
}

// NumericRangeIndex finds rows whose numeric value falls in a range.
// Nulls never match.
type NumericRangeIndex interface {
	Capability
	ForRange(r NumericRange) *Bitmap
}

// ArrayElementIndex finds rows of a multi-value column that contain an element.
type ArrayElementIndex interface {
	Capability
	ContainingElement(v string) *Bitmap
	ContainingAny(vs []string) *Bitmap
}

// PredicateIndex finds rows whose value satisfies match. For multi-value
// columns a row matches when any element does. match receives nil for nulls.
type PredicateIndex interface {
	Capability
	ForPredicate(match func(v any) bool) *Bitmap
}

// SpatialIndex finds rows whose point lies inside a bound.
type SpatialIndex interface {
	Capability
	ForBound(b Bound) *Bitmap
}

// DictionaryEncodedValueIndex exposes per-id posting lists of a dictionary
// encoded column. Ids are dense in [0, Cardinality()).
type DictionaryEncodedValueIndex interface {
	Capability
	Cardinality() int
	Bitmap(id int) *Bitmap
}

// DictionaryEncodedStringIndex adds access to the sorted string dictionary.
type DictionaryEncodedStringIndex interface {
	DictionaryEncodedValueIndex
	// Value returns the string with the given id.
	Value(id int) (string, bool)
	// IndexOf returns the id of s, or -(insertion point)-1 if s is absent.
	IndexOf(s string) int
}
