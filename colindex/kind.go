package colindex

import "fmt"

// Kind identifies a capability family.
type Kind uint8

// Capability kinds.
const (
	KindNullValue Kind = iota + 1
	KindValue
	KindValueSet
	KindUTF8ValueSet
	KindLexicographicRange
	KindNumericRange
	KindArrayElement
	KindPredicate
	KindSpatial
	KindDictionaryEncodedValue
	KindDictionaryEncodedString
)

var kindNames = [...]string{
	KindNullValue:               "null-value",
	KindValue:                   "value",
	KindValueSet:                "value-set",
	KindUTF8ValueSet:            "utf8-value-set",
	KindLexicographicRange:      "lexicographic-range",
	KindNumericRange:            "numeric-range",
	KindArrayElement:            "array-element",
	KindPredicate:               "predicate",
	KindSpatial:                 "spatial",
	KindDictionaryEncodedValue:  "dictionary-encoded-value",
	KindDictionaryEncodedString: "dictionary-encoded-string",
}

// Kinds returns all capability kinds in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames)-1)
	for k := KindNullValue; k <= KindDictionaryEncodedString; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if k >= KindNullValue && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Capability is an index over one column for one kind of lookup.
//
// Capabilities are obtained per query and are not safe for concurrent use.
type Capability interface {
	Kind() Kind
}

// Supplier hands out capabilities for a column.
//
// As returns (nil, false) when the column cannot serve kind; it never fails.
// Suppliers are immutable and safe for concurrent use. Every call returns a
// fresh capability.
type Supplier interface {
	As(kind Kind) (Capability, bool)
}

// Column is a supplier that can also read its values row by row, which
// callers use when no capability fits.
type Column interface {
	Supplier
	// Len returns the number of rows.
	Len() int
	// Value returns the value of row, or nil.
	Value(row int) any
}

// Supports reports whether s can serve kind.
func Supports(s Supplier, kind Kind) bool {
	_, ok := as[Capability](s, kind)
	return ok
}

func as[T Capability](s Supplier, kind Kind) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	c, ok := s.As(kind)
	if !ok || c == nil || c.Kind() != kind {
		return zero, false
	}
	t, ok := c.(T)
	return t, ok
}

// NullValueIndexOf returns the null-value capability of s.
func NullValueIndexOf(s Supplier) (NullValueIndex, bool) {
	return as[NullValueIndex](s, KindNullValue)
}

// ValueIndexOf returns the exact-value capability of s.
func ValueIndexOf(s Supplier) (ValueIndex, bool) {
	return as[ValueIndex](s, KindValue)
}

// ValueSetIndexOf returns the value-set capability of s.
func ValueSetIndexOf(s Supplier) (ValueSetIndex, bool) {
	return as[ValueSetIndex](s, KindValueSet)
}

// UTF8ValueSetIndexOf returns the UTF-8 value-set capability of s.
func UTF8ValueSetIndexOf(s Supplier) (UTF8ValueSetIndex, bool) {
	return as[UTF8ValueSetIndex](s, KindUTF8ValueSet)
}

// LexicographicRangeIndexOf returns the lexicographic range capability of s.
func LexicographicRangeIndexOf(s Supplier) (LexicographicRangeIndex, bool) {
	return as[LexicographicRangeIndex](s, KindLexicographicRange)
}

// NumericRangeIndexOf returns the numeric range capability of s.
func NumericRangeIndexOf(s Supplier) (NumericRangeIndex, bool) {
	return as[NumericRangeIndex](s, KindNumericRange)
}

// ArrayElementIndexOf returns the array element capability of s.
func ArrayElementIndexOf(s Supplier) (ArrayElementIndex, bool) {
	return as[ArrayElementIndex](s, KindArrayElement)
}

// PredicateIndexOf returns the predicate capability of s.
func PredicateIndexOf(s Supplier) (PredicateIndex, bool) {
	return as[PredicateIndex](s, KindPredicate)
}

// SpatialIndexOf returns the spatial capability of s.
func SpatialIndexOf(s Supplier) (SpatialIndex, bool) {
	return as[SpatialIndex](s, KindSpatial)
}

// DictionaryEncodedValueIndexOf returns the dictionary id capability of s.
func DictionaryEncodedValueIndexOf(s Supplier) (DictionaryEncodedValueIndex, bool) {
	return as[DictionaryEncodedValueIndex](s, KindDictionaryEncodedValue)
}

// DictionaryEncodedStringIndexOf returns the string dictionary capability of s.
func DictionaryEncodedStringIndexOf(s Supplier) (DictionaryEncodedStringIndex, bool) {
	return as[DictionaryEncodedStringIndex](s, KindDictionaryEncodedString)
}
