package colindex

import (
	"slices"
	"sort"
	"strings"
)

// StringColumnBuilder accumulates string values row by row.
type StringColumnBuilder struct {
	values []string
	nulls  *Bitmap
}

// NewStringColumnBuilder returns an empty builder.
func NewStringColumnBuilder() *StringColumnBuilder {
	return &StringColumnBuilder{nulls: NewBitmap()}
}

// Add appends a value.
func (b *StringColumnBuilder) Add(v string) {
	b.values = append(b.values, v)
}

// AddNull appends a null.
func (b *StringColumnBuilder) AddNull() {
	b.nulls.Add(uint32(len(b.values)))
	b.values = append(b.values, "")
}

// Build dictionary-encodes the accumulated values.
func (b *StringColumnBuilder) Build() *StringColumn {
	dict := make([]string, 0, len(b.values))
	for row, v := range b.values {
		if !b.nulls.Contains(uint32(row)) {
			dict = append(dict, v)
		}
	}
	slices.Sort(dict)
	dict = slices.Compact(dict)

	c := &StringColumn{
		dict:     dict,
		ids:      make([]int32, len(b.values)),
		postings: make([]*Bitmap, len(dict)),
		nulls:    b.nulls.Clone(),
	}
	for i := range c.postings {
		c.postings[i] = NewBitmap()
	}
	for row, v := range b.values {
		if b.nulls.Contains(uint32(row)) {
			c.ids[row] = -1
			continue
		}
		id, _ := slices.BinarySearch(dict, v)
		c.ids[row] = int32(id)
		c.postings[id].Add(uint32(row))
	}
	return c
}

// StringColumn is a dictionary-encoded string column with one posting list
// per distinct value.
type StringColumn struct {
	dict     []string
	ids      []int32
	postings []*Bitmap
	nulls    *Bitmap
}

var _ Column = (*StringColumn)(nil)

// Len implements Column.
func (c *StringColumn) Len() int { return len(c.ids) }

// Value implements Column.
func (c *StringColumn) Value(row int) any {
	if id := c.ids[row]; id >= 0 {
		return c.dict[id]
	}
	return nil
}

// As implements Supplier.
func (c *StringColumn) As(kind Kind) (Capability, bool) {
	if c == nil {
		return nil, false
	}
	switch kind {
	case KindNullValue:
		return nullIndex{nulls: c.nulls}, true
	case KindValue:
		return stringValueIndex{c}, true
	case KindValueSet:
		return stringValueSetIndex{c}, true
	case KindUTF8ValueSet:
		return stringUTF8Index{c}, true
	case KindLexicographicRange:
		return stringRangeIndex{c}, true
	case KindPredicate:
		return stringPredicateIndex{c}, true
	case KindDictionaryEncodedValue, KindDictionaryEncodedString:
		return stringDictIndex{c: c, kind: kind}, true
	default:
		return nil, false
	}
}

func (c *StringColumn) posting(s string) *Bitmap {
	if id, ok := slices.BinarySearch(c.dict, s); ok {
		return c.postings[id]
	}
	return nil
}

type nullIndex struct{ nulls *Bitmap }

func (nullIndex) Kind() Kind { return KindNullValue }

func (n nullIndex) Nulls() *Bitmap { return n.nulls.Clone() }

type stringValueIndex struct{ c *StringColumn }

func (stringValueIndex) Kind() Kind { return KindValue }

func (x stringValueIndex) ForValue(v any) *Bitmap {
	if v == nil {
		return x.c.nulls.Clone()
	}
	s, ok := v.(string)
	if !ok {
		return NewBitmap()
	}
	return union(x.c.posting(s))
}

type stringValueSetIndex struct{ c *StringColumn }

func (stringValueSetIndex) Kind() Kind { return KindValueSet }

func (x stringValueSetIndex) ForValues(vs []any) *Bitmap {
	out := NewBitmap()
	for _, v := range vs {
		switch s := v.(type) {
		case nil:
			out.Or(x.c.nulls)
		case string:
			if p := x.c.posting(s); p != nil {
				out.Or(p)
			}
		}
	}
	return out
}

type stringUTF8Index struct{ c *StringColumn }

func (stringUTF8Index) Kind() Kind { return KindUTF8ValueSet }

func (x stringUTF8Index) ForUTF8Values(vs [][]byte) *Bitmap {
	out := NewBitmap()
	for _, v := range vs {
		if p := x.c.posting(string(v)); p != nil {
			out.Or(p)
		}
	}
	return out
}

type stringRangeIndex struct{ c *StringColumn }

func (stringRangeIndex) Kind() Kind { return KindLexicographicRange }

func (x stringRangeIndex) ForRange(r StringRange) *Bitmap {
	dict := x.c.dict
	lo, hi := 0, len(dict)
	if r.Lower != nil {
		lo = sort.Search(len(dict), func(i int) bool {
			c := strings.Compare(dict[i], *r.Lower)
			return c > 0 || (c == 0 && !r.LowerStrict)
		})
	}
	if r.Upper != nil {
		hi = sort.Search(len(dict), func(i int) bool {
			c := strings.Compare(dict[i], *r.Upper)
			return c > 0 || (c == 0 && r.UpperStrict)
		})
	}
	out := NewBitmap()
	for id := lo; id < hi; id++ {
		out.Or(x.c.postings[id])
	}
	return out
}

type stringPredicateIndex struct{ c *StringColumn }

func (stringPredicateIndex) Kind() Kind { return KindPredicate }

func (x stringPredicateIndex) ForPredicate(match func(any) bool) *Bitmap {
	out := NewBitmap()
	for id, s := range x.c.dict {
		if match(s) {
			out.Or(x.c.postings[id])
		}
	}
	if !x.c.nulls.IsEmpty() && match(nil) {
		out.Or(x.c.nulls)
	}
	return out
}

type stringDictIndex struct {
	c    *StringColumn
	kind Kind
}

func (x stringDictIndex) Kind() Kind { return x.kind }

func (x stringDictIndex) Cardinality() int { return len(x.c.dict) }

func (x stringDictIndex) Bitmap(id int) *Bitmap {
	if id < 0 || id >= len(x.c.postings) {
		return NewBitmap()
	}
	return x.c.postings[id].Clone()
}

func (x stringDictIndex) Value(id int) (string, bool) {
	if id < 0 || id >= len(x.c.dict) {
		return "", false
	}
	return x.c.dict[id], true
}

func (x stringDictIndex) IndexOf(s string) int {
	id, ok := slices.BinarySearch(x.c.dict, s)
	if !ok {
		return -id - 1
	}
	return id
}
