package colindex

import "slices"

// ArrayColumnBuilder accumulates multi-value string rows.
type ArrayColumnBuilder struct {
	values [][]string
}

// NewArrayColumnBuilder returns an empty builder.
func NewArrayColumnBuilder() *ArrayColumnBuilder {
	return &ArrayColumnBuilder{}
}

// Add appends a row. A nil or empty slice is a null row.
func (b *ArrayColumnBuilder) Add(vs []string) {
	b.values = append(b.values, slices.Clone(vs))
}

// Build indexes the accumulated rows by element.
func (b *ArrayColumnBuilder) Build() *ArrayColumn {
	c := &ArrayColumn{
		values:   b.values,
		elements: make(map[string]*Bitmap),
		nulls:    NewBitmap(),
	}
	for row, vs := range b.values {
		if len(vs) == 0 {
			c.nulls.Add(uint32(row))
			continue
		}
		for _, v := range vs {
			bm, ok := c.elements[v]
			if !ok {
				bm = NewBitmap()
				c.elements[v] = bm
			}
			bm.Add(uint32(row))
		}
	}
	return c
}

// ArrayColumn is a multi-value string column with one posting list per element.
type ArrayColumn struct {
	values   [][]string
	elements map[string]*Bitmap
	nulls    *Bitmap
}

var _ Column = (*ArrayColumn)(nil)

// Len implements Column.
func (c *ArrayColumn) Len() int { return len(c.values) }

// Value implements Column. It returns a copy of the row's []string, or nil.
func (c *ArrayColumn) Value(row int) any {
	if len(c.values[row]) == 0 {
		return nil
	}
	return slices.Clone(c.values[row])
}

// As implements Supplier.
func (c *ArrayColumn) As(kind Kind) (Capability, bool) {
	if c == nil {
		return nil, false
	}
	switch kind {
	case KindNullValue:
		return nullIndex{nulls: c.nulls}, true
	case KindArrayElement:
		return arrayElementIndex{c}, true
	case KindPredicate:
		return arrayPredicateIndex{c}, true
	default:
		return nil, false
	}
}

type arrayElementIndex struct{ c *ArrayColumn }

func (arrayElementIndex) Kind() Kind { return KindArrayElement }

func (x arrayElementIndex) ContainingElement(v string) *Bitmap {
	return union(x.c.elements[v])
}

func (x arrayElementIndex) ContainingAny(vs []string) *Bitmap {
	out := NewBitmap()
	for _, v := range vs {
		if bm, ok := x.c.elements[v]; ok {
			out.Or(bm)
		}
	}
	return out
}

type arrayPredicateIndex struct{ c *ArrayColumn }

func (arrayPredicateIndex) Kind() Kind { return KindPredicate }

func (x arrayPredicateIndex) ForPredicate(match func(any) bool) *Bitmap {
	out := NewBitmap()
	for v, rows := range x.c.elements {
		if match(v) {
			out.Or(rows)
		}
	}
	if !x.c.nulls.IsEmpty() && match(nil) {
		out.Or(x.c.nulls)
	}
	return out
}
