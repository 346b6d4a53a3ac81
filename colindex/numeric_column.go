package colindex

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/btree"
)

// NumericType selects the storage of a NumericColumn.
type NumericType uint8

// Numeric column types.
const (
	Long NumericType = iota
	Double
)

func (t NumericType) String() string {
	if t == Long {
		return "long"
	}
	return "double"
}

// btreeDegree is the node degree of the value tree.
const btreeDegree = 16

type numItem struct {
	v    float64
	rows *Bitmap
}

func (a numItem) Less(b btree.Item) bool {
	return a.v < b.(numItem).v
}

// longItem keys long columns so values above 2^53 stay distinct.
type longItem struct {
	v    int64
	rows *Bitmap
}

func (a longItem) Less(b btree.Item) bool {
	return a.v < b.(longItem).v
}

// NumericColumnBuilder accumulates numeric values row by row.
type NumericColumnBuilder struct {
	typ     NumericType
	longs   []int64
	doubles []float64
	nulls   *Bitmap
	n       int
}

// NewNumericColumnBuilder returns an empty builder for typ.
func NewNumericColumnBuilder(typ NumericType) *NumericColumnBuilder {
	return &NumericColumnBuilder{typ: typ, nulls: NewBitmap()}
}

// AddLong appends v. On a double column it is widened.
func (b *NumericColumnBuilder) AddLong(v int64) {
	if b.typ == Double {
		b.AddDouble(float64(v))
		return
	}
	b.longs = append(b.longs, v)
	b.n++
}

// AddDouble appends v. On a long column it is truncated.
func (b *NumericColumnBuilder) AddDouble(v float64) {
	if b.typ == Long {
		b.AddLong(int64(v))
		return
	}
	b.doubles = append(b.doubles, v)
	b.n++
}

// AddNull appends a null.
func (b *NumericColumnBuilder) AddNull() {
	b.nulls.Add(uint32(b.n))
	if b.typ == Long {
		b.longs = append(b.longs, 0)
	} else {
		b.doubles = append(b.doubles, 0)
	}
	b.n++
}

// Build indexes the accumulated values.
func (b *NumericColumnBuilder) Build() *NumericColumn {
	c := &NumericColumn{
		typ:     b.typ,
		longs:   b.longs,
		doubles: b.doubles,
		nulls:   b.nulls.Clone(),
		tree:    btree.New(btreeDegree),
		n:       b.n,
	}
	add := func(f float64, row uint32) {
		if math.IsNaN(f) {
			return
		}
		if it := c.tree.Get(numItem{v: f}); it != nil {
			it.(numItem).rows.Add(row)
			return
		}
		c.tree.ReplaceOrInsert(numItem{v: f, rows: BitmapOf(row)})
	}
	if b.typ == Long {
		c.exactLong = make(map[int64]*Bitmap)
		for row, v := range b.longs {
			if b.nulls.Contains(uint32(row)) {
				continue
			}
			bm, ok := c.exactLong[v]
			if !ok {
				bm = NewBitmap()
				c.exactLong[v] = bm
				c.tree.ReplaceOrInsert(longItem{v: v, rows: bm})
			}
			bm.Add(uint32(row))
		}
	} else {
		c.exactDouble = make(map[float64]*Bitmap)
		for row, v := range b.doubles {
			if b.nulls.Contains(uint32(row)) || math.IsNaN(v) {
				continue
			}
			bm, ok := c.exactDouble[v]
			if !ok {
				bm = NewBitmap()
				c.exactDouble[v] = bm
			}
			bm.Add(uint32(row))
			add(v, uint32(row))
		}
	}
	return c
}

// NumericColumn is a long or double column with exact-value posting lists
// and an ordered value tree for range lookups.
type NumericColumn struct {
	typ         NumericType
	longs       []int64
	doubles     []float64
	nulls       *Bitmap
	exactLong   map[int64]*Bitmap
	exactDouble map[float64]*Bitmap
	tree        *btree.BTree
	n           int
}

var _ Column = (*NumericColumn)(nil)

// Type returns the storage type.
func (c *NumericColumn) Type() NumericType { return c.typ }

// Len implements Column.
func (c *NumericColumn) Len() int { return c.n }

// Value implements Column. It returns int64, float64 or nil.
func (c *NumericColumn) Value(row int) any {
	if c.nulls.Contains(uint32(row)) {
		return nil
	}
	if c.typ == Long {
		return c.longs[row]
	}
	return c.doubles[row]
}

// As implements Supplier.
func (c *NumericColumn) As(kind Kind) (Capability, bool) {
	if c == nil {
		return nil, false
	}
	switch kind {
	case KindNullValue:
		return nullIndex{nulls: c.nulls}, true
	case KindValue:
		return numericValueIndex{c}, true
	case KindValueSet:
		return numericValueSetIndex{c}, true
	case KindNumericRange:
		return numericRangeIndex{c}, true
	case KindPredicate:
		return numericPredicateIndex{c}, true
	default:
		return nil, false
	}
}

// posting returns the rows equal to v, or nil.
func (c *NumericColumn) posting(v any) *Bitmap {
	if c.typ == Long {
		if i, ok := ToLong(v); ok {
			return c.exactLong[i]
		}
		f, ok := ToFloat(v)
		if !ok || f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
			return nil
		}
		return c.exactLong[int64(f)]
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return c.exactDouble[f]
}

type numericValueIndex struct{ c *NumericColumn }

func (numericValueIndex) Kind() Kind { return KindValue }

func (x numericValueIndex) ForValue(v any) *Bitmap {
	if v == nil {
		return x.c.nulls.Clone()
	}
	return union(x.c.posting(v))
}

type numericValueSetIndex struct{ c *NumericColumn }

func (numericValueSetIndex) Kind() Kind { return KindValueSet }

func (x numericValueSetIndex) ForValues(vs []any) *Bitmap {
	out := NewBitmap()
	for _, v := range vs {
		if v == nil {
			out.Or(x.c.nulls)
			continue
		}
		if p := x.c.posting(v); p != nil {
			out.Or(p)
		}
	}
	return out
}

type numericRangeIndex struct{ c *NumericColumn }

func (numericRangeIndex) Kind() Kind { return KindNumericRange }

func (x numericRangeIndex) ForRange(r NumericRange) *Bitmap {
	out := NewBitmap()
	if x.c.typ == Long {
		lo, hi, ok := r.LongBounds()
		if !ok {
			return out
		}
		x.c.tree.AscendGreaterOrEqual(longItem{v: lo}, func(i btree.Item) bool {
			it := i.(longItem)
			if it.v > hi {
				return false
			}
			out.Or(it.rows)
			return true
		})
		return out
	}
	visit := func(i btree.Item) bool {
		it := i.(numItem)
		if it.v > r.Upper || (r.UpperStrict && it.v == r.Upper) {
			return false
		}
		if r.Contains(it.v) {
			out.Or(it.rows)
		}
		return true
	}
	if math.IsInf(r.Lower, -1) || math.IsNaN(r.Lower) {
		x.c.tree.Ascend(visit)
	} else {
		x.c.tree.AscendGreaterOrEqual(numItem{v: r.Lower}, visit)
	}
	return out
}

type numericPredicateIndex struct{ c *NumericColumn }

func (numericPredicateIndex) Kind() Kind { return KindPredicate }

func (x numericPredicateIndex) ForPredicate(match func(any) bool) *Bitmap {
	out := NewBitmap()
	if x.c.typ == Long {
		for v, rows := range x.c.exactLong {
			if match(v) {
				out.Or(rows)
			}
		}
	} else {
		for v, rows := range x.c.exactDouble {
			if match(v) {
				out.Or(rows)
			}
		}
		for row, v := range x.c.doubles {
			if math.IsNaN(v) && !x.c.nulls.Contains(uint32(row)) && match(v) {
				out.Add(uint32(row))
			}
		}
	}
	if !x.c.nulls.IsEmpty() && match(nil) {
		out.Or(x.c.nulls)
	}
	return out
}

// ToLong converts integer kinds, integral json.Number values and integer
// strings to int64 without going through float64.
func ToLong(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		return int64(x), uint64(x) <= math.MaxInt64
	case uint64:
		return int64(x), x <= math.MaxInt64
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// ToFloat converts numbers, numeric strings and json.Number to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
