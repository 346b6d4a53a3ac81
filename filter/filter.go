package filter

import (
	"fmt"
	"strings"

	"github.com/hupe1980/rollup/colindex"
)

// Selector exposes the columns of a row set. segment.Segment implements it.
type Selector interface {
	NumRows() int
	Column(name string) (colindex.Column, bool)
}

// Filter is a row predicate over the columns of a Selector.
//
// The concrete filters of this package are the only implementations.
type Filter interface {
	fmt.Stringer
	// matches evaluates the filter against the values of one row.
	matches(sel Selector, row int) bool
}

// leaf is a filter on one column.
type leaf interface {
	Filter
	column() string
	// index answers the filter from column capabilities. It reports false
	// when the column cannot serve it.
	index(col colindex.Column) (*colindex.Bitmap, bool)
}

// Apply returns the rows of sel that match f, and whether every leaf of f was
// answered by a column index. Leaves that no index can serve are matched
// value by value.
func Apply(sel Selector, f Filter) (*colindex.Bitmap, bool) {
	return eval(sel, f)
}

// Match reports whether row matches f, reading values only.
func Match(sel Selector, f Filter, row int) bool {
	return f.matches(sel, row)
}

func eval(sel Selector, f Filter) (*colindex.Bitmap, bool) {
	switch f := f.(type) {
	case And:
		return evalAnd(sel, f)
	case Or:
		out := colindex.NewBitmap()
		accelerated := true
		for _, c := range f {
			bm, ok := eval(sel, c)
			out.Or(bm)
			colindex.PutBitmap(bm)
			accelerated = accelerated && ok
		}
		return out, accelerated
	case Not:
		bm, ok := eval(sel, f.Filter)
		out := bm.Complement(sel.NumRows())
		colindex.PutBitmap(bm)
		return out, ok
	case leaf:
		if bm, ok := indexLeaf(sel, f); ok {
			return bm, true
		}
		return scan(sel, f, nil), false
	default:
		return scan(sel, f, nil), false
	}
}

func indexLeaf(sel Selector, f leaf) (*colindex.Bitmap, bool) {
	col, ok := sel.Column(f.column())
	if !ok {
		// A missing column reads as null in every row.
		if sel.NumRows() > 0 && f.matches(sel, 0) {
			return colindex.Range(sel.NumRows()), true
		}
		return colindex.NewBitmap(), true
	}
	return f.index(col)
}

// evalAnd intersects the children that an index can answer and matches the
// remaining leaves only against the surviving rows.
func evalAnd(sel Selector, f And) (*colindex.Bitmap, bool) {
	var acc *colindex.Bitmap
	var rest []Filter
	for _, c := range f {
		var bm *colindex.Bitmap
		if l, ok := c.(leaf); ok {
			var indexed bool
			if bm, indexed = indexLeaf(sel, l); !indexed {
				rest = append(rest, c)
				continue
			}
		} else {
			var accelerated bool
			if bm, accelerated = eval(sel, c); !accelerated {
				colindex.PutBitmap(bm)
				rest = append(rest, c)
				continue
			}
		}
		if acc == nil {
			acc = bm
			continue
		}
		acc.And(bm)
		colindex.PutBitmap(bm)
	}
	if len(rest) == 0 {
		if acc == nil {
			acc = colindex.Range(sel.NumRows())
		}
		return acc, true
	}
	out := scan(sel, And(rest), acc)
	colindex.PutBitmap(acc)
	return out, false
}

// scan matches f against every row, or only the rows of within when it is
// not nil.
func scan(sel Selector, f Filter, within *colindex.Bitmap) *colindex.Bitmap {
	out := colindex.NewBitmap()
	if within != nil {
		for row := range within.Rows() {
			if f.matches(sel, int(row)) {
				out.Add(row)
			}
		}
		return out
	}
	for row := range sel.NumRows() {
		if f.matches(sel, row) {
			out.Add(uint32(row))
		}
	}
	return out
}

// And matches rows that match every filter. An empty And matches all rows.
type And []Filter

func (f And) matches(sel Selector, row int) bool {
	for _, c := range f {
		if !c.matches(sel, row) {
			return false
		}
	}
	return true
}

func (f And) String() string { return join("and", f) }

// Or matches rows that match any filter. An empty Or matches nothing.
type Or []Filter

func (f Or) matches(sel Selector, row int) bool {
	for _, c := range f {
		if c.matches(sel, row) {
			return true
		}
	}
	return false
}

func (f Or) String() string { return join("or", f) }

// Not inverts a filter.
type Not struct {
	Filter Filter
}

func (f Not) matches(sel Selector, row int) bool { return !f.Filter.matches(sel, row) }

func (f Not) String() string { return "not(" + f.Filter.String() + ")" }

func join(op string, fs []Filter) string {
	parts := make([]string, len(fs))
	for i, c := range fs {
		parts[i] = c.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// value reads one cell. Missing columns read as nil.
func value(sel Selector, column string, row int) any {
	col, ok := sel.Column(column)
	if !ok {
		return nil
	}
	return col.Value(row)
}
