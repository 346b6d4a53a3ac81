package aggregator

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// rowAlign keeps every row start 8-byte aligned inside the arena.
const rowAlign = 8

// Layout places a list of aggregators next to each other inside one row.
// A row is the concatenation of all slots followed by padding up to RowSize.
type Layout struct {
	order   binary.ByteOrder
	specs   []Spec
	aggs    []BufferAggregator
	offsets []int
	byName  map[string]int
	rowSize int
}

// NewLayout builds the aggregators for specs and computes their offsets.
func NewLayout(order binary.ByteOrder, specs ...Spec) (*Layout, error) {
	if order == nil {
		order = binary.LittleEndian
	}
	l := &Layout{
		order:   order,
		specs:   slices.Clone(specs),
		aggs:    make([]BufferAggregator, len(specs)),
		offsets: make([]int, len(specs)),
		byName:  make(map[string]int, len(specs)),
	}

	off := 0
	for i, s := range specs {
		if _, dup := l.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, s.Name)
		}
		agg, err := s.Build(order)
		if err != nil {
			return nil, err
		}
		l.aggs[i] = agg
		l.offsets[i] = off
		l.byName[s.Name] = i
		off += agg.Size()
	}
	l.rowSize = (off + rowAlign - 1) / rowAlign * rowAlign
	return l, nil
}

// ByteOrder returns the byte order shared by all slots.
func (l *Layout) ByteOrder() binary.ByteOrder { return l.order }

// RowSize returns the aligned width of one row in bytes.
func (l *Layout) RowSize() int { return l.rowSize }

// Len returns the number of aggregators.
func (l *Layout) Len() int { return len(l.aggs) }

// Spec returns the i-th spec.
func (l *Layout) Spec(i int) Spec { return l.specs[i] }

// Specs returns a copy of all specs in layout order.
func (l *Layout) Specs() []Spec { return slices.Clone(l.specs) }

// Aggregator returns the i-th aggregator.
func (l *Layout) Aggregator(i int) BufferAggregator { return l.aggs[i] }

// Offset returns the position of the i-th slot relative to the row start.
func (l *Layout) Offset(i int) int { return l.offsets[i] }

// Index returns the position of the named aggregator.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.byName[name]
	return i, ok
}

// InitRow initializes every slot of the row starting at pos.
func (l *Layout) InitRow(buf []byte, pos int) {
	for i, a := range l.aggs {
		a.Init(buf, pos+l.offsets[i])
	}
	// Padding is kept zero so snapshots of equal rows are byte-identical.
	clear(buf[pos+l.usedBytes() : pos+l.rowSize])
}

// FoldRow folds the row at src[srcPos:] into the row at dst[dstPos:].
func (l *Layout) FoldRow(dst []byte, dstPos int, src []byte, srcPos int) {
	for i, a := range l.aggs {
		a.Fold(dst, dstPos+l.offsets[i], src, srcPos+l.offsets[i])
	}
}

// Get decodes the i-th slot of the row at pos.
func (l *Layout) Get(buf []byte, pos, i int) any {
	return l.aggs[i].Get(buf, pos+l.offsets[i])
}

// Compatible reports whether rows of l and other can be folded into each other.
func (l *Layout) Compatible(other *Layout) bool {
	if other == nil || ByteOrderName(l.order) != ByteOrderName(other.order) {
		return false
	}
	if len(l.specs) != len(other.specs) {
		return false
	}
	for i := range l.specs {
		if l.specs[i].Type != other.specs[i].Type || l.specs[i].Name != other.specs[i].Name {
			return false
		}
	}
	return true
}

func (l *Layout) usedBytes() int {
	if len(l.aggs) == 0 {
		return 0
	}
	last := len(l.aggs) - 1
	return l.offsets[last] + l.aggs[last].Size()
}
