package aggregator

import (
	"encoding/binary"
	"math"
)

// timed is the shared implementation of the first/last-by-time family.
type timed struct {
	kind     numericKind
	order    binary.ByteOrder
	sentinel int64
	// replaces reports whether a candidate at time c replaces a stored time s.
	replaces func(c, s int64) bool
}

func earlier(c, s int64) bool { return c < s }

func laterOrEqual(c, s int64) bool { return c >= s }

// NewLongFirst returns a first-by-time aggregator over 8-byte integers.
func NewLongFirst(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindLong, order: order, sentinel: math.MaxInt64, replaces: earlier}
}

// NewFloatFirst returns a first-by-time aggregator over 4-byte floats.
func NewFloatFirst(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindFloat, order: order, sentinel: math.MaxInt64, replaces: earlier}
}

// NewDoubleFirst returns a first-by-time aggregator over 8-byte floats.
func NewDoubleFirst(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindDouble, order: order, sentinel: math.MaxInt64, replaces: earlier}
}

// NewLongLast returns a last-by-time aggregator over 8-byte integers.
func NewLongLast(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindLong, order: order, sentinel: math.MinInt64, replaces: laterOrEqual}
}

// NewFloatLast returns a last-by-time aggregator over 4-byte floats.
func NewFloatLast(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindFloat, order: order, sentinel: math.MinInt64, replaces: laterOrEqual}
}

// NewDoubleLast returns a last-by-time aggregator over 8-byte floats.
func NewDoubleLast(order binary.ByteOrder) BufferAggregator {
	return &timed{kind: kindDouble, order: order, sentinel: math.MinInt64, replaces: laterOrEqual}
}

func (a *timed) Size() int {
	return ValueOffset + a.kind.width()
}

func (a *timed) Init(buf []byte, pos int) {
	a.order.PutUint64(buf[pos+TimeOffset:], uint64(a.sentinel))
	buf[pos+NullOffset] = flagNull
	clear(buf[pos+ValueOffset : pos+a.Size()])
}

func (a *timed) storedTime(buf []byte, pos int) int64 {
	return int64(a.order.Uint64(buf[pos+TimeOffset:]))
}

func (a *timed) Aggregate(buf []byte, pos int, in Input) {
	if in.Time == a.sentinel {
		// The sentinel is reserved for "unset".
		return
	}
	if !a.replaces(in.Time, a.storedTime(buf, pos)) {
		return
	}
	a.order.PutUint64(buf[pos+TimeOffset:], uint64(in.Time))
	if in.Null {
		buf[pos+NullOffset] = flagNull
		clear(buf[pos+ValueOffset : pos+a.Size()])
		return
	}
	buf[pos+NullOffset] = flagNotNull
	a.kind.put(a.order, buf[pos+ValueOffset:], in)
}

func (a *timed) Fold(dst []byte, dstPos int, src []byte, srcPos int) {
	t := a.storedTime(src, srcPos)
	if t == a.sentinel {
		return
	}
	if !a.replaces(t, a.storedTime(dst, dstPos)) {
		return
	}
	copy(dst[dstPos:dstPos+a.Size()], src[srcPos:srcPos+a.Size()])
}

func (a *timed) Get(buf []byte, pos int) any {
	p := Pair{Time: a.storedTime(buf, pos)}
	if !a.IsNull(buf, pos) {
		p.Value = a.kind.value(a.order, buf[pos+ValueOffset:])
	}
	return p
}

func (a *timed) GetLong(buf []byte, pos int) int64 {
	return a.kind.long(a.order, buf[pos+ValueOffset:])
}

func (a *timed) GetFloat(buf []byte, pos int) float32 {
	return float32(a.kind.double(a.order, buf[pos+ValueOffset:]))
}

func (a *timed) GetDouble(buf []byte, pos int) float64 {
	return a.kind.double(a.order, buf[pos+ValueOffset:])
}

func (a *timed) IsNull(buf []byte, pos int) bool {
	return buf[pos+NullOffset] == flagNull
}
