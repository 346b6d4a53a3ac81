package aggregator

import (
	"encoding/binary"
	"math"
)

// accumulator is a single 8-byte running value combined with an associative operator.
// Null inputs are skipped, except by count which counts rows.
type accumulator struct {
	kind      numericKind
	order     binary.ByteOrder
	initLong  int64
	initFloat float64
	longOp    func(a, b int64) int64
	doubleOp  func(a, b float64) float64
	counts    bool
}

func addLong(a, b int64) int64       { return a + b }
func addDouble(a, b float64) float64 { return a + b }
func minLong(a, b int64) int64       { return min(a, b) }
func maxLong(a, b int64) int64       { return max(a, b) }

// NewLongSum returns an aggregator summing integer inputs.
func NewLongSum(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindLong, order: order, longOp: addLong}
}

// NewDoubleSum returns an aggregator summing floating point inputs.
func NewDoubleSum(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindDouble, order: order, doubleOp: addDouble}
}

// NewLongMin returns an aggregator keeping the smallest integer input.
func NewLongMin(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindLong, order: order, initLong: math.MaxInt64, longOp: minLong}
}

// NewLongMax returns an aggregator keeping the largest integer input.
func NewLongMax(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindLong, order: order, initLong: math.MinInt64, longOp: maxLong}
}

// NewDoubleMin returns an aggregator keeping the smallest floating point input.
func NewDoubleMin(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindDouble, order: order, initFloat: math.Inf(1), doubleOp: math.Min}
}

// NewDoubleMax returns an aggregator keeping the largest floating point input.
func NewDoubleMax(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindDouble, order: order, initFloat: math.Inf(-1), doubleOp: math.Max}
}

// NewCount returns an aggregator counting aggregated rows. Folding adds counts.
func NewCount(order binary.ByteOrder) BufferAggregator {
	return &accumulator{kind: kindLong, order: order, longOp: addLong, counts: true}
}

func (a *accumulator) Size() int { return 8 }

func (a *accumulator) Init(buf []byte, pos int) {
	if a.kind == kindDouble {
		a.order.PutUint64(buf[pos:], math.Float64bits(a.initFloat))
		return
	}
	a.order.PutUint64(buf[pos:], uint64(a.initLong))
}

func (a *accumulator) Aggregate(buf []byte, pos int, in Input) {
	if a.counts {
		a.combineLong(buf, pos, 1)
		return
	}
	if in.Null {
		return
	}
	if a.kind == kindDouble {
		a.combineDouble(buf, pos, in.Double)
		return
	}
	a.combineLong(buf, pos, in.Long)
}

func (a *accumulator) Fold(dst []byte, dstPos int, src []byte, srcPos int) {
	if a.kind == kindDouble {
		a.combineDouble(dst, dstPos, math.Float64frombits(a.order.Uint64(src[srcPos:])))
		return
	}
	a.combineLong(dst, dstPos, int64(a.order.Uint64(src[srcPos:])))
}

func (a *accumulator) combineLong(buf []byte, pos int, v int64) {
	cur := int64(a.order.Uint64(buf[pos:]))
	a.order.PutUint64(buf[pos:], uint64(a.longOp(cur, v)))
}

func (a *accumulator) combineDouble(buf []byte, pos int, v float64) {
	cur := math.Float64frombits(a.order.Uint64(buf[pos:]))
	a.order.PutUint64(buf[pos:], math.Float64bits(a.doubleOp(cur, v)))
}

func (a *accumulator) Get(buf []byte, pos int) any {
	return a.kind.value(a.order, buf[pos:])
}

func (a *accumulator) GetLong(buf []byte, pos int) int64 {
	return a.kind.long(a.order, buf[pos:])
}

func (a *accumulator) GetFloat(buf []byte, pos int) float32 {
	return float32(a.kind.double(a.order, buf[pos:]))
}

func (a *accumulator) GetDouble(buf []byte, pos int) float64 {
	return a.kind.double(a.order, buf[pos:])
}

func (a *accumulator) IsNull([]byte, int) bool { return false }
