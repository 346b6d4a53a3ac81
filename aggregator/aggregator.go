package aggregator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Fixed offsets of the first/last-by-time slot layout.
const (
	TimeOffset  = 0
	NullOffset  = 8
	ValueOffset = 9
)

const (
	flagNotNull byte = 0
	flagNull    byte = 1
)

var (
	// ErrUnparseable is returned by NewInput for values that are not numeric.
	ErrUnparseable = errors.New("unparseable numeric value")

	// ErrDuplicateName is returned when two specs in a layout share a name.
	ErrDuplicateName = errors.New("duplicate aggregator name")

	// ErrUnknownByteOrder is returned by ParseByteOrder.
	ErrUnknownByteOrder = errors.New("unknown byte order")
)

// UnknownTypeError is returned when a Spec names an aggregator type that does not exist.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown aggregator type %q", e.Type)
}

// BufferAggregator aggregates into a fixed-width slot at buf[pos:pos+Size()].
type BufferAggregator interface {
	// Size returns the slot width in bytes.
	Size() int

	// Init writes the unset state. It must happen before any other call on the slot.
	Init(buf []byte, pos int)

	// Aggregate merges one input value into the slot.
	Aggregate(buf []byte, pos int, in Input)

	// Fold merges the partial state stored at src[srcPos:] into dst[dstPos:].
	Fold(dst []byte, dstPos int, src []byte, srcPos int)

	// Get decodes the slot. First/last aggregators return a Pair.
	Get(buf []byte, pos int) any

	// GetLong, GetFloat and GetDouble project the stored value without checking the null flag.
	GetLong(buf []byte, pos int) int64
	GetFloat(buf []byte, pos int) float32
	GetDouble(buf []byte, pos int) float64

	// IsNull reports whether the slot holds no value.
	IsNull(buf []byte, pos int) bool
}

// Pair is the decoded state of a first/last-by-time slot.
// Value is nil when the slot's null flag is set.
type Pair struct {
	Time  int64
	Value any
}

// numericKind is the native width of a stored value.
type numericKind uint8

const (
	kindLong numericKind = iota
	kindFloat
	kindDouble
)

func (k numericKind) width() int {
	if k == kindFloat {
		return 4
	}
	return 8
}

func (k numericKind) put(order binary.ByteOrder, b []byte, in Input) {
	switch k {
	case kindLong:
		order.PutUint64(b, uint64(in.Long))
	case kindFloat:
		order.PutUint32(b, math.Float32bits(float32(in.Double)))
	case kindDouble:
		order.PutUint64(b, math.Float64bits(in.Double))
	}
}

func (k numericKind) long(order binary.ByteOrder, b []byte) int64 {
	switch k {
	case kindFloat:
		return int64(math.Float32frombits(order.Uint32(b)))
	case kindDouble:
		return int64(math.Float64frombits(order.Uint64(b)))
	default:
		return int64(order.Uint64(b))
	}
}

func (k numericKind) double(order binary.ByteOrder, b []byte) float64 {
	switch k {
	case kindFloat:
		return float64(math.Float32frombits(order.Uint32(b)))
	case kindDouble:
		return math.Float64frombits(order.Uint64(b))
	default:
		return float64(int64(order.Uint64(b)))
	}
}

func (k numericKind) value(order binary.ByteOrder, b []byte) any {
	switch k {
	case kindFloat:
		return math.Float32frombits(order.Uint32(b))
	case kindDouble:
		return math.Float64frombits(order.Uint64(b))
	default:
		return int64(order.Uint64(b))
	}
}

// ByteOrderName returns the stable name of a byte order ("little" or "big").
func ByteOrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}

// ParseByteOrder is the inverse of ByteOrderName.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "little", "":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownByteOrder, name)
	}
}
