package aggregator

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlot(a BufferAggregator, pos int) []byte {
	buf := make([]byte, pos+a.Size()+pos)
	a.Init(buf, pos)
	return buf
}

func TestLongFirst_Init(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		a := NewLongFirst(order)
		assert.Equal(t, 17, a.Size())

		buf := newSlot(a, 3)
		p := a.Get(buf, 3).(Pair)
		assert.Equal(t, int64(math.MaxInt64), p.Time)
		assert.Nil(t, p.Value)
		assert.True(t, a.IsNull(buf, 3))
		assert.Equal(t, int64(math.MaxInt64), int64(order.Uint64(buf[3+TimeOffset:])))
		assert.Equal(t, byte(1), buf[3+NullOffset])
	}
}

func TestFloatFirst_Size(t *testing.T) {
	assert.Equal(t, 13, NewFloatFirst(binary.LittleEndian).Size())
	assert.Equal(t, 17, NewDoubleFirst(binary.LittleEndian).Size())
}

func TestLongFirst_EarliestWinsInAnyOrder(t *testing.T) {
	a := NewLongFirst(binary.LittleEndian)

	inputs := []Input{LongInput(10, 100), LongInput(20, 200)}
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		buf := newSlot(a, 0)
		for _, i := range order {
			a.Aggregate(buf, 0, inputs[i])
		}
		assert.Equal(t, Pair{Time: 10, Value: int64(100)}, a.Get(buf, 0))
	}
}

func TestLongFirst_EqualTimestampFirstProcessedWins(t *testing.T) {
	a := NewLongFirst(binary.LittleEndian)

	buf := newSlot(a, 0)
	a.Aggregate(buf, 0, LongInput(7, 1))
	a.Aggregate(buf, 0, LongInput(7, 2))
	assert.Equal(t, Pair{Time: 7, Value: int64(1)}, a.Get(buf, 0))

	buf = newSlot(a, 0)
	a.Aggregate(buf, 0, LongInput(7, 2))
	a.Aggregate(buf, 0, LongInput(7, 1))
	assert.Equal(t, Pair{Time: 7, Value: int64(2)}, a.Get(buf, 0))
}

func TestLongFirst_NullPropagation(t *testing.T) {
	a := NewLongFirst(binary.BigEndian)

	t.Run("earlier non-null replaces null", func(t *testing.T) {
		buf := newSlot(a, 0)
		a.Aggregate(buf, 0, NullInput(5))
		assert.True(t, a.IsNull(buf, 0))
		a.Aggregate(buf, 0, LongInput(3, 33))
		assert.Equal(t, Pair{Time: 3, Value: int64(33)}, a.Get(buf, 0))
		assert.False(t, a.IsNull(buf, 0))
	})

	t.Run("later non-null leaves null", func(t *testing.T) {
		buf := newSlot(a, 0)
		a.Aggregate(buf, 0, NullInput(5))
		a.Aggregate(buf, 0, LongInput(7, 77))
		assert.Equal(t, Pair{Time: 5, Value: nil}, a.Get(buf, 0))
		assert.True(t, a.IsNull(buf, 0))
	})

	t.Run("earlier null replaces value", func(t *testing.T) {
		buf := newSlot(a, 0)
		a.Aggregate(buf, 0, LongInput(5, 55))
		a.Aggregate(buf, 0, NullInput(1))
		assert.Equal(t, Pair{Time: 1, Value: nil}, a.Get(buf, 0))
		assert.Equal(t, int64(0), a.GetLong(buf, 0))
	})
}

func TestLongFirst_Projections(t *testing.T) {
	a := NewLongFirst(binary.LittleEndian)
	buf := newSlot(a, 0)
	a.Aggregate(buf, 0, LongInput(1, 42))

	assert.Equal(t, int64(42), a.GetLong(buf, 0))
	assert.Equal(t, float32(42), a.GetFloat(buf, 0))
	assert.Equal(t, float64(42), a.GetDouble(buf, 0))
}

func TestFloatFirst_NarrowsToFourBytes(t *testing.T) {
	a := NewFloatFirst(binary.LittleEndian)
	buf := newSlot(a, 0)
	a.Aggregate(buf, 0, DoubleInput(4, 1.5))
	a.Aggregate(buf, 0, DoubleInput(2, 2.25))

	assert.Equal(t, Pair{Time: 2, Value: float32(2.25)}, a.Get(buf, 0))
	assert.Equal(t, int64(2), a.GetLong(buf, 0))
	assert.InDelta(t, 2.25, a.GetDouble(buf, 0), 1e-9)
}

func TestFirst_FoldAcrossPartitions(t *testing.T) {
	a := NewDoubleFirst(binary.LittleEndian)
	rows := []Input{DoubleInput(30, 3), DoubleInput(10, 1), DoubleInput(20, 2)}

	aggregate := func(in ...Input) []byte {
		buf := newSlot(a, 0)
		for _, r := range in {
			a.Aggregate(buf, 0, r)
		}
		return buf
	}
	fold := func(parts ...[]byte) []byte {
		out := newSlot(a, 0)
		for _, p := range parts {
			a.Fold(out, 0, p, 0)
		}
		return out
	}

	want := Pair{Time: 10, Value: float64(1)}
	assert.Equal(t, want, a.Get(fold(aggregate(rows[0], rows[1]), aggregate(rows[2])), 0))
	assert.Equal(t, want, a.Get(fold(aggregate(rows[0]), aggregate(rows[1], rows[2])), 0))
	assert.Equal(t, want, a.Get(fold(aggregate(rows[2]), aggregate(rows[1]), aggregate(rows[0])), 0))
	assert.Equal(t, want, a.Get(aggregate(rows...), 0))

	// Folding an unset slot is a no-op.
	set := aggregate(rows...)
	a.Fold(set, 0, newSlot(a, 0), 0)
	assert.Equal(t, want, a.Get(set, 0))
}

func TestFirst_FoldIntoSlotAtOffset(t *testing.T) {
	a := NewLongFirst(binary.BigEndian)
	dst := newSlot(a, 5)
	src := newSlot(a, 11)
	a.Aggregate(src, 11, LongInput(9, 90))

	a.Fold(dst, 5, src, 11)
	assert.Equal(t, Pair{Time: 9, Value: int64(90)}, a.Get(dst, 5))
}

func TestLast_LaterWinsAndTiesOverwrite(t *testing.T) {
	a := NewLongLast(binary.LittleEndian)
	buf := newSlot(a, 0)
	assert.Equal(t, Pair{Time: math.MinInt64}, a.Get(buf, 0))

	a.Aggregate(buf, 0, LongInput(5, 1))
	a.Aggregate(buf, 0, LongInput(3, 2))
	assert.Equal(t, Pair{Time: 5, Value: int64(1)}, a.Get(buf, 0))

	a.Aggregate(buf, 0, LongInput(5, 3))
	assert.Equal(t, Pair{Time: 5, Value: int64(3)}, a.Get(buf, 0))
}

func TestFirst_SentinelTimeIsIgnored(t *testing.T) {
	a := NewLongFirst(binary.LittleEndian)
	buf := newSlot(a, 0)
	a.Aggregate(buf, 0, LongInput(math.MaxInt64, 1))
	assert.True(t, a.IsNull(buf, 0))
}

func TestNewInput(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want Input
	}{
		{"nil", nil, NullInput(1)},
		{"int", 3, LongInput(1, 3)},
		{"uint8", uint8(4), LongInput(1, 4)},
		{"float", 2.5, DoubleInput(1, 2.5)},
		{"numeric string", "12", LongInput(1, 12)},
		{"float string", " 1.25 ", DoubleInput(1, 1.25)},
		{"empty string", "", NullInput(1)},
		{"bool", true, LongInput(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInput(1, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewInput(1, "abc")
	assert.ErrorIs(t, err, ErrUnparseable)
	_, err = NewInput(1, []int{1})
	assert.ErrorIs(t, err, ErrUnparseable)
}
