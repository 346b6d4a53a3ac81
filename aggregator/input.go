package aggregator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Input is one candidate value for an aggregator.
// Long and Double carry the same value in both widths so that every slot kind
// can store it without another conversion.
type Input struct {
	Time   int64
	Long   int64
	Double float64
	Null   bool
}

// NullInput returns a null candidate at time t.
func NullInput(t int64) Input {
	return Input{Time: t, Null: true}
}

// LongInput returns a non-null integer candidate.
func LongInput(t, v int64) Input {
	return Input{Time: t, Long: v, Double: float64(v)}
}

// DoubleInput returns a non-null floating point candidate.
func DoubleInput(t int64, v float64) Input {
	return Input{Time: t, Long: truncate(v), Double: v}
}

// NewInput converts a raw metric value into an Input.
//
// Supported: all Go integer and float kinds, json.Number, numeric strings and nil.
// nil and the empty string are null.
func NewInput(t int64, v any) (Input, error) {
	switch x := v.(type) {
	case nil:
		return NullInput(t), nil
	case int:
		return LongInput(t, int64(x)), nil
	case int8:
		return LongInput(t, int64(x)), nil
	case int16:
		return LongInput(t, int64(x)), nil
	case int32:
		return LongInput(t, int64(x)), nil
	case int64:
		return LongInput(t, x), nil
	case uint:
		return LongInput(t, int64(x)), nil
	case uint8:
		return LongInput(t, int64(x)), nil
	case uint16:
		return LongInput(t, int64(x)), nil
	case uint32:
		return LongInput(t, int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return DoubleInput(t, float64(x)), nil
		}
		return LongInput(t, int64(x)), nil
	case float32:
		return DoubleInput(t, float64(x)), nil
	case float64:
		return DoubleInput(t, x), nil
	case bool:
		if x {
			return LongInput(t, 1), nil
		}
		return LongInput(t, 0), nil
	case json.Number:
		return parseNumeric(t, string(x))
	case string:
		return parseNumeric(t, x)
	default:
		return Input{}, fmt.Errorf("%w: %T", ErrUnparseable, v)
	}
}

func parseNumeric(t int64, s string) (Input, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullInput(t), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return LongInput(t, n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Input{}, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}
	return DoubleInput(t, f), nil
}

func truncate(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}
