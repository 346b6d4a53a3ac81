package incremental

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Dimension is one normalized dimension value of a row.
//
// Value is nil, string, []string (multi-value), int64, float64 or
// Point (spatial), depending on the dimension type.
type Dimension struct {
	Name  string
	Value any
}

// Point is a spatial dimension value in degrees.
type Point struct {
	Lat float64
	Lon float64
}

func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

var errDimensionValue = errors.New("unsupported dimension value")

// dimensions extracts and normalizes the grouping dimensions of a row.
// Failures are reported per column.
func (d DimensionsSpec) dimensions(raw map[string]any) ([]Dimension, []string, error) {
	var out []Dimension
	if d.Discovery() {
		out = make([]Dimension, 0, len(raw))
		for name, v := range raw {
			if name == TimeColumn || slices.Contains(d.Exclusions, name) {
				continue
			}
			out = append(out, Dimension{Name: name, Value: v})
		}
		slices.SortFunc(out, func(a, b Dimension) int { return strings.Compare(a.Name, b.Name) })
	} else {
		out = make([]Dimension, len(d.Dimensions))
		for i, ds := range d.Dimensions {
			out[i] = Dimension{Name: ds.Name, Value: raw[ds.Name]}
		}
	}

	var bad []string
	var errs []error
	for i := range out {
		v, err := normalize(d.TypeOf(out[i].Name), out[i].Value)
		if err != nil {
			bad = append(bad, out[i].Name)
			errs = append(errs, fmt.Errorf("%s: %w", out[i].Name, err))
			continue
		}
		out[i].Value = v
	}
	if len(bad) > 0 {
		return nil, bad, errors.Join(errs...)
	}
	return out, nil, nil
}

func normalize(t DimensionType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case DimensionLong:
		return toLong(v)
	case DimensionDouble:
		return toDouble(v)
	case DimensionSpatial:
		return toPoint(v)
	default:
		return toStrings(v)
	}
}

func toStrings(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
		return slices.Clone(x), nil
	case []any:
		if len(x) == 0 {
			return nil, nil
		}
		out := make([]string, len(x))
		for i, e := range x {
			if e == nil {
				continue
			}
			s, err := toString(e)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	default:
		return toString(v)
	}
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("%w: %T", errDimensionValue, v)
	}
}

func toLong(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return int64(f), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return nil, fmt.Errorf("%w: %T", errDimensionValue, v)
	}
}

func toDouble(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return nil, fmt.Errorf("%w: %T", errDimensionValue, v)
	}
}

// toPoint accepts "lat,lon", Point, [2]float64 and two-element slices.
func toPoint(v any) (any, error) {
	var coords []any
	switch x := v.(type) {
	case Point:
		return x, nil
	case [2]float64:
		return Point{Lat: x[0], Lon: x[1]}, nil
	case []float64:
		for _, f := range x {
			coords = append(coords, f)
		}
	case []any:
		coords = x
	case string:
		for _, part := range strings.Split(x, ",") {
			coords = append(coords, strings.TrimSpace(part))
		}
	default:
		return nil, fmt.Errorf("%w: %T", errDimensionValue, v)
	}
	if len(coords) != 2 {
		return nil, fmt.Errorf("spatial value needs 2 coordinates, got %d", len(coords))
	}
	lat, err := toDouble(coords[0])
	if err != nil || lat == nil {
		return nil, fmt.Errorf("invalid latitude %v", coords[0])
	}
	lon, err := toDouble(coords[1])
	if err != nil || lon == nil {
		return nil, fmt.Errorf("invalid longitude %v", coords[1])
	}
	p := Point{Lat: lat.(float64), Lon: lon.(float64)}
	if math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180 {
		return nil, fmt.Errorf("coordinates out of range: %s", p)
	}
	return p, nil
}

// Value tags of the binary dimension encoding.
const (
	tagNull byte = iota
	tagString
	tagStrings
	tagLong
	tagDouble
	tagPoint
)

var errCorruptDims = errors.New("corrupt dimension encoding")

// appendDims appends the binary encoding of dims to dst.
func appendDims(dst []byte, dims []Dimension) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(dims)))
	for _, d := range dims {
		dst = appendString(dst, d.Name)
		dst = appendValue(dst, d.Value)
	}
	return dst
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendValue(dst []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(dst, tagNull)
	case string:
		return appendString(append(dst, tagString), x)
	case []string:
		dst = binary.AppendUvarint(append(dst, tagStrings), uint64(len(x)))
		for _, s := range x {
			dst = appendString(dst, s)
		}
		return dst
	case int64:
		return binary.AppendVarint(append(dst, tagLong), x)
	case float64:
		return binary.BigEndian.AppendUint64(append(dst, tagDouble), math.Float64bits(x))
	case Point:
		dst = binary.BigEndian.AppendUint64(append(dst, tagPoint), math.Float64bits(x.Lat))
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(x.Lon))
	default:
		// normalize never produces other types.
		panic(fmt.Sprintf("incremental: unexpected dimension value %T", v))
	}
}

type dimReader struct {
	b   []byte
	err error
}

func (r *dimReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.b)
	if n <= 0 {
		r.err = errCorruptDims
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *dimReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.b)) {
		r.err = errCorruptDims
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *dimReader) string() string {
	return string(r.bytes(r.uvarint()))
}

func (r *dimReader) value() any {
	tag := r.bytes(1)
	if r.err != nil {
		return nil
	}
	switch tag[0] {
	case tagNull:
		return nil
	case tagString:
		return r.string()
	case tagStrings:
		n := r.uvarint()
		if n > uint64(len(r.b)) {
			r.err = errCorruptDims
			return nil
		}
		out := make([]string, n)
		for i := range out {
			out[i] = r.string()
		}
		return out
	case tagLong:
		if r.err != nil {
			return nil
		}
		v, n := binary.Varint(r.b)
		if n <= 0 {
			r.err = errCorruptDims
			return nil
		}
		r.b = r.b[n:]
		return v
	case tagDouble:
		b := r.bytes(8)
		if r.err != nil {
			return nil
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case tagPoint:
		b := r.bytes(16)
		if r.err != nil {
			return nil
		}
		return Point{
			Lat: math.Float64frombits(binary.BigEndian.Uint64(b)),
			Lon: math.Float64frombits(binary.BigEndian.Uint64(b[8:])),
		}
	default:
		r.err = errCorruptDims
		return nil
	}
}

// readDims decodes an appendDims encoding.
func readDims(b []byte) ([]Dimension, error) {
	r := &dimReader{b: b}
	n := r.uvarint()
	if n > uint64(len(b)) {
		return nil, errCorruptDims
	}
	dims := make([]Dimension, 0, n)
	for range n {
		name := r.string()
		v := r.value()
		if r.err != nil {
			return nil, r.err
		}
		dims = append(dims, Dimension{Name: name, Value: v})
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, errCorruptDims
	}
	return dims, nil
}

// dimsSize estimates the heap footprint of dims for memory accounting.
func dimsSize(dims []Dimension) int64 {
	size := int64(len(dims)) * 40
	for _, d := range dims {
		size += int64(len(d.Name))
		switch x := d.Value.(type) {
		case string:
			size += int64(len(x))
		case []string:
			size += int64(len(x)) * 16
			for _, s := range x {
				size += int64(len(s))
			}
		}
	}
	return size
}
