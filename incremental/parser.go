package incremental

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

// Parser turns one raw input record into a Row.
// Failures are returned as *ParseError.
type Parser interface {
	Parse(raw []byte) (Row, error)
}

// Timestamp formats understood by JSONParser.
const (
	TimestampMillis = "millis"
	TimestampISO    = "iso"
	TimestampAuto   = "auto"
)

// JSONParser parses one JSON object per record.
type JSONParser struct {
	// TimestampColumn holds the event time. Defaults to "timestamp".
	TimestampColumn string
	// TimestampFormat is millis, iso (RFC 3339) or auto. Defaults to auto.
	TimestampFormat string
	// Dimensions lists dimension fields. When empty, every field that is
	// neither the timestamp nor a metric is a dimension.
	Dimensions []string
	// Metrics lists metric fields.
	Metrics []string
}

// maxFragment bounds the input excerpt kept in parse errors.
const maxFragment = 64

func fragment(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > maxFragment {
		return s[:maxFragment] + "..."
	}
	return s
}

// Parse implements Parser.
func (p JSONParser) Parse(raw []byte) (Row, error) {
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Row{}, &ParseError{Detail: "invalid JSON: " + fragment(raw), Err: err}
	}
	if obj == nil {
		return Row{}, &ParseError{Detail: "record is not an object: " + fragment(raw)}
	}

	tsCol := p.TimestampColumn
	if tsCol == "" {
		tsCol = "timestamp"
	}
	rawTs, ok := obj[tsCol]
	if !ok {
		return Row{}, &ParseError{Columns: []string{tsCol}, Detail: "missing timestamp"}
	}
	ts, err := parseTimestamp(p.TimestampFormat, rawTs)
	if err != nil {
		return Row{}, &ParseError{Columns: []string{tsCol}, Detail: fmt.Sprintf("unparseable timestamp %v", rawTs), Err: err}
	}

	row := Row{
		Timestamp:  ts,
		Dimensions: make(map[string]any),
		Metrics:    make(map[string]any, len(p.Metrics)),
	}
	for _, m := range p.Metrics {
		if v, ok := obj[m]; ok {
			row.Metrics[m] = v
		}
	}
	if len(p.Dimensions) > 0 {
		for _, d := range p.Dimensions {
			if v, ok := obj[d]; ok {
				row.Dimensions[d] = v
			}
		}
	} else {
		for k, v := range obj {
			if k != tsCol && !slices.Contains(p.Metrics, k) {
				row.Dimensions[k] = v
			}
		}
	}
	return row, nil
}

var errTimestamp = errors.New("unsupported timestamp")

func parseTimestamp(format string, v any) (int64, error) {
	switch format {
	case TimestampMillis:
		return millis(v)
	case TimestampISO:
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T", errTimestamp, v)
		}
		return iso(s)
	default:
		if ms, err := millis(v); err == nil {
			return ms, nil
		}
		if s, ok := v.(string); ok {
			return iso(s)
		}
		return 0, fmt.Errorf("%w: %T", errTimestamp, v)
	}
}

func millis(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		return int64(f), err
	case float64:
		return int64(x), nil
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return 0, fmt.Errorf("%w: %T", errTimestamp, v)
	}
}

func iso(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
