// Package segment builds immutable, indexed column views of an incremental index.
package segment

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/colindex"
	"github.com/hupe1980/rollup/incremental"
)

// TimeColumn is the name of the timestamp column.
const TimeColumn = incremental.TimeColumn

type options struct {
	spatial colindex.SpatialConfig
}

// Option configures Build.
type Option func(*options)

// WithSpatialConfig sets the cell covering parameters of spatial columns.
func WithSpatialConfig(cfg colindex.SpatialConfig) Option {
	return func(o *options) {
		o.spatial = cfg
	}
}

// Segment is a read-only columnar copy of an index at one point in time.
// Row i of every column belongs to the same aggregated row.
type Segment struct {
	rows    int
	names   []string
	columns map[string]colindex.Column
	minTime int64
	maxTime int64
}

// Build materializes the rows of ix into columns and indexes every column.
// Rows are ordered by time, then grouping key.
func Build(ix *incremental.Index, opts ...Option) (*Segment, error) {
	o := options{spatial: colindex.DefaultSpatialConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	rows := slices.Collect(ix.Rows())
	dims := ix.DimensionNames()
	schema := ix.Schema()
	layout := ix.Layout()

	s := &Segment{
		rows:    len(rows),
		columns: make(map[string]colindex.Column, 1+len(dims)+layout.Len()),
	}

	times := colindex.NewNumericColumnBuilder(colindex.Long)
	for i, r := range rows {
		times.AddLong(r.Timestamp)
		if i == 0 || r.Timestamp < s.minTime {
			s.minTime = r.Timestamp
		}
		if i == 0 || r.Timestamp > s.maxTime {
			s.maxTime = r.Timestamp
		}
	}
	s.add(TimeColumn, times.Build())

	for _, name := range dims {
		if _, clash := layout.Index(name); clash {
			return nil, fmt.Errorf("segment: dimension %q has the name of a metric", name)
		}
		col, err := buildDimension(name, schema.Dimensions.TypeOf(name), rows, o)
		if err != nil {
			return nil, err
		}
		s.add(name, col)
	}
	for i := range layout.Len() {
		spec := layout.Spec(i)
		s.add(spec.Name, buildMetric(spec, rows))
	}
	return s, nil
}

func (s *Segment) add(name string, col colindex.Column) {
	s.names = append(s.names, name)
	s.columns[name] = col
}

// NumRows returns the number of rows.
func (s *Segment) NumRows() int { return s.rows }

// ColumnNames returns the time column, then dimensions, then metrics.
func (s *Segment) ColumnNames() []string { return slices.Clone(s.names) }

// Column returns the named column.
func (s *Segment) Column(name string) (colindex.Column, bool) {
	c, ok := s.columns[name]
	return c, ok
}

// Supplier returns the capability supplier of the named column, or nil.
// The typed colindex accessors report false for a nil supplier.
func (s *Segment) Supplier(name string) colindex.Supplier {
	if c, ok := s.columns[name]; ok {
		return c
	}
	return nil
}

// Interval returns the smallest and largest row timestamp. Both are zero for
// an empty segment.
func (s *Segment) Interval() (int64, int64) { return s.minTime, s.maxTime }

// Row returns the values of row i keyed by column name.
func (s *Segment) Row(i int) map[string]any {
	out := make(map[string]any, len(s.names))
	for _, name := range s.names {
		out[name] = s.columns[name].Value(i)
	}
	return out
}

func buildDimension(name string, typ incremental.DimensionType, rows []incremental.MaterializedRow, o options) (colindex.Column, error) {
	values := make([]any, len(rows))
	multi := false
	for i, r := range rows {
		values[i], _ = r.Dimension(name)
		if _, ok := values[i].([]string); ok {
			multi = true
		}
	}

	switch {
	case typ == incremental.DimensionLong || typ == incremental.DimensionDouble:
		nt := colindex.Long
		if typ == incremental.DimensionDouble {
			nt = colindex.Double
		}
		b := colindex.NewNumericColumnBuilder(nt)
		for _, v := range values {
			switch x := v.(type) {
			case int64:
				b.AddLong(x)
			case float64:
				b.AddDouble(x)
			default:
				b.AddNull()
			}
		}
		return b.Build(), nil

	case typ == incremental.DimensionSpatial:
		b := colindex.NewSpatialColumnBuilderWithConfig(o.spatial)
		for _, v := range values {
			p, ok := v.(incremental.Point)
			if !ok {
				b.AddNull()
				continue
			}
			if err := b.Add(p.Lat, p.Lon); err != nil {
				return nil, fmt.Errorf("segment: dimension %q: %w", name, err)
			}
		}
		return b.Build(), nil

	case multi:
		b := colindex.NewArrayColumnBuilder()
		for _, v := range values {
			switch x := v.(type) {
			case []string:
				b.Add(x)
			case string:
				b.Add([]string{x})
			default:
				b.Add(nil)
			}
		}
		return b.Build(), nil

	default:
		b := colindex.NewStringColumnBuilder()
		for _, v := range values {
			if s, ok := v.(string); ok {
				b.Add(s)
			} else {
				b.AddNull()
			}
		}
		return b.Build(), nil
	}
}

// metricType maps an aggregator type to the column type of its values.
func metricType(t string) colindex.NumericType {
	if t == aggregator.TypeCount || strings.HasPrefix(t, "long") {
		return colindex.Long
	}
	return colindex.Double
}

func buildMetric(spec aggregator.Spec, rows []incremental.MaterializedRow) colindex.Column {
	b := colindex.NewNumericColumnBuilder(metricType(spec.Type))
	for _, r := range rows {
		v := r.Metrics[spec.Name]
		if p, ok := v.(aggregator.Pair); ok {
			v = p.Value
		}
		switch x := v.(type) {
		case int64:
			b.AddLong(x)
		case float64:
			b.AddDouble(x)
		case float32:
			b.AddDouble(float64(x))
		default:
			b.AddNull()
		}
	}
	return b.Build()
}
