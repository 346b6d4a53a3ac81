package filter

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/rollup/colindex"
)

// Equals matches rows whose value equals Value. A nil Value matches nulls.
// On multi-value columns a row matches when any element equals Value.
type Equals struct {
	Column string
	Value  any
}

func (f Equals) column() string { return f.Column }

func (f Equals) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.ValueIndexOf(col); ok {
		return idx.ForValue(f.Value), true
	}
	if f.Value == nil {
		if idx, ok := colindex.NullValueIndexOf(col); ok {
			return idx.Nulls(), true
		}
	}
	if s, isString := f.Value.(string); isString {
		if idx, ok := colindex.ArrayElementIndexOf(col); ok {
			return idx.ContainingElement(s), true
		}
	}
	return nil, false
}

func (f Equals) matches(sel Selector, row int) bool {
	return equal(value(sel, f.Column, row), f.Value)
}

func (f Equals) String() string { return fmt.Sprintf("%s = %v", f.Column, f.Value) }

// In matches rows whose value equals any of Values.
type In struct {
	Column string
	Values []any
}

func (f In) column() string { return f.Column }

func (f In) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.ValueSetIndexOf(col); ok {
		return idx.ForValues(f.Values), true
	}
	idx, ok := colindex.ArrayElementIndexOf(col)
	if !ok {
		return nil, false
	}
	strs := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		s, isString := v.(string)
		if !isString {
			return nil, false
		}
		strs = append(strs, s)
	}
	return idx.ContainingAny(strs), true
}

func (f In) matches(sel Selector, row int) bool {
	v := value(sel, f.Column, row)
	return slices.ContainsFunc(f.Values, func(want any) bool { return equal(v, want) })
}

func (f In) String() string { return fmt.Sprintf("%s in %v", f.Column, f.Values) }

// IsNull matches rows without a value.
type IsNull struct {
	Column string
}

func (f IsNull) column() string { return f.Column }

func (f IsNull) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.NullValueIndexOf(col); ok {
		return idx.Nulls(), true
	}
	return nil, false
}

func (f IsNull) matches(sel Selector, row int) bool { return value(sel, f.Column, row) == nil }

func (f IsNull) String() string { return f.Column + " is null" }

// NumericBound matches rows whose numeric value lies in Range. Numeric
// strings are compared by their parsed value. Nulls never match.
type NumericBound struct {
	Column string
	Range  colindex.NumericRange
}

func (f NumericBound) column() string { return f.Column }

func (f NumericBound) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.NumericRangeIndexOf(col); ok {
		return idx.ForRange(f.Range), true
	}
	return nil, false
}

func (f NumericBound) matches(sel Selector, row int) bool {
	return anyElement(value(sel, f.Column, row), func(v any) bool {
		if i, ok := v.(int64); ok {
			return f.Range.ContainsLong(i)
		}
		x, ok := colindex.ToFloat(v)
		return ok && f.Range.Contains(x)
	})
}

func (f NumericBound) String() string {
	lo, hi := "[", "]"
	if f.Range.LowerStrict {
		lo = "("
	}
	if f.Range.UpperStrict {
		hi = ")"
	}
	return fmt.Sprintf("%s in %s%g, %g%s", f.Column, lo, f.Range.Lower, f.Range.Upper, hi)
}

// LexicographicBound matches rows whose string value lies in Range.
// Nulls never match.
type LexicographicBound struct {
	Column string
	Range  colindex.StringRange
}

func (f LexicographicBound) column() string { return f.Column }

func (f LexicographicBound) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.LexicographicRangeIndexOf(col); ok {
		return idx.ForRange(f.Range), true
	}
	return nil, false
}

func (f LexicographicBound) matches(sel Selector, row int) bool {
	return anyElement(value(sel, f.Column, row), func(v any) bool {
		s, ok := v.(string)
		return ok && inStringRange(f.Range, s)
	})
}

func (f LexicographicBound) String() string {
	lo, hi := "-inf", "+inf"
	if f.Range.Lower != nil {
		lo = strconv.Quote(*f.Range.Lower)
	}
	if f.Range.Upper != nil {
		hi = strconv.Quote(*f.Range.Upper)
	}
	return fmt.Sprintf("%s between %s and %s", f.Column, lo, hi)
}

func inStringRange(r colindex.StringRange, s string) bool {
	if r.Lower != nil {
		c := strings.Compare(s, *r.Lower)
		if c < 0 || (c == 0 && r.LowerStrict) {
			return false
		}
	}
	if r.Upper != nil {
		c := strings.Compare(s, *r.Upper)
		if c > 0 || (c == 0 && r.UpperStrict) {
			return false
		}
	}
	return true
}

// Predicate matches rows whose value satisfies Match. Match receives nil for
// nulls and each element of a multi-value row.
type Predicate struct {
	Column string
	Name   string
	Match  func(v any) bool
}

// Like returns a predicate for an SQL LIKE pattern, where % matches any run
// of characters and _ matches one character. Numbers are matched in their
// decimal form.
func Like(column, pattern string) Predicate {
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	p := Regex(column, regexp.MustCompile(sb.String()))
	p.Name = "like " + strconv.Quote(pattern)
	return p
}

// Regex returns a predicate that matches values containing a match of re.
func Regex(column string, re *regexp.Regexp) Predicate {
	return Predicate{
		Column: column,
		Name:   "regex " + strconv.Quote(re.String()),
		Match: func(v any) bool {
			s, ok := text(v)
			return ok && re.MatchString(s)
		},
	}
}

func (f Predicate) column() string { return f.Column }

func (f Predicate) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.PredicateIndexOf(col); ok {
		return idx.ForPredicate(f.Match), true
	}
	return nil, false
}

func (f Predicate) matches(sel Selector, row int) bool {
	return anyElement(value(sel, f.Column, row), f.Match)
}

func (f Predicate) String() string {
	name := f.Name
	if name == "" {
		name = "predicate"
	}
	return f.Column + " " + name
}

// ArrayContains matches rows of a multi-value column holding Value. On
// single-value columns it behaves like Equals.
type ArrayContains struct {
	Column string
	Value  string
}

func (f ArrayContains) column() string { return f.Column }

func (f ArrayContains) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.ArrayElementIndexOf(col); ok {
		return idx.ContainingElement(f.Value), true
	}
	if idx, ok := colindex.ValueIndexOf(col); ok {
		return idx.ForValue(f.Value), true
	}
	return nil, false
}

func (f ArrayContains) matches(sel Selector, row int) bool {
	switch v := value(sel, f.Column, row).(type) {
	case []string:
		return slices.Contains(v, f.Value)
	case string:
		return v == f.Value
	default:
		return false
	}
}

func (f ArrayContains) String() string { return fmt.Sprintf("%s contains %q", f.Column, f.Value) }

// Spatial matches rows whose point lies inside Bound. Values are read as
// [2]float64{lat, lon}, []float64 or a "lat,lon" string.
type Spatial struct {
	Column string
	Bound  colindex.Bound
}

func (f Spatial) column() string { return f.Column }

func (f Spatial) index(col colindex.Column) (*colindex.Bitmap, bool) {
	if idx, ok := colindex.SpatialIndexOf(col); ok {
		return idx.ForBound(f.Bound), true
	}
	return nil, false
}

func (f Spatial) matches(sel Selector, row int) bool {
	p, ok := point(value(sel, f.Column, row))
	return ok && f.Bound.Contains(p[0], p[1])
}

func (f Spatial) String() string { return fmt.Sprintf("%s within %+v", f.Column, f.Bound) }

func point(v any) ([2]float64, bool) {
	switch x := v.(type) {
	case [2]float64:
		return x, true
	case []float64:
		if len(x) == 2 {
			return [2]float64{x[0], x[1]}, true
		}
	case string:
		lat, lon, found := strings.Cut(x, ",")
		if !found {
			return [2]float64{}, false
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err1 == nil && err2 == nil {
			return [2]float64{la, lo}, true
		}
	}
	return [2]float64{}, false
}

// equal compares a cell with a filter value the way the column indexes do:
// strings by content, numbers by value, and multi-value rows by element.
func equal(cell, want any) bool {
	switch c := cell.(type) {
	case nil:
		return want == nil
	case string:
		w, ok := want.(string)
		return ok && c == w
	case []string:
		w, ok := want.(string)
		return ok && slices.Contains(c, w)
	case int64:
		if w, ok := colindex.ToLong(want); ok {
			return c == w
		}
		wf, ok := colindex.ToFloat(want)
		return ok && wf == math.Trunc(wf) && wf >= -(1<<63) && wf < 1<<63 && c == int64(wf)
	case float64:
		wf, ok := colindex.ToFloat(want)
		return ok && c == wf
	default:
		return false
	}
}

// anyElement applies match to a scalar cell, or to each element of a
// multi-value cell.
func anyElement(cell any, match func(any) bool) bool {
	if vs, ok := cell.([]string); ok {
		return slices.ContainsFunc(vs, func(s string) bool { return match(s) })
	}
	return match(cell)
}

func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return "", false
	}
}
