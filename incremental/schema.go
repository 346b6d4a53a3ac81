package incremental

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/granularity"
)

// TimeColumn is the name of the implicit timestamp column.
const TimeColumn = "__time"

// DimensionType selects how a dimension value is normalized.
type DimensionType string

// Dimension types.
const (
	DimensionString  DimensionType = "string"
	DimensionLong    DimensionType = "long"
	DimensionDouble  DimensionType = "double"
	DimensionSpatial DimensionType = "spatial"
)

// DimensionSchema declares one dimension.
type DimensionSchema struct {
	Name string        `json:"name"`
	Type DimensionType `json:"type,omitempty"`
}

// DimensionsSpec lists the grouping dimensions.
//
// With no declared dimensions the index runs in discovery mode: every row
// dimension not listed in Exclusions is a string dimension, and dimensions are
// ordered by name.
type DimensionsSpec struct {
	Dimensions []DimensionSchema `json:"dimensions,omitempty"`
	Exclusions []string          `json:"exclusions,omitempty"`
}

// StringDimensions declares string dimensions in the given order.
func StringDimensions(names ...string) DimensionsSpec {
	spec := DimensionsSpec{Dimensions: make([]DimensionSchema, len(names))}
	for i, n := range names {
		spec.Dimensions[i] = DimensionSchema{Name: n, Type: DimensionString}
	}
	return spec
}

// Discovery reports whether dimensions are discovered from rows.
func (d DimensionsSpec) Discovery() bool {
	return len(d.Dimensions) == 0
}

// Lookup returns the schema of a declared dimension.
func (d DimensionsSpec) Lookup(name string) (DimensionSchema, bool) {
	for _, ds := range d.Dimensions {
		if ds.Name == name {
			return ds, true
		}
	}
	return DimensionSchema{}, false
}

// TypeOf returns the type of name. Undeclared dimensions are strings.
func (d DimensionsSpec) TypeOf(name string) DimensionType {
	if ds, ok := d.Lookup(name); ok && ds.Type != "" {
		return ds.Type
	}
	return DimensionString
}

func (d DimensionsSpec) validate() error {
	seen := make(map[string]struct{}, len(d.Dimensions))
	for _, ds := range d.Dimensions {
		if ds.Name == "" || ds.Name == TimeColumn {
			return fmt.Errorf("invalid dimension name %q", ds.Name)
		}
		if _, dup := seen[ds.Name]; dup {
			return fmt.Errorf("duplicate dimension %q", ds.Name)
		}
		seen[ds.Name] = struct{}{}
		switch ds.Type {
		case "", DimensionString, DimensionLong, DimensionDouble, DimensionSpatial:
		default:
			return fmt.Errorf("dimension %q: unknown type %q", ds.Name, ds.Type)
		}
	}
	return nil
}

// Schema describes what an index stores.
type Schema struct {
	// Granularity truncates timestamps before grouping. Defaults to granularity.None.
	Granularity granularity.Granularity
	Dimensions  DimensionsSpec
	Metrics     []aggregator.Spec
	// Rollup merges rows with equal truncated time and dimensions. When false
	// every added row is kept as its own row.
	Rollup bool
}

// ErrInvalidSchema is returned by New for unusable schemas.
var ErrInvalidSchema = errors.New("invalid schema")

func (s Schema) validate() error {
	if err := s.Dimensions.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	for _, m := range s.Metrics {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
		if slices.ContainsFunc(s.Dimensions.Dimensions, func(d DimensionSchema) bool { return d.Name == m.Name }) {
			return fmt.Errorf("%w: metric %q shadows a dimension", ErrInvalidSchema, m.Name)
		}
	}
	return nil
}
