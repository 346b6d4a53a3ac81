package colindex

import (
	"fmt"
	"slices"
	"sort"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean radius used to turn distances into angles.
const EarthRadiusMeters = 6371010.0

// Bound is a region on the sphere.
type Bound interface {
	// Region is a conservative s2 region used to compute cell coverings.
	Region() s2.Region
	// Contains reports whether the point lies inside the bound.
	Contains(lat, lon float64) bool
}

// RectBound is a latitude/longitude rectangle, inclusive on all edges.
type RectBound struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

func (b RectBound) rect() s2.Rect {
	return s2.RectFromLatLng(s2.LatLngFromDegrees(b.MinLat, b.MinLon)).
		AddPoint(s2.LatLngFromDegrees(b.MaxLat, b.MaxLon))
}

// Region implements Bound.
func (b RectBound) Region() s2.Region { return b.rect() }

// Contains implements Bound.
func (b RectBound) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// RadiusBound is a spherical cap around a center point.
type RadiusBound struct {
	Lat, Lon float64
	Meters   float64
}

func (b RadiusBound) cap() s2.Cap {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return s2.CapFromCenterAngle(center, s1.Angle(b.Meters/EarthRadiusMeters))
}

// Region implements Bound.
func (b RadiusBound) Region() s2.Region { return b.cap() }

// Contains implements Bound.
func (b RadiusBound) Contains(lat, lon float64) bool {
	return b.cap().ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}

// SpatialConfig tunes the cell coverings of spatial lookups.
type SpatialConfig struct {
	MinLevel int
	MaxLevel int
	LevelMod int
	MaxCells int
}

// DefaultSpatialConfig returns the covering settings used by NewSpatialColumnBuilder.
func DefaultSpatialConfig() SpatialConfig {
	return SpatialConfig{MinLevel: 4, MaxLevel: 16, LevelMod: 1, MaxCells: 8}
}

// SpatialColumnBuilder accumulates points row by row.
type SpatialColumnBuilder struct {
	cfg    SpatialConfig
	points [][2]float64
	nulls  *Bitmap
}

// NewSpatialColumnBuilder returns an empty builder with DefaultSpatialConfig.
func NewSpatialColumnBuilder() *SpatialColumnBuilder {
	return NewSpatialColumnBuilderWithConfig(DefaultSpatialConfig())
}

// NewSpatialColumnBuilderWithConfig returns an empty builder using cfg.
func NewSpatialColumnBuilderWithConfig(cfg SpatialConfig) *SpatialColumnBuilder {
	return &SpatialColumnBuilder{cfg: cfg, nulls: NewBitmap()}
}

// Add appends a point in degrees.
func (b *SpatialColumnBuilder) Add(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("colindex: point (%g, %g) out of range", lat, lon)
	}
	b.points = append(b.points, [2]float64{lat, lon})
	return nil
}

// AddNull appends a null.
func (b *SpatialColumnBuilder) AddNull() {
	b.nulls.Add(uint32(len(b.points)))
	b.points = append(b.points, [2]float64{})
}

type cellRow struct {
	cell s2.CellID
	row  uint32
}

// Build sorts the points by their leaf cell id.
func (b *SpatialColumnBuilder) Build() *SpatialColumn {
	c := &SpatialColumn{
		coverer: &s2.RegionCoverer{
			MinLevel: b.cfg.MinLevel,
			MaxLevel: b.cfg.MaxLevel,
			LevelMod: b.cfg.LevelMod,
			MaxCells: b.cfg.MaxCells,
		},
		points: b.points,
		nulls:  b.nulls.Clone(),
	}
	for row, p := range b.points {
		if b.nulls.Contains(uint32(row)) {
			continue
		}
		c.cells = append(c.cells, cellRow{
			cell: s2.CellIDFromLatLng(s2.LatLngFromDegrees(p[0], p[1])),
			row:  uint32(row),
		})
	}
	slices.SortFunc(c.cells, func(a, b cellRow) int {
		switch {
		case a.cell < b.cell:
			return -1
		case a.cell > b.cell:
			return 1
		default:
			return int(a.row) - int(b.row)
		}
	})
	return c
}

// SpatialColumn holds points bucketed by s2 cell id.
type SpatialColumn struct {
	coverer *s2.RegionCoverer
	points  [][2]float64
	nulls   *Bitmap
	cells   []cellRow
}

var _ Column = (*SpatialColumn)(nil)

// Len implements Column.
func (c *SpatialColumn) Len() int { return len(c.points) }

// Value implements Column. It returns [2]float64{lat, lon} or nil.
func (c *SpatialColumn) Value(row int) any {
	if c.nulls.Contains(uint32(row)) {
		return nil
	}
	return c.points[row]
}

// As implements Supplier.
func (c *SpatialColumn) As(kind Kind) (Capability, bool) {
	if c == nil {
		return nil, false
	}
	switch kind {
	case KindNullValue:
		return nullIndex{nulls: c.nulls}, true
	case KindSpatial:
		return spatialIndex{c: c}, true
	default:
		return nil, false
	}
}

type spatialIndex struct{ c *SpatialColumn }

func (spatialIndex) Kind() Kind { return KindSpatial }

// ForBound collects the points in every covering cell and keeps those inside b.
func (x spatialIndex) ForBound(b Bound) *Bitmap {
	out := NewBitmap()
	cells := x.c.cells
	for _, cell := range x.c.coverer.Covering(b.Region()) {
		lo, hi := cell.RangeMin(), cell.RangeMax()
		i := sort.Search(len(cells), func(i int) bool { return cells[i].cell >= lo })
		for ; i < len(cells) && cells[i].cell <= hi; i++ {
			p := x.c.points[cells[i].row]
			if b.Contains(p[0], p[1]) {
				out.Add(cells[i].row)
			}
		}
	}
	return out
}
