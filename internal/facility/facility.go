// Package facility defines the records the coverage engine consumes: service
// facilities, their categories and geometries, and the project boundary.
package facility

import (
	"strings"
	"time"

	"github.com/sells-group/coverage-cli/internal/spatial"
)

// Capacity bounds.
const (
	MinCapacity     = 1
	MaxCapacity     = 100
	DefaultCapacity = 50
)

// ClampCapacity bounds c to [MinCapacity, MaxCapacity].
func ClampCapacity(c int) int {
	if c < MinCapacity {
		return MinCapacity
	}
	if c > MaxCapacity {
		return MaxCapacity
	}
	return c
}

// Facility is a single service point or zone.
type Facility struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Capacity int      `json:"capacity"`
	Geometry Geometry `json:"geometry"`
}

// IsPoint reports whether the facility participates in range-based coverage.
func (f Facility) IsPoint() bool { return f.Geometry.Kind() == GeometryPoint }

// Location returns the coordinate of a Point facility.
func (f Facility) Location() (spatial.LatLon, bool) { return f.Geometry.Point() }

// Normalize trims the name and clamps capacity into range. A zero capacity
// is treated as unset and becomes DefaultCapacity.
func (f *Facility) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = "Unknown Facility"
	}
	if f.Capacity == 0 {
		f.Capacity = DefaultCapacity
	}
	f.Capacity = ClampCapacity(f.Capacity)
}

// Validate checks the record invariants.
func (f Facility) Validate() error {
	if f.Category.IsZero() {
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if f.Category.String() == BoundaryCategory {
		return &ValidationError{Field: "category", Reason: "project_boundary is reserved"}
	}
	if f.Capacity < MinCapacity || f.Capacity > MaxCapacity {
		return &ValidationError{Field: "capacity", Reason: "must be in [1, 100]"}
	}
	return f.Geometry.Validate()
}

// Split partitions facilities into Point facilities and Polygon zones.
// Records with no geometry are dropped.
func Split(all []Facility) (points, zones []Facility) {
	for _, f := range all {
		switch f.Geometry.Kind() {
		case GeometryPoint:
			points = append(points, f)
		case GeometryPolygon:
			zones = append(zones, f)
		}
	}
	return points, zones
}

// Boundary is the project boundary: a polygon defining the analysis extent.
type Boundary struct {
	Geometry  Geometry  `json:"geometry"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid reports whether the boundary is a polygon with at least three
// distinct, in-range vertices.
func (b *Boundary) Valid() bool {
	if b == nil || b.Geometry.Kind() != GeometryPolygon {
		return false
	}
	return b.Geometry.Validate() == nil
}

// Snapshot is a consistent view of the facility store at one version.
type Snapshot struct {
	Version    int64
	Facilities []Facility
	Boundary   *Boundary
}
