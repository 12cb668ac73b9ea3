// Package coverage builds per-category coverage regions by unioning the
// range footprints of Point facilities, and caches the results keyed by the
// facility-set version and density.
package coverage

import (
	"sort"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// CategoryRegion is the merged coverage of one category.
//
// Parts normally holds a single merged region. When the union could not be
// completed, Fallback is set and Parts holds one region per footprint; the
// parts may overlap, so AreaKM2 is then an upper bound.
type CategoryRegion struct {
	Category      facility.Category
	Parts         []spatial.Region
	AreaKM2       float64
	FacilityCount int
	Fallback      bool
}

// Contains reports whether p is inside or on the edge of any part.
func (r CategoryRegion) Contains(p spatial.LatLon) bool {
	for _, part := range r.Parts {
		if part.Contains(p) {
			return true
		}
	}
	return false
}

// Rings flattens every part into a single ring list.
func (r CategoryRegion) Rings() spatial.Region {
	var out spatial.Region
	for _, part := range r.Parts {
		out = append(out, part...)
	}
	return out
}

// Bounds returns the bounding box over all parts.
func (r CategoryRegion) Bounds() spatial.BBox {
	return r.Rings().Bounds()
}

// Set is the full coverage computed for one facility-set version at one
// density. A Set is immutable once built and is replaced wholesale.
type Set struct {
	Version int64
	Density float64
	Regions []CategoryRegion

	byCategory map[facility.Category]int
	index      *RegionIndex
}

func newSet(version int64, density float64, regions []CategoryRegion) *Set {
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Category.String() < regions[j].Category.String()
	})
	s := &Set{
		Version:    version,
		Density:    density,
		Regions:    regions,
		byCategory: make(map[facility.Category]int, len(regions)),
	}
	for i, r := range regions {
		s.byCategory[r.Category] = i
	}
	s.index = NewRegionIndex(regions)
	return s
}

// Region returns the coverage of cat, if any Point facility of that category exists.
func (s *Set) Region(cat facility.Category) (CategoryRegion, bool) {
	if s == nil {
		return CategoryRegion{}, false
	}
	i, ok := s.byCategory[cat]
	if !ok {
		return CategoryRegion{}, false
	}
	return s.Regions[i], true
}

// Covering returns the categories whose region contains p, sorted by name.
func (s *Set) Covering(p spatial.LatLon) []facility.Category {
	if s == nil {
		return nil
	}
	return s.index.Covering(p)
}
