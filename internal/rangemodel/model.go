// Package rangemodel converts a facility's category and capacity plus the
// ambient population density into an effective service radius.
package rangemodel

import (
	"math"

	"github.com/sells-group/coverage-cli/internal/facility"
)

// Density bounds and reference values (people per km²).
const (
	MinDensity       = 100.0
	MaxDensity       = 5000.0
	ReferenceDensity = 1000.0
)

// ReferenceCapacity is the capacity at which a facility reaches its base range.
const ReferenceCapacity = 50.0

// minRadiusKM keeps rounded radii strictly positive.
const minRadiusKM = 0.01

// ClampDensity bounds d to [MinDensity, MaxDensity]. NaN is treated as the
// reference density.
func ClampDensity(d float64) float64 {
	if math.IsNaN(d) {
		return ReferenceDensity
	}
	return math.Min(math.Max(d, MinDensity), MaxDensity)
}

// Model computes effective ranges. It is pure: identical inputs always give
// identical outputs, which makes its results safe to cache.
type Model struct {
	catalog *Catalog
}

// New creates a Model over the given catalog; nil selects DefaultCatalog.
func New(c *Catalog) *Model {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Model{catalog: c}
}

// Catalog returns the category catalog backing the model.
func (m *Model) Catalog() *Catalog { return m.catalog }

// RangeKM returns the effective service radius in kilometers:
//
//	clamp(base * sqrt(capacity/50) * sqrt(1000/density), min, max)
//
// rounded to two decimals. Density and capacity are clamped to their bounds
// first, never rejected. The radius is non-decreasing in capacity and
// non-increasing in density.
func (m *Model) RangeKM(cat facility.Category, capacity int, density float64) float64 {
	p := m.catalog.Lookup(cat)
	c := float64(facility.ClampCapacity(capacity))
	d := ClampDensity(density)

	r := p.BaseKM * math.Sqrt(c/ReferenceCapacity) * math.Sqrt(ReferenceDensity/d)
	r = math.Min(math.Max(r, p.MinKM), p.MaxKM)
	r = math.Round(r*100) / 100
	return math.Max(r, minRadiusKM)
}

// FacilityRangeKM is RangeKM for a facility record.
func (m *Model) FacilityRangeKM(f facility.Facility, density float64) float64 {
	return m.RangeKM(f.Category, f.Capacity, density)
}
