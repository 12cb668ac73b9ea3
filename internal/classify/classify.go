// Package classify answers point queries against built coverage: is the
// location a service desert, which categories cover it, and which facilities
// are nearest.
package classify

import (
	"math"
	"sort"

	"github.com/sells-group/coverage-cli/internal/boundary"
	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// Result list sizes.
const (
	DefaultTopN = 10
	DefaultMaxN = 100
)

// Nearby summarizes one Point facility relative to the query point.
type Nearby struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Category         facility.Category `json:"category"`
	Capacity         int               `json:"capacity"`
	Lat              float64           `json:"lat"`
	Lon              float64           `json:"lon"`
	DistanceKM       float64           `json:"distance_km"`
	EffectiveRangeKM float64           `json:"effective_range_km"`
	InCoverage       bool              `json:"in_coverage"`
}

// Result is the analysis of one query point.
//
// CoveredServices is the aggregate answer per category, while
// Nearby.InCoverage says whether that specific facility reaches the point.
// A category can be covered with no listed facility in coverage when the
// covering facility falls outside the top-N cut.
type Result struct {
	Lat               float64           `json:"lat"`
	Lon               float64           `json:"lon"`
	Density           float64           `json:"density"`
	IsDesert          bool              `json:"is_desert"`
	CoveredServices   []string          `json:"covered_services"`
	NearbyAnalysis    []Nearby          `json:"nearby_analysis"`
	NearestByCategory map[string]Nearby `json:"nearest_by_category"`
	CoverageScore     float64           `json:"coverage_score"`
	InExtent          bool              `json:"in_extent"`
}

// Query is a point analysis request.
type Query struct {
	Point   spatial.LatLon
	Density float64
	// Limit caps NearbyAnalysis; <= 0 selects the classifier default.
	Limit int
}

// Classifier runs point analyses.
type Classifier struct {
	model *rangemodel.Model
	topN  int
	maxN  int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTopN sets the default number of nearby facilities returned.
func WithTopN(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.topN = n
		}
	}
}

// WithMaxN sets the largest limit a caller may request.
func WithMaxN(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxN = n
		}
	}
}

// New creates a Classifier.
func New(m *rangemodel.Model, opts ...Option) *Classifier {
	c := &Classifier{model: m, topN: DefaultTopN, maxN: DefaultMaxN}
	for _, o := range opts {
		o(c)
	}
	if c.topN > c.maxN {
		c.topN = c.maxN
	}
	return c
}

// Limit resolves a requested list size against the defaults.
func (c *Classifier) Limit(requested int) int {
	switch {
	case requested <= 0:
		return c.topN
	case requested > c.maxN:
		return c.maxN
	}
	return requested
}

// Analyze classifies q.Point against set, which must have been built from
// facilities at the same density. set may be nil when there is nothing to
// cover. Only a malformed point is an error.
func (c *Classifier) Analyze(q Query, set *coverage.Set, facilities []facility.Facility, extent boundary.Extent) (Result, error) {
	p := q.Point
	if err := facility.NewPoint(p.Lat, p.Lon).Validate(); err != nil {
		return Result{}, err
	}
	density := rangemodel.ClampDensity(q.Density)

	covered := make(map[facility.Category]bool)
	for _, cat := range set.Covering(p) {
		covered[cat] = true
	}

	points, _ := facility.Split(facilities)
	nearby := make([]Nearby, 0, len(points))
	best := make(map[facility.Category]float64)
	for _, f := range points {
		loc, ok := f.Location()
		if !ok || !loc.Valid() {
			continue
		}
		d := spatial.HaversineKM(p, loc)
		r := c.model.FacilityRangeKM(f, density)
		n := Nearby{
			ID:               f.ID,
			Name:             f.Name,
			Category:         f.Category,
			Capacity:         f.Capacity,
			Lat:              loc.Lat,
			Lon:              loc.Lon,
			DistanceKM:       d,
			EffectiveRangeKM: r,
			InCoverage:       d <= r,
		}
		// A facility's own disc counts even where the merged region misses it.
		if n.InCoverage {
			covered[f.Category] = true
		}
		if s := math.Max(0, 1-d/r); s >= best[f.Category] {
			best[f.Category] = s
		}
		nearby = append(nearby, n)
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		a, b := nearby[i], nearby[j]
		if a.DistanceKM != b.DistanceKM {
			return a.DistanceKM < b.DistanceKM
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})

	nearest := make(map[string]Nearby)
	for _, n := range nearby {
		if _, ok := nearest[n.Category.String()]; !ok {
			nearest[n.Category.String()] = n
		}
	}

	services := make([]string, 0, len(covered))
	for cat := range covered {
		services = append(services, cat.String())
	}
	sort.Strings(services)

	if limit := c.Limit(q.Limit); len(nearby) > limit {
		nearby = nearby[:limit]
	}

	return Result{
		Lat:               p.Lat,
		Lon:               p.Lon,
		Density:           density,
		IsDesert:          len(services) == 0,
		CoveredServices:   services,
		NearbyAnalysis:    nearby,
		NearestByCategory: nearest,
		CoverageScore:     score(best),
		InExtent:          extent.Contains(p),
	}, nil
}

// score is the mean over categories of the best linear-decay coverage
// 100*(1 - d/r), in [0, 100] and rounded to two decimals.
func score(best map[facility.Category]float64) float64 {
	if len(best) == 0 {
		return 0
	}
	cats := make([]string, 0, len(best))
	byName := make(map[string]float64, len(best))
	for cat, s := range best {
		cats = append(cats, cat.String())
		byName[cat.String()] = s
	}
	// Sum in name order; map order would perturb the last bits.
	sort.Strings(cats)
	sum := 0.0
	for _, name := range cats {
		sum += byName[name]
	}
	return math.Round(100*sum/float64(len(cats))*100) / 100
}
