package coverage

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/metrics"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

const defaultConcurrency = 4

// Footprint is the range circle of one Point facility.
type Footprint struct {
	FacilityID string
	Center     spatial.LatLon
	RangeKM    float64
	Ring       spatial.Ring
}

// Builder merges facility footprints into per-category regions.
type Builder struct {
	model       *rangemodel.Model
	vertices    int
	concurrency int
	union       func([]spatial.Region) (spatial.Region, int, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithVertices sets the footprint vertex count, clamped to [32, 64].
func WithVertices(n int) Option {
	return func(b *Builder) { b.vertices = spatial.ClampVertices(n) }
}

// WithConcurrency caps the number of categories merged in parallel.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func withUnion(fn func([]spatial.Region) (spatial.Region, int, error)) Option {
	return func(b *Builder) { b.union = fn }
}

// NewBuilder creates a Builder using m for facility ranges.
func NewBuilder(m *rangemodel.Model, opts ...Option) *Builder {
	b := &Builder{
		model:       m,
		vertices:    spatial.DefaultCircleVertices,
		concurrency: defaultConcurrency,
		union:       spatial.UnionAll,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Model returns the range model used by the builder.
func (b *Builder) Model() *rangemodel.Model { return b.model }

// Footprints returns one footprint per Point facility with a valid location.
// Facilities sharing a center and range collapse to the first one so the
// union never sees coincident rings. The result is ordered by location.
func (b *Builder) Footprints(points []facility.Facility, density float64) []Footprint {
	type key struct {
		lat, lon, r float64
	}
	seen := make(map[key]bool, len(points))
	out := make([]Footprint, 0, len(points))
	for _, f := range points {
		loc, ok := f.Location()
		if !ok || !loc.Valid() {
			continue
		}
		r := b.model.FacilityRangeKM(f, density)
		k := key{loc.Lat, loc.Lon, r}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Footprint{
			FacilityID: f.ID,
			Center:     loc,
			RangeKM:    r,
			Ring:       spatial.Circle(loc, r, b.vertices),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.Center.Lat != c.Center.Lat {
			return a.Center.Lat < c.Center.Lat
		}
		if a.Center.Lon != c.Center.Lon {
			return a.Center.Lon < c.Center.Lon
		}
		return a.RangeKM < c.RangeKM
	})
	return out
}

// Build merges the footprints of points, which must all belong to cat. A
// union failure is logged and the footprints are returned unmerged; ok is
// false only when no facility has a usable location.
func (b *Builder) Build(cat facility.Category, points []facility.Facility, density float64) (CategoryRegion, bool) {
	log := zap.L().With(zap.String("component", "coverage"), zap.String("category", cat.String()))
	start := time.Now()

	fps := b.Footprints(points, density)
	if len(fps) == 0 {
		return CategoryRegion{}, false
	}

	regions := make([]spatial.Region, len(fps))
	for i, fp := range fps {
		regions[i] = spatial.Region{fp.Ring}
	}

	out := CategoryRegion{Category: cat, FacilityCount: len(points)}

	merged, failedAt, err := b.union(regions)
	if err != nil {
		failedID := ""
		if failedAt >= 0 && failedAt < len(fps) {
			failedID = fps[failedAt].FacilityID
		}
		log.Warn("union fallback, returning unmerged footprints",
			zap.String("facility_id", failedID),
			zap.Int("footprints", len(fps)),
			zap.Error(err))
		metrics.UnionFallbackTotal.WithLabelValues(cat.String()).Inc()

		out.Fallback = true
		out.Parts = regions
		for _, r := range regions {
			out.AreaKM2 += r.AreaKM2()
		}
	} else {
		out.Parts = []spatial.Region{merged}
		out.AreaKM2 = merged.AreaKM2()
	}

	elapsed := time.Since(start)
	metrics.UnionDurationSeconds.WithLabelValues(cat.String()).Observe(elapsed.Seconds())
	log.Debug("category merged",
		zap.Int("footprints", len(fps)),
		zap.Int("rings", len(out.Rings())),
		zap.Duration("elapsed", elapsed))
	return out, true
}

// BuildSet merges every category of the given facilities concurrently, one
// task per category. Polygon facilities are ignored.
func (b *Builder) BuildSet(ctx context.Context, version int64, all []facility.Facility, density float64) (*Set, error) {
	density = rangemodel.ClampDensity(density)
	points, _ := facility.Split(all)

	byCat := make(map[facility.Category][]facility.Facility)
	var cats []facility.Category
	for _, f := range points {
		if _, ok := byCat[f.Category]; !ok {
			cats = append(cats, f.Category)
		}
		byCat[f.Category] = append(byCat[f.Category], f)
	}

	results := make([]CategoryRegion, len(cats))
	present := make([]bool, len(cats))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, cat := range cats {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], present[i] = b.Build(cat, byCat[cat], density)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "coverage: build set")
	}

	regions := make([]CategoryRegion, 0, len(cats))
	for i := range results {
		if present[i] {
			regions = append(regions, results[i])
		}
	}
	return newSet(version, density, regions), nil
}
