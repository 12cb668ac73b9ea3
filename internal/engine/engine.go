// Package engine wires the range model, union builder, boundary resolver and
// point classifier to a facility snapshot source.
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/boundary"
	"github.com/sells-group/coverage-cli/internal/classify"
	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/metrics"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// Source supplies the current facility set. Version must increase on every
// facility or boundary mutation.
type Source interface {
	Snapshot(ctx context.Context) (facility.Snapshot, error)
}

// Config tunes the engine. Zero values select defaults.
type Config struct {
	CircleVertices   int
	TopN             int
	MaxTopN          int
	UnionConcurrency int
	CacheTTL         time.Duration
	BBoxPadding      float64
	Catalog          *rangemodel.Catalog
}

// Engine answers coverage queries over a Source. It keeps no facility data
// between calls, only built coverage sets in its cache.
type Engine struct {
	source   Source
	model    *rangemodel.Model
	builder  *coverage.Builder
	cache    *coverage.RegionCache
	cls      *classify.Classifier
	resolver *boundary.Resolver
}

// New creates an Engine over src.
func New(src Source, cfg Config) *Engine {
	m := rangemodel.New(cfg.Catalog)
	return &Engine{
		source: src,
		model:  m,
		builder: coverage.NewBuilder(m,
			coverage.WithVertices(cfg.CircleVertices),
			coverage.WithConcurrency(cfg.UnionConcurrency)),
		cache:    coverage.NewRegionCache(cfg.CacheTTL),
		cls:      classify.New(m, classify.WithTopN(cfg.TopN), classify.WithMaxN(cfg.MaxTopN)),
		resolver: boundary.NewResolver(cfg.BBoxPadding),
	}
}

// Resource is a facility annotated for display. Point facilities carry
// their effective range; zones pass through without one.
type Resource struct {
	facility.Facility
	EffectiveRangeKM *float64 `json:"effective_range_km,omitempty"`
	Label            string   `json:"label"`
	Color            string   `json:"color"`
}

// Catalog returns the category catalog in use.
func (e *Engine) Catalog() *rangemodel.Catalog { return e.model.Catalog() }

// CacheStats reports region cache statistics.
func (e *Engine) CacheStats() coverage.CacheStats { return e.cache.Stats() }

// ListResources returns every facility, Point facilities annotated with
// their range at density. Zones with a malformed ring are logged and left
// out. An empty store yields an empty, non-nil slice.
func (e *Engine) ListResources(ctx context.Context, density float64) ([]Resource, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	density = rangemodel.ClampDensity(density)

	out := make([]Resource, 0, len(snap.Facilities))
	for _, f := range snap.Facilities {
		if f.Geometry.Kind() == facility.GeometryPolygon {
			if err := f.Geometry.Validate(); err != nil {
				zap.L().Warn("skipping malformed polygon facility",
					zap.String("component", "engine"),
					zap.String("facility_id", f.ID),
					zap.String("category", f.Category.String()),
					zap.Error(err))
				continue
			}
		}
		p := e.model.Catalog().Lookup(f.Category)
		r := Resource{Facility: f, Label: p.Label, Color: p.Color}
		if f.IsPoint() {
			km := e.model.FacilityRangeKM(f, density)
			r.EffectiveRangeKM = &km
		}
		out = append(out, r)
	}
	return out, nil
}

// Analyze classifies a point at density. limit <= 0 selects the default
// nearby-list size.
func (e *Engine) Analyze(ctx context.Context, lat, lon, density float64, limit int) (classify.Result, error) {
	p := spatial.LatLon{Lat: lat, Lon: lon}
	if err := facility.NewPoint(lat, lon).Validate(); err != nil {
		return classify.Result{}, err
	}

	snap, err := e.snapshot(ctx)
	if err != nil {
		return classify.Result{}, err
	}
	set, err := e.coverage(ctx, snap, density)
	if err != nil {
		return classify.Result{}, err
	}
	extent := e.resolver.Resolve(snap.Boundary, snap.Facilities)

	res, err := e.cls.Analyze(classify.Query{Point: p, Density: density, Limit: limit}, set, snap.Facilities, extent)
	if err != nil {
		return classify.Result{}, err
	}

	outcome := "covered"
	if res.IsDesert {
		outcome = "desert"
	}
	metrics.AnalyzeTotal.WithLabelValues(outcome).Inc()
	return res, nil
}

// Coverage returns the merged per-category regions at density.
func (e *Engine) Coverage(ctx context.Context, density float64) (*coverage.Set, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.coverage(ctx, snap, density)
}

// Extent resolves the current analysis extent.
func (e *Engine) Extent(ctx context.Context) (boundary.Extent, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return boundary.Extent{}, err
	}
	return e.resolver.Resolve(snap.Boundary, snap.Facilities), nil
}

func (e *Engine) snapshot(ctx context.Context) (facility.Snapshot, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "engine: snapshot")
	}
	e.cache.Invalidate(snap.Version)
	return snap, nil
}

func (e *Engine) coverage(ctx context.Context, snap facility.Snapshot, density float64) (*coverage.Set, error) {
	return e.cache.GetOrBuild(ctx, snap.Version, density, func(ctx context.Context) (*coverage.Set, error) {
		zap.L().Debug("building coverage",
			zap.String("component", "engine"),
			zap.Int64("version", snap.Version),
			zap.Float64("density", rangemodel.ClampDensity(density)),
			zap.Int("facilities", len(snap.Facilities)))
		return e.builder.BuildSet(ctx, snap.Version, snap.Facilities, density)
	})
}
