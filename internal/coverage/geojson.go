package coverage

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/coverage-cli/internal/rangemodel"
)

// MultiPolygon returns the region as one multipolygon. Fallback parts are
// converted separately, so overlapping footprints stay separate polygons.
func (r CategoryRegion) MultiPolygon() *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	for _, part := range r.Parts {
		pm := part.MultiPolygon()
		for i := 0; i < pm.NumPolygons(); i++ {
			_ = mp.Push(pm.Polygon(i))
		}
	}
	return mp
}

// FeatureCollection renders the set as GeoJSON, one feature per category,
// styled from catalog.
func (s *Set) FeatureCollection(catalog *rangemodel.Catalog) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	if s == nil {
		return fc
	}
	if catalog == nil {
		catalog = rangemodel.DefaultCatalog()
	}
	for _, r := range s.Regions {
		p := catalog.Lookup(r.Category)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.Category.String(),
			Geometry: r.MultiPolygon(),
			Properties: map[string]interface{}{
				"category":       r.Category.String(),
				"label":          p.Label,
				"color":          p.Color,
				"area_km2":       math.Round(r.AreaKM2*100) / 100,
				"facility_count": r.FacilityCount,
				"fallback":       r.Fallback,
				"version":        s.Version,
				"density":        s.Density,
			},
		})
	}
	return fc
}
