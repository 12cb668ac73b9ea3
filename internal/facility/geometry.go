package facility

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/coverage-cli/internal/spatial"
)

// GeometryKind tags the Geometry variant.
type GeometryKind uint8

// Geometry variants.
const (
	GeometryNone GeometryKind = iota
	GeometryPoint
	GeometryPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryPoint:
		return "Point"
	case GeometryPolygon:
		return "Polygon"
	default:
		return "None"
	}
}

// Geometry is either a Point or a Polygon (a single implicitly closed ring).
type Geometry struct {
	kind  GeometryKind
	point spatial.LatLon
	ring  spatial.Ring
}

// NewPoint returns a Point geometry.
func NewPoint(lat, lon float64) Geometry {
	return Geometry{kind: GeometryPoint, point: spatial.LatLon{Lat: lat, Lon: lon}}
}

// NewPolygon returns a Polygon geometry. An explicit closing vertex is dropped.
func NewPolygon(ring spatial.Ring) Geometry {
	return Geometry{kind: GeometryPolygon, ring: ring.Clean()}
}

// Kind returns the variant tag.
func (g Geometry) Kind() GeometryKind { return g.kind }

// Point returns the coordinate of a Point geometry.
func (g Geometry) Point() (spatial.LatLon, bool) {
	return g.point, g.kind == GeometryPoint
}

// Ring returns the ring of a Polygon geometry.
func (g Geometry) Ring() (spatial.Ring, bool) {
	if g.kind != GeometryPolygon {
		return nil, false
	}
	return g.ring.Clone(), true
}

// Validate checks coordinate bounds and, for polygons, that the ring has at
// least three distinct vertices.
func (g Geometry) Validate() error {
	switch g.kind {
	case GeometryPoint:
		if math.IsNaN(g.point.Lat) || g.point.Lat < -90 || g.point.Lat > 90 {
			return &ValidationError{Field: "lat", Reason: "must be a number in [-90, 90]"}
		}
		if math.IsNaN(g.point.Lon) || g.point.Lon < -180 || g.point.Lon > 180 {
			return &ValidationError{Field: "lon", Reason: "must be a number in [-180, 180]"}
		}
		return nil
	case GeometryPolygon:
		for _, p := range g.ring {
			if !p.Valid() {
				return &ValidationError{Field: "geometry", Reason: "polygon vertex out of range"}
			}
		}
		if g.ring.Distinct() < 3 {
			return &ValidationError{Field: "geometry", Reason: "polygon needs at least 3 distinct vertices"}
		}
		return nil
	default:
		return &ValidationError{Field: "geometry", Reason: "missing geometry"}
	}
}

// Geom converts the geometry to a go-geom value with SRID 4326.
func (g Geometry) Geom() (geom.T, error) {
	switch g.kind {
	case GeometryPoint:
		return geom.NewPointFlat(geom.XY, []float64{g.point.Lon, g.point.Lat}).SetSRID(4326), nil
	case GeometryPolygon:
		return g.ring.Polygon(), nil
	default:
		return nil, eris.New("facility: empty geometry")
	}
}

// FromGeom converts a go-geom Point or Polygon. Multi-ring polygons keep
// only their exterior ring.
func FromGeom(t geom.T) (Geometry, error) {
	switch v := t.(type) {
	case *geom.Point:
		return NewPoint(v.Y(), v.X()), nil
	case *geom.Polygon:
		ring, err := spatial.RingFromPolygon(v)
		if err != nil {
			return Geometry{}, &ValidationError{Field: "geometry", Reason: err.Error()}
		}
		return NewPolygon(ring), nil
	case nil:
		return Geometry{}, &ValidationError{Field: "geometry", Reason: "missing geometry"}
	default:
		return Geometry{}, &ValidationError{Field: "geometry", Reason: "unsupported geometry type"}
	}
}

// MarshalJSON encodes the geometry as GeoJSON.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.kind == GeometryNone {
		return []byte("null"), nil
	}
	t, err := g.Geom()
	if err != nil {
		return nil, err
	}
	return geojson.Marshal(t)
}

// UnmarshalJSON decodes a GeoJSON Point or Polygon.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var t geom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return &ValidationError{Field: "geometry", Reason: "not a GeoJSON geometry"}
	}
	parsed, err := FromGeom(t)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
