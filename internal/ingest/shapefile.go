// Package ingest loads facilities from ESRI shapefiles.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/spatial"
)

// NameFields are tried in order for a facility name.
var NameFields = []string{"name", "Name", "NAME", "facility", "type"}

// Record is one shapefile feature reduced to a representative coordinate.
type Record struct {
	Name     string
	Category string
	Location spatial.LatLon
}

// shapeReader is the subset shared by shp.Reader and shp.ZipReader.
type shapeReader interface {
	Fields() []shp.Field
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Close() error
}

func open(path string) (shapeReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		r, err := shp.OpenZip(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open zip %s", path)
		}
		return r, nil
	case ".shp":
		r, err := shp.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open shapefile %s", path)
		}
		return r, nil
	default:
		return nil, eris.Errorf("ingest: unsupported file %s (want .shp or .zip)", path)
	}
}

// ReadShapefile returns one Record per feature. Point features keep their
// coordinate, other shapes are reduced to the centroid of their first ring.
// categoryField, when set, names the attribute column holding the category.
func ReadShapefile(path, categoryField string) ([]Record, error) {
	reader, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	exact := make(map[string]int)
	for i, f := range reader.Fields() {
		exact[strings.TrimRight(f.String(), "\x00")] = i
	}
	nameIdx := -1
	for _, col := range NameFields {
		if idx, ok := exact[col]; ok {
			nameIdx = idx
			break
		}
	}
	catIdx := -1
	if categoryField != "" {
		for name, idx := range exact {
			if strings.EqualFold(name, categoryField) {
				catIdx = idx
				break
			}
		}
		if catIdx < 0 {
			return nil, eris.Errorf("ingest: column %q not found in %s", categoryField, path)
		}
	}

	var out []Record
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		loc, ok := representative(shape)
		if !ok || !loc.Valid() {
			skipped++
			continue
		}
		rec := Record{Location: loc}
		if nameIdx >= 0 {
			rec.Name = attribute(reader, nameIdx)
		}
		if catIdx >= 0 {
			rec.Category = attribute(reader, catIdx)
		}
		out = append(out, rec)
	}

	if skipped > 0 {
		zap.L().Warn("ingest: skipped shapefile records without usable geometry",
			zap.String("component", "ingest"),
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

func attribute(r shapeReader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// representative picks the coordinate a shape is imported at.
func representative(shape shp.Shape) (spatial.LatLon, bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return spatial.LatLon{Lat: s.Y, Lon: s.X}, true
	case *shp.PointZ:
		return spatial.LatLon{Lat: s.Y, Lon: s.X}, true
	case *shp.PointM:
		return spatial.LatLon{Lat: s.Y, Lon: s.X}, true
	case *shp.Polygon:
		return firstPartCentroid(s.Parts, s.Points)
	case *shp.PolygonZ:
		return firstPartCentroid(s.Parts, s.Points)
	case *shp.PolygonM:
		return firstPartCentroid(s.Parts, s.Points)
	case *shp.PolyLine:
		return firstPartCentroid(s.Parts, s.Points)
	case *shp.MultiPoint:
		return firstPartCentroid(nil, s.Points)
	case nil:
		return spatial.LatLon{}, false
	default:
		b := shape.BBox()
		return spatial.LatLon{Lat: (b.MinY + b.MaxY) / 2, Lon: (b.MinX + b.MaxX) / 2}, true
	}
}

func firstPartCentroid(parts []int32, points []shp.Point) (spatial.LatLon, bool) {
	end := len(points)
	if len(parts) > 1 && int(parts[1]) <= end {
		end = int(parts[1])
	}
	start := 0
	if len(parts) > 0 && int(parts[0]) < end {
		start = int(parts[0])
	}
	if end <= start {
		return spatial.LatLon{}, false
	}
	ring := make(spatial.Ring, 0, end-start)
	for _, p := range points[start:end] {
		ring = append(ring, spatial.LatLon{Lat: p.Y, Lon: p.X})
	}
	return ring.Clean().Centroid(), true
}
