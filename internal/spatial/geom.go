package spatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/location"
)

// Polygon converts a single ring to a go-geom polygon with SRID 4326.
func (r Ring) Polygon() *geom.Polygon {
	flat := r.closedFlat()
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}

// RingFromPolygon returns the exterior ring of a go-geom polygon.
func RingFromPolygon(p *geom.Polygon) (Ring, error) {
	if p == nil || p.NumLinearRings() == 0 {
		return nil, eris.New("spatial: polygon has no rings")
	}
	coords := p.LinearRing(0).Coords()
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, eris.New("spatial: coordinate has fewer than two ordinates")
		}
		ring = append(ring, LatLon{Lat: c[1], Lon: c[0]})
	}
	return ring.Clean(), nil
}

// MultiPolygon converts the region to a go-geom multipolygon. Rings at even
// nesting depth become shells; odd-depth rings become holes of the shell
// directly enclosing them.
func (g Region) MultiPolygon() *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	if len(g) == 0 {
		return mp
	}

	depths := make([]int, len(g))
	for i := range g {
		depths[i] = g.depth(i)
	}

	shells := make(map[int][][]geom.Coord)
	var order []int
	for i, r := range g {
		if depths[i]%2 == 0 {
			shells[i] = [][]geom.Coord{ringCoords(r)}
			order = append(order, i)
		}
	}
	for i, r := range g {
		if depths[i]%2 == 0 {
			continue
		}
		for _, s := range order {
			if depths[s] == depths[i]-1 && g[s].Locate(r[0]) == location.Interior {
				shells[s] = append(shells[s], ringCoords(r))
				break
			}
		}
	}

	for _, s := range order {
		poly, err := geom.NewPolygon(geom.XY).SetCoords(shells[s])
		if err != nil {
			continue
		}
		_ = mp.Push(poly)
	}
	return mp
}

func ringCoords(r Ring) []geom.Coord {
	coords := make([]geom.Coord, 0, len(r)+1)
	for _, p := range r {
		coords = append(coords, geom.Coord{p.Lon, p.Lat})
	}
	if len(r) > 0 {
		coords = append(coords, geom.Coord{r[0].Lon, r[0].Lat})
	}
	return coords
}
