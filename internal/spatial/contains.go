package spatial

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// Locate classifies p against a single ring. Points exactly on an edge or
// vertex report location.Boundary.
func (r Ring) Locate(p LatLon) location.Type {
	if len(r) < 3 {
		return location.Exterior
	}
	return xy.LocatePointInRing(geom.XY, geom.Coord{p.Lon, p.Lat}, r.closedFlat())
}

// Contains reports whether p lies inside the region or on any of its ring
// boundaries. Interior membership uses even-odd parity across rings.
func (g Region) Contains(p LatLon) bool {
	inside := false
	for _, r := range g {
		if !r.Bounds().Contains(p) {
			continue
		}
		switch r.Locate(p) {
		case location.Boundary:
			return true
		case location.Interior:
			inside = !inside
		}
	}
	return inside
}

// depth returns how many other rings of the region enclose ring i.
func (g Region) depth(i int) int {
	if len(g[i]) == 0 {
		return 0
	}
	sample := g[i][0]
	d := 0
	for j, r := range g {
		if j == i {
			continue
		}
		if r.Locate(sample) == location.Interior {
			d++
		}
	}
	return d
}

// AreaKM2 returns the area of the region in square kilometers. Each ring is
// projected with a sinusoidal (equal-area) projection centered on the
// region's mid longitude; hole rings subtract.
func (g Region) AreaKM2() float64 {
	if len(g) == 0 {
		return 0
	}
	lon0 := g.Bounds().Center().Lon
	total := 0.0
	for i, r := range g {
		a := r.areaKM2(lon0)
		if g.depth(i)%2 == 1 {
			total -= a
		} else {
			total += a
		}
	}
	return math.Max(total, 0)
}

// AreaKM2 returns the area enclosed by the ring in square kilometers.
func (r Ring) AreaKM2() float64 {
	if len(r) < 3 {
		return 0
	}
	return r.areaKM2(r.Bounds().Center().Lon)
}

func (r Ring) areaKM2(lon0 float64) float64 {
	if len(r) < 3 {
		return 0
	}
	flat := make([]float64, 0, 2*(len(r)+1))
	for _, p := range append(r.Clone(), r[0]) {
		phi := p.Lat * math.Pi / 180
		lambda := (p.Lon - lon0) * math.Pi / 180
		flat = append(flat, EarthRadiusKM*lambda*math.Cos(phi), EarthRadiusKM*phi)
	}
	return math.Abs(geom.NewLinearRingFlat(geom.XY, flat).Area())
}

// Centroid returns the area-weighted centroid of the ring, falling back to
// the vertex mean for rings with no area.
func (r Ring) Centroid() LatLon {
	if len(r) == 0 {
		return LatLon{}
	}
	if len(r) >= 3 {
		poly := geom.NewPolygonFlat(geom.XY, r.closedFlat(), []int{2 * (len(r) + 1)})
		if c, err := xy.Centroid(poly); err == nil && len(c) >= 2 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
			return LatLon{Lat: c[1], Lon: c[0]}
		}
	}
	var lat, lon float64
	for _, p := range r {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(r))
	return LatLon{Lat: lat / n, Lon: lon / n}
}
