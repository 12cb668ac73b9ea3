// Package spatial provides the geometric primitives used by coverage analysis:
// great-circle distance, circle approximation, polygon union, point-in-region
// tests and area.
//
// Coordinates are geographic (WGS84 degrees). Rings are open: the closing edge
// from the last vertex back to the first is implicit. A Region combines its
// rings with even-odd semantics, so a ring nested inside another is a hole.
package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKM is the mean earth radius used by every distance computation.
const EarthRadiusKM = orb.EarthRadius / 1000

// LatLon is a geographic coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (p LatLon) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p LatLon) point() orb.Point { return orb.Point{p.Lon, p.Lat} }

func fromPoint(p orb.Point) LatLon { return LatLon{Lat: p[1], Lon: p[0]} }

// Ring is an ordered, implicitly closed sequence of vertices.
type Ring []LatLon

// Region is a set of rings combined with even-odd semantics.
type Region []Ring

// Distinct returns the number of distinct vertices in the ring.
func (r Ring) Distinct() int {
	seen := make(map[LatLon]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Clean drops consecutive duplicate vertices and an explicit closing vertex.
func (r Ring) Clean() Ring {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// Clone returns a deep copy of the ring.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// closedFlat returns the ring as flat lon/lat coordinates with the first
// vertex repeated at the end.
func (r Ring) closedFlat() []float64 {
	flat := make([]float64, 0, 2*(len(r)+1))
	for _, p := range r {
		flat = append(flat, p.Lon, p.Lat)
	}
	if len(r) > 0 {
		flat = append(flat, r[0].Lon, r[0].Lat)
	}
	return flat
}

// Bounds returns the lon/lat bounding box of the ring.
func (r Ring) Bounds() BBox {
	b, _ := BoundOf(r)
	return b
}

// Clone returns a deep copy of the region.
func (g Region) Clone() Region {
	if g == nil {
		return nil
	}
	out := make(Region, len(g))
	for i, r := range g {
		out[i] = r.Clone()
	}
	return out
}

// Bounds returns the bounding box over every ring in the region.
func (g Region) Bounds() BBox {
	var pts []LatLon
	for _, r := range g {
		pts = append(pts, r...)
	}
	b, _ := BoundOf(pts)
	return b
}

// VertexCount returns the total number of vertices across all rings.
func (g Region) VertexCount() int {
	n := 0
	for _, r := range g {
		n += len(r)
	}
	return n
}

func (g Region) finite() bool {
	for _, r := range g {
		for _, p := range r {
			if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
				return false
			}
		}
	}
	return true
}
