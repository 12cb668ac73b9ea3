package spatial

import "github.com/paulmach/orb"

// BBox is an axis-aligned lon/lat bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// BoundOf returns the bounding box of the given points. The second return
// value is false when points is empty.
func BoundOf(points []LatLon) (BBox, bool) {
	if len(points) == 0 {
		return BBox{}, false
	}
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.point())
	}
	return fromBound(mp.Bound()), true
}

func fromBound(b orb.Bound) BBox {
	return BBox{MinLng: b.Min[0], MinLat: b.Min[1], MaxLng: b.Max[0], MaxLat: b.Max[1]}
}

func (b BBox) bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLng, b.MinLat}, Max: orb.Point{b.MaxLng, b.MaxLat}}
}

// Width returns the longitudinal extent in degrees.
func (b BBox) Width() float64 { return b.MaxLng - b.MinLng }

// Height returns the latitudinal extent in degrees.
func (b BBox) Height() float64 { return b.MaxLat - b.MinLat }

// Pad grows the box by d degrees on every side.
func (b BBox) Pad(d float64) BBox {
	return fromBound(b.bound().Pad(d))
}

// Center returns the center of the box.
func (b BBox) Center() LatLon {
	return fromPoint(b.bound().Center())
}

// Contains reports whether p lies inside or on the edge of the box.
func (b BBox) Contains(p LatLon) bool {
	return b.bound().Contains(p.point())
}

// StrictlyContains reports whether p lies in the interior of the box.
func (b BBox) StrictlyContains(p LatLon) bool {
	return p.Lon > b.MinLng && p.Lon < b.MaxLng && p.Lat > b.MinLat && p.Lat < b.MaxLat
}

// Ring returns the box as a four-vertex ring, counter-clockwise from the
// south-west corner.
func (b BBox) Ring() Ring {
	return Ring{
		{Lat: b.MinLat, Lon: b.MinLng},
		{Lat: b.MinLat, Lon: b.MaxLng},
		{Lat: b.MaxLat, Lon: b.MaxLng},
		{Lat: b.MaxLat, Lon: b.MinLng},
	}
}
