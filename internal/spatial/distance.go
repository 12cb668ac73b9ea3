package spatial

import (
	"math"

	"github.com/paulmach/orb/geo"
)

// HaversineKM returns the great-circle distance between a and b in kilometers.
func HaversineKM(a, b LatLon) float64 {
	return geo.DistanceHaversine(a.point(), b.point()) / 1000
}

// Destination returns the point reached by travelling distKM along the great
// circle leaving p at the given bearing (degrees clockwise from north).
func Destination(p LatLon, bearing, distKM float64) LatLon {
	return fromPoint(geo.PointAtBearingAndDistance(p.point(), bearing, distKM*1000))
}

// Circle vertex count bounds.
const (
	MinCircleVertices     = 32
	MaxCircleVertices     = 64
	DefaultCircleVertices = 48
)

// ClampVertices bounds n to [MinCircleVertices, MaxCircleVertices].
func ClampVertices(n int) int {
	switch {
	case n <= 0:
		return DefaultCircleVertices
	case n < MinCircleVertices:
		return MinCircleVertices
	case n > MaxCircleVertices:
		return MaxCircleVertices
	}
	return n
}

// Circle approximates the disc of radiusKM around center with n vertices
// placed by great-circle offsets. Vertices sit on the circumscribed radius so
// the polygon's edges never cut inside the true disc.
//
// Longitudes are not normalised: a disc crossing ±180° or reaching a pole
// yields a ring that wraps, and callers should not rely on its area or
// containment there.
func Circle(center LatLon, radiusKM float64, n int) Ring {
	n = ClampVertices(n)
	if radiusKM < 0 || math.IsNaN(radiusKM) {
		radiusKM = 0
	}
	r := radiusKM / math.Cos(math.Pi/float64(n))

	ring := make(Ring, n)
	for i := range n {
		bearing := 360 * float64(i) / float64(n)
		ring[i] = Destination(center, bearing, r)
	}
	return ring
}
