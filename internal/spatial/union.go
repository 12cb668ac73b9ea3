package spatial

import (
	"fmt"

	cgeom "github.com/ctessum/geom"
	"github.com/rotisserie/eris"
)

// ErrUnionFailed is returned when the clipping algorithm cannot merge its
// inputs. Callers recover by keeping the inputs unmerged.
var ErrUnionFailed = eris.New("spatial: union failed")

// clip is the polygon clipping step, replaceable in tests.
var clip = func(a, b cgeom.Polygon) cgeom.Polygonal { return a.Union(b) }

// Union merges two regions. Disjoint inputs yield a multi-part region; inputs
// enclosing an uncovered area yield a hole ring. Panics raised by the clipper
// on degenerate input are converted to ErrUnionFailed.
func Union(a, b Region) (out Region, err error) {
	a, b = a.dropDegenerate(), b.dropDegenerate()
	if len(a) == 0 {
		return b.Clone(), nil
	}
	if len(b) == 0 {
		return a.Clone(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = eris.Wrap(ErrUnionFailed, fmt.Sprintf("clipper panic: %v", r))
		}
	}()

	merged, ok := clip(toClip(a), toClip(b)).(cgeom.Polygon)
	if !ok {
		return nil, eris.Wrap(ErrUnionFailed, "unexpected clip result")
	}
	out = fromClip(merged)

	if len(out) == 0 {
		return nil, eris.Wrap(ErrUnionFailed, "empty result")
	}
	if !out.finite() {
		return nil, eris.Wrap(ErrUnionFailed, "non-finite vertex")
	}
	return out, nil
}

// UnionAll folds Union over regions in order. It stops at the first failure
// and reports the index of the region that could not be merged.
func UnionAll(regions []Region) (Region, int, error) {
	var acc Region
	for i, r := range regions {
		next, err := Union(acc, r)
		if err != nil {
			return nil, i, err
		}
		acc = next
	}
	return acc, -1, nil
}

// dropDegenerate removes rings with fewer than three distinct vertices.
func (g Region) dropDegenerate() Region {
	out := make(Region, 0, len(g))
	for _, r := range g {
		r = r.Clean()
		if len(r) < 3 || r.Distinct() < 3 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toClip(g Region) cgeom.Polygon {
	poly := make(cgeom.Polygon, 0, len(g))
	for _, r := range g {
		path := make(cgeom.Path, 0, len(r))
		for _, p := range r {
			path = append(path, cgeom.Point{X: p.Lon, Y: p.Lat})
		}
		poly = append(poly, path)
	}
	return poly
}

func fromClip(poly cgeom.Polygon) Region {
	out := make(Region, 0, len(poly))
	for _, path := range poly {
		ring := make(Ring, 0, len(path))
		for _, p := range path {
			ring = append(ring, LatLon{Lat: p.Y, Lon: p.X})
		}
		ring = ring.Clean()
		if len(ring) < 3 {
			continue
		}
		out = append(out, ring)
	}
	return out
}
