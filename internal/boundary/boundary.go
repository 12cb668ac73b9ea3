// Package boundary resolves the analysis extent: the saved project boundary
// when it is usable, otherwise a padded bounding box over the Point
// facilities, otherwise an empty extent.
package boundary

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// Mode tells where an extent came from.
type Mode string

const (
	ModeExplicit Mode = "explicit"
	ModeAuto     Mode = "auto"
	ModeEmpty    Mode = "empty"
)

// DefaultPadding grows the auto box by 10% of its size on each side.
const DefaultPadding = 0.1

// minPadDegrees keeps a box around a single facility (or a line of them)
// from collapsing to zero width.
const minPadDegrees = 0.01

// Extent is the resolved analysis extent.
type Extent struct {
	Mode Mode         `json:"mode"`
	Ring spatial.Ring `json:"-"`
	BBox spatial.BBox `json:"bbox"`
}

// IsEmpty reports whether the extent has no area.
func (e Extent) IsEmpty() bool { return e.Mode == ModeEmpty || len(e.Ring) < 3 }

// Contains reports whether p is inside or on the edge of the extent. The
// empty extent contains nothing.
func (e Extent) Contains(p spatial.LatLon) bool {
	if e.IsEmpty() || !e.BBox.Contains(p) {
		return false
	}
	return spatial.Region{e.Ring}.Contains(p)
}

// Resolver computes extents.
type Resolver struct {
	padding float64
}

// NewResolver creates a Resolver. padding is a fraction of the box size;
// values <= 0 select DefaultPadding.
func NewResolver(padding float64) *Resolver {
	if padding <= 0 || math.IsNaN(padding) {
		padding = DefaultPadding
	}
	return &Resolver{padding: padding}
}

// Resolve returns the saved boundary verbatim when it is a valid polygon
// with area. Otherwise it derives a padded box over the Point facilities.
// With neither it returns the empty extent; that is not an error.
func (r *Resolver) Resolve(b *facility.Boundary, facilities []facility.Facility) Extent {
	if b != nil {
		if ring, ok := usable(b); ok {
			return Extent{Mode: ModeExplicit, Ring: ring, BBox: ring.Bounds()}
		}
		zap.L().Warn("invalid boundary, using auto extent",
			zap.String("component", "boundary"),
			zap.String("geometry", b.Geometry.Kind().String()))
	}

	var pts []spatial.LatLon
	for _, f := range facilities {
		if loc, ok := f.Location(); ok && loc.Valid() {
			pts = append(pts, loc)
		}
	}
	box, ok := spatial.BoundOf(pts)
	if !ok {
		return Extent{Mode: ModeEmpty}
	}

	padX := math.Max(box.Width()*r.padding, minPadDegrees)
	padY := math.Max(box.Height()*r.padding, minPadDegrees)
	box = spatial.BBox{
		MinLng: box.MinLng - padX,
		MinLat: box.MinLat - padY,
		MaxLng: box.MaxLng + padX,
		MaxLat: box.MaxLat + padY,
	}
	return Extent{Mode: ModeAuto, Ring: box.Ring(), BBox: box}
}

func usable(b *facility.Boundary) (spatial.Ring, bool) {
	if !b.Valid() {
		return nil, false
	}
	ring, _ := b.Geometry.Ring()
	if ring.AreaKM2() <= 0 {
		return nil, false
	}
	return ring, true
}
