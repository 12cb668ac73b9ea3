package coverage

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// pointTolerance pads query points so zero-area rectangles intersect edges.
const pointTolerance = 1e-9

type indexEntry struct {
	region int
	part   int
	rect   rtreego.Rect
}

func (e *indexEntry) Bounds() rtreego.Rect { return e.rect }

// RegionIndex is an R-tree over the bounding boxes of region parts. It
// narrows a point query to the parts whose box contains the point before
// running the exact polygon test.
type RegionIndex struct {
	tree    *rtreego.Rtree
	regions []CategoryRegion
}

// NewRegionIndex indexes every non-empty part of regions.
func NewRegionIndex(regions []CategoryRegion) *RegionIndex {
	idx := &RegionIndex{
		tree:    rtreego.NewTree(2, 8, 32),
		regions: regions,
	}
	for ri, r := range regions {
		for pi, part := range r.Parts {
			if len(part) == 0 {
				continue
			}
			b := part.Bounds()
			rect, err := rtreego.NewRectFromPoints(
				rtreego.Point{b.MinLng, b.MinLat},
				rtreego.Point{b.MaxLng, b.MaxLat},
			)
			if err != nil {
				continue
			}
			idx.tree.Insert(&indexEntry{region: ri, part: pi, rect: rect})
		}
	}
	return idx
}

// Covering returns the categories whose region contains p, sorted by name.
func (idx *RegionIndex) Covering(p spatial.LatLon) []facility.Category {
	if idx == nil || idx.tree.Size() == 0 {
		return nil
	}
	hits := idx.tree.SearchIntersect(rtreego.Point{p.Lon, p.Lat}.ToRect(pointTolerance))

	seen := make(map[int]bool)
	var out []facility.Category
	for _, h := range hits {
		e := h.(*indexEntry)
		if seen[e.region] {
			continue
		}
		if idx.regions[e.region].Parts[e.part].Contains(p) {
			seen[e.region] = true
			out = append(out, idx.regions[e.region].Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
