package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/boundary"
	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

type fakeSource struct {
	mu    sync.Mutex
	snap  facility.Snapshot
	err   error
	calls int
}

func (f *fakeSource) Snapshot(context.Context) (facility.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakeSource) set(version int64, facs []facility.Facility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Version = version
	f.snap.Facilities = facs
}

func hospital(id string, lat, lon float64) facility.Facility {
	return facility.Facility{ID: id, Name: id, Category: facility.Hospital, Capacity: 50, Geometry: facility.NewPoint(lat, lon)}
}

func TestListResources_Empty(t *testing.T) {
	e := New(&fakeSource{}, Config{})
	res, err := e.ListResources(context.Background(), 1000)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestListResources_AnnotatesPointsOnly(t *testing.T) {
	zone := facility.Facility{
		ID:       "zone",
		Category: facility.MustCategory("ward"),
		Capacity: 10,
		Geometry: facility.NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}),
	}
	src := &fakeSource{}
	src.set(1, []facility.Facility{hospital("h1", 1, 1), zone})
	e := New(src, Config{})

	res, err := e.ListResources(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.NotNil(t, res[0].EffectiveRangeKM)
	assert.Equal(t, 5.0, *res[0].EffectiveRangeKM)
	assert.Equal(t, "Hospital", res[0].Label)
	assert.Nil(t, res[1].EffectiveRangeKM)
	assert.Equal(t, "Ward", res[1].Label)
	assert.NotEmpty(t, res[1].Color)

	dense, err := e.ListResources(context.Background(), 2000)
	require.NoError(t, err)
	assert.Less(t, *dense[0].EffectiveRangeKM, *res[0].EffectiveRangeKM)
}

func TestListResources_SkipsMalformedZone(t *testing.T) {
	bad := facility.Facility{
		ID:       "bad",
		Category: facility.Park,
		Capacity: 10,
		Geometry: facility.NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}}),
	}
	good := facility.Facility{
		ID:       "good",
		Category: facility.Park,
		Capacity: 10,
		Geometry: facility.NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}),
	}
	require.Error(t, bad.Geometry.Validate())

	src := &fakeSource{}
	src.set(1, []facility.Facility{hospital("h1", 1, 1), bad, good})
	e := New(src, Config{})

	res, err := e.ListResources(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "h1", res[0].ID)
	assert.Equal(t, "good", res[1].ID)

	// The malformed zone does not break point analysis either.
	out, err := e.Analyze(context.Background(), 1, 1, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hospital"}, out.CoveredServices)
}

func TestAnalyze_UsesCacheUntilVersionChanges(t *testing.T) {
	src := &fakeSource{}
	src.set(1, []facility.Facility{hospital("h1", 10, 10)})
	e := New(src, Config{})
	ctx := context.Background()

	res, err := e.Analyze(ctx, 10, 10.01, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hospital"}, res.CoveredServices)

	_, err = e.Analyze(ctx, 10, 10.02, 1000, 0)
	require.NoError(t, err)
	stats := e.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// Facility moved far away: version bump invalidates the cached region.
	src.set(2, []facility.Facility{hospital("h1", 40, 40)})
	res, err = e.Analyze(ctx, 10, 10.01, 1000, 0)
	require.NoError(t, err)
	assert.True(t, res.IsDesert)
	assert.Equal(t, int64(2), e.CacheStats().LatestVersion)
	assert.Equal(t, 1, e.CacheStats().Entries)
}

func TestAnalyze_DensityShrinksCoverage(t *testing.T) {
	src := &fakeSource{}
	src.set(1, []facility.Facility{hospital("h1", 0, 0)})
	e := New(src, Config{})
	ctx := context.Background()

	// About 4.4km east: inside 5km at density 1000, outside ~3.5km at 2000.
	lon := 0.04
	res, err := e.Analyze(ctx, 0, lon, 1000, 0)
	require.NoError(t, err)
	assert.False(t, res.IsDesert)

	res, err = e.Analyze(ctx, 0, lon, 2000, 0)
	require.NoError(t, err)
	assert.True(t, res.IsDesert)
}

func TestAnalyze_InvalidPoint(t *testing.T) {
	src := &fakeSource{}
	e := New(src, Config{})
	_, err := e.Analyze(context.Background(), -100, 0, 1000, 0)
	var ve *facility.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "lat", ve.Field)
	assert.Equal(t, 0, src.calls, "validation happens before the store is read")
}

func TestEngine_SourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	e := New(src, Config{})
	ctx := context.Background()

	_, err := e.ListResources(ctx, 1000)
	assert.ErrorContains(t, err, "engine: snapshot")
	_, err = e.Analyze(ctx, 0, 0, 1000, 0)
	assert.Error(t, err)
	_, err = e.Coverage(ctx, 1000)
	assert.Error(t, err)
	_, err = e.Extent(ctx)
	assert.Error(t, err)
}

func TestCoverageAndExtent(t *testing.T) {
	src := &fakeSource{}
	src.set(3, []facility.Facility{
		hospital("h1", 1, 1),
		hospital("h2", 1.02, 1.02),
		{ID: "s1", Category: facility.School, Capacity: 50, Geometry: facility.NewPoint(1.5, 1.5)},
	})
	e := New(src, Config{CircleVertices: 32, BBoxPadding: 0.2})
	ctx := context.Background()

	set, err := e.Coverage(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, set.Regions, 2)
	assert.Equal(t, "hospital", set.Regions[0].Category.String())
	assert.Equal(t, 2, set.Regions[0].FacilityCount)

	ext, err := e.Extent(ctx)
	require.NoError(t, err)
	assert.Equal(t, boundary.ModeAuto, ext.Mode)
	assert.InDelta(t, 1-0.1, ext.BBox.MinLat, 1e-9)

	ring := spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 3}, {Lat: 3, Lon: 3}, {Lat: 3, Lon: 0}}
	src.mu.Lock()
	src.snap.Boundary = &facility.Boundary{Geometry: facility.NewPolygon(ring)}
	src.snap.Version = 4
	src.mu.Unlock()

	ext, err = e.Extent(ctx)
	require.NoError(t, err)
	assert.Equal(t, boundary.ModeExplicit, ext.Mode)
	assert.Equal(t, ring, ext.Ring)
}
