package rangemodel

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/facility"
)

func TestClampDensity(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-10, MinDensity},
		{0, MinDensity},
		{100, 100},
		{2500, 2500},
		{5000, 5000},
		{1e9, MaxDensity},
		{math.Inf(1), MaxDensity},
		{math.NaN(), ReferenceDensity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampDensity(tt.in), "in=%v", tt.in)
	}
}

func TestRangeKM_ReferencePoint(t *testing.T) {
	m := New(nil)
	assert.Equal(t, 5.0, m.RangeKM(facility.Hospital, 50, 1000))
	assert.Equal(t, 1.0, m.RangeKM(facility.ATM, 50, 1000))
	assert.Equal(t, 2.0, m.RangeKM(facility.MustCategory("library"), 50, 1000), "unknown falls back to 2km")
}

func TestRangeKM_ScenarioA_DensityShrinksRange(t *testing.T) {
	m := New(nil)
	r1 := m.RangeKM(facility.Hospital, 50, 1000)
	r2 := m.RangeKM(facility.Hospital, 50, 2000)
	assert.Less(t, r2, r1)
	assert.InDelta(t, 5/math.Sqrt2, r2, 0.01)
}

func TestRangeKM_MonotoneInDensity(t *testing.T) {
	m := New(nil)
	for _, cat := range append(facility.KnownCategories(), facility.MustCategory("library")) {
		for _, capacity := range []int{1, 10, 50, 100} {
			prev := math.Inf(1)
			for d := 0.0; d <= 6000; d += 50 {
				r := m.RangeKM(cat, capacity, d)
				assert.LessOrEqual(t, r, prev, "%s cap=%d density=%v", cat, capacity, d)
				assert.Greater(t, r, 0.0)
				prev = r
			}
		}
	}
}

func TestRangeKM_MonotoneInCapacity(t *testing.T) {
	m := New(nil)
	for _, cat := range append(facility.KnownCategories(), facility.MustCategory("library")) {
		for _, d := range []float64{100, 750, 1000, 3000, 5000} {
			prev := 0.0
			for c := -5; c <= 120; c++ {
				r := m.RangeKM(cat, c, d)
				assert.GreaterOrEqual(t, r, prev, "%s cap=%d density=%v", cat, c, d)
				prev = r
			}
		}
	}
}

func TestRangeKM_ClampsToProfileBounds(t *testing.T) {
	m := New(nil)
	p := m.Catalog().Lookup(facility.Hospital)

	assert.Equal(t, p.MaxKM, m.RangeKM(facility.Hospital, 100, 100))
	assert.Equal(t, p.MinKM, m.RangeKM(facility.Hospital, 1, 5000))
}

func TestRangeKM_Deterministic(t *testing.T) {
	m := New(nil)
	a := m.RangeKM(facility.School, 37, 1234.5)
	for range 100 {
		assert.Equal(t, a, m.RangeKM(facility.School, 37, 1234.5))
	}
}

func TestCatalog_FallbackStyleIsDeterministic(t *testing.T) {
	c := DefaultCatalog()
	lib := facility.MustCategory("public_library")

	p1 := c.Lookup(lib)
	p2 := c.Lookup(facility.MustCategory("Public Library"))
	assert.Equal(t, p1, p2)
	assert.Equal(t, "Public Library", p1.Label)
	assert.Contains(t, fallbackPalette, p1.Color)
	assert.False(t, c.Has(lib))
	assert.True(t, c.Has(facility.Hospital))
}

func TestParseCatalog_Overrides(t *testing.T) {
	data := []byte(`
fallback:
  base_km: 3
  min_km: 0.5
  max_km: 9
categories:
  Pharmacy:
    base_km: 1.5
    min_km: 0.3
    max_km: 4
    label: Chemist
  hospital:
    base_km: 8
    min_km: 2
    max_km: 20
`)
	c, err := ParseCatalog(data)
	require.NoError(t, err)

	m := New(c)
	assert.Equal(t, 1.5, m.RangeKM(facility.MustCategory("pharmacy"), 50, 1000))
	assert.Equal(t, "Chemist", c.Lookup(facility.MustCategory("pharmacy")).Label)
	assert.Equal(t, 8.0, m.RangeKM(facility.Hospital, 50, 1000))
	assert.Equal(t, 3.0, m.RangeKM(facility.MustCategory("museum"), 50, 1000))
	assert.Equal(t, 2.0, m.RangeKM(facility.School, 50, 1000), "untouched entries keep defaults")
}

func TestParseCatalog_RejectsBadProfile(t *testing.T) {
	_, err := ParseCatalog([]byte("categories:\n  clinic: {base_km: 0, min_km: 1, max_km: 2}\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("fallback: {base_km: 1, min_km: 3, max_km: 2}\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("categories: [not, a, map]"))
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  clinic: {base_km: 1, min_km: 0.2, max_km: 3}\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.True(t, c.Has(facility.MustCategory("clinic")))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
