package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/facility"
)

// withTestConfig points the package config at a fresh SQLite file.
func withTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "cli.db")},
		Engine: config.EngineConfig{
			CircleVertices: 48, TopN: 10, MaxTopN: 100, CacheTTLMinutes: 30, UnionConcurrency: 2, BBoxPadding: 0.1,
		},
		Server: config.ServerConfig{Port: 8080},
		Log:    config.LogConfig{Level: "info", Format: "json"},
	}
	t.Cleanup(func() { cfg = prev })
}

func seededEngine(t *testing.T, fs ...facility.Facility) *engine.Engine {
	t.Helper()
	withTestConfig(t)
	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	if len(fs) > 0 {
		_, err = st.AddFacilities(ctx, fs)
		require.NoError(t, err)
	}
	eng, err := newEngine(st)
	require.NoError(t, err)
	return eng
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "analyze", "resources", "coverage", "extent", "import", "boundary", "facility", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "coverage-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"lat", "lon", "density", "limit"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s", name)
	}
	assert.Equal(t, "1000", analyzeCmd.Flags().Lookup("density").DefValue)
}

func TestBoundaryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range boundaryCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"set", "reset", "show"} {
		assert.True(t, names[name], "boundary should have subcommand %q", name)
	}
}

func TestInitStore_UnknownDriver(t *testing.T) {
	withTestConfig(t)
	cfg.Store.Driver = "oracle"
	_, err := initStore(context.Background())
	assert.Error(t, err)
}

func TestNewEngine_CatalogFile(t *testing.T) {
	withTestConfig(t)
	path := filepath.Join(t.TempDir(), "ranges.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  pharmacy: {base_km: 1.5, min_km: 0.3, max_km: 4, label: Pharmacy}\n"), 0644))
	cfg.Ranges.CatalogFile = path

	eng, err := newEngine(nil)
	require.NoError(t, err)
	assert.True(t, eng.Catalog().Has(facility.MustCategory("pharmacy")))

	cfg.Ranges.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = newEngine(nil)
	assert.Error(t, err)
}

func TestRunAnalyze(t *testing.T) {
	eng := seededEngine(t, facility.Facility{
		ID: "h1", Name: "General", Category: facility.Hospital, Capacity: 50, Geometry: facility.NewPoint(12.97, 77.59),
	})

	var buf bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &buf, eng, 12.97, 77.59, 1000, 0))

	var res struct {
		IsDesert        bool     `json:"is_desert"`
		CoveredServices []string `json:"covered_services"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.False(t, res.IsDesert)
	assert.Equal(t, []string{"hospital"}, res.CoveredServices)

	err := runAnalyze(context.Background(), &buf, eng, 95, 0, 1000, 0)
	var ve *facility.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lat", ve.Field)
}

func TestRunResources(t *testing.T) {
	eng := seededEngine(t,
		facility.Facility{ID: "a", Category: facility.ATM, Capacity: 50, Geometry: facility.NewPoint(1, 1)},
		facility.Facility{ID: "b", Category: facility.ATM, Capacity: 50, Geometry: facility.NewPoint(2, 2)},
	)

	var buf bytes.Buffer
	require.NoError(t, runResources(context.Background(), &buf, eng, 1000))
	var res []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	require.Len(t, res, 2)
	assert.InDelta(t, 1.0, res[0]["effective_range_km"], 1e-9)
}

func TestRunCoverage(t *testing.T) {
	eng := seededEngine(t,
		facility.Facility{ID: "h1", Category: facility.Hospital, Capacity: 50, Geometry: facility.NewPoint(10, 10)},
		facility.Facility{ID: "s1", Category: facility.School, Capacity: 50, Geometry: facility.NewPoint(10, 10)},
	)

	var buf bytes.Buffer
	require.NoError(t, runCoverage(context.Background(), &buf, eng, 1000, false))
	assert.Contains(t, buf.String(), `"FeatureCollection"`)

	buf.Reset()
	require.NoError(t, runCoverage(context.Background(), &buf, eng, 1000, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "CATEGORY"))
	assert.True(t, strings.HasPrefix(lines[1], "hospital"))
	assert.True(t, strings.HasPrefix(lines[2], "school"))
}

func TestReadBoundaryFile(t *testing.T) {
	dir := t.TempDir()
	poly := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	feature := `{"type":"Feature","properties":{"name":"ward"},"geometry":` + poly + `}`

	for name, body := range map[string]string{"geometry.json": poly, "feature.json": feature} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))

		g, err := readBoundaryFile(path)
		require.NoError(t, err, name)
		ring, ok := g.Ring()
		require.True(t, ok, name)
		assert.Len(t, ring, 4, name)
	}

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type":"Point","coordinates":[1,2]}`), 0644))
	g, err := readBoundaryFile(bad)
	require.NoError(t, err)
	assert.False(t, (&facility.Boundary{Geometry: g}).Valid(), "a point is not a usable boundary")

	_, err = readBoundaryFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
