package facility

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/spatial"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		kind  Kind
		known bool
	}{
		{"hospital", "hospital", KindHospital, true},
		{"  Hospital ", "hospital", KindHospital, true},
		{"Petrol Pump", "petrol_pump", KindPetrolPump, true},
		{"fire-station", "fire_station", KindFireStation, true},
		{"ATM", "atm", KindATM, true},
		{"library", "library", KindOther, false},
		{"Community  Hall", "community_hall", KindOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
			assert.Equal(t, tt.kind, c.Kind())
			assert.Equal(t, tt.known, c.Known())
		})
	}
}

func TestParseCategory_Empty(t *testing.T) {
	_, err := ParseCategory("   ")
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "category", ve.Field)
}

func TestCategory_EqualityAcrossSpellings(t *testing.T) {
	assert.Equal(t, Hospital, MustCategory("HOSPITAL"))
	assert.Equal(t, MustCategory("Library"), MustCategory("library"))
	assert.NotEqual(t, MustCategory("library"), MustCategory("museum"))
}

func TestCategory_TextRoundTrip(t *testing.T) {
	var c Category
	require.NoError(t, json.Unmarshal([]byte(`"Petrol Pump"`), &c))
	assert.Equal(t, PetrolPump, c)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `"petrol_pump"`, string(out))
}

func TestGeometry_PointJSON(t *testing.T) {
	g := NewPoint(12.5, 77.25)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[77.25,12.5]}`, string(data))

	var back Geometry
	require.NoError(t, json.Unmarshal(data, &back))
	p, ok := back.Point()
	require.True(t, ok)
	assert.Equal(t, spatial.LatLon{Lat: 12.5, Lon: 77.25}, p)
}

func TestGeometry_PolygonJSON(t *testing.T) {
	data := []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`)

	var g Geometry
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, GeometryPolygon, g.Kind())

	ring, ok := g.Ring()
	require.True(t, ok)
	assert.Len(t, ring, 4, "closing vertex is implicit")
	assert.NoError(t, g.Validate())
}

func TestGeometry_UnsupportedType(t *testing.T) {
	var g Geometry
	err := json.Unmarshal([]byte(`{"type":"LineString","coordinates":[[0,0],[1,1]]}`), &g)
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "geometry", ve.Field)
}

func TestGeometry_Validate(t *testing.T) {
	tests := []struct {
		name  string
		g     Geometry
		field string
	}{
		{"point ok", NewPoint(10, 10), ""},
		{"lat out of range", NewPoint(95, 10), "lat"},
		{"lon out of range", NewPoint(10, 190), "lon"},
		{"polygon ok", NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}), ""},
		{"polygon too few", NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}}), "geometry"},
		{"polygon repeated", NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}}), "geometry"},
		{"none", Geometry{}, "geometry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.g.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestFacility_NormalizeAndValidate(t *testing.T) {
	f := Facility{Name: "  City Hospital ", Category: Hospital, Capacity: 250, Geometry: NewPoint(1, 2)}
	f.Normalize()
	assert.Equal(t, "City Hospital", f.Name)
	assert.Equal(t, MaxCapacity, f.Capacity)
	assert.NoError(t, f.Validate())

	unset := Facility{Category: School, Geometry: NewPoint(1, 2)}
	unset.Normalize()
	assert.Equal(t, DefaultCapacity, unset.Capacity)
	assert.Equal(t, "Unknown Facility", unset.Name)

	neg := Facility{Category: School, Capacity: -4, Geometry: NewPoint(1, 2)}
	neg.Normalize()
	assert.Equal(t, MinCapacity, neg.Capacity)
}

func TestFacility_ValidateReservedCategory(t *testing.T) {
	f := Facility{Category: MustCategory(BoundaryCategory), Capacity: 10, Geometry: NewPoint(1, 2)}
	err := f.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "category", ve.Field)
}

func TestSplit(t *testing.T) {
	all := []Facility{
		{ID: "a", Geometry: NewPoint(0, 0)},
		{ID: "b", Geometry: NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}})},
		{ID: "c"},
	}
	points, zones := Split(all)
	require.Len(t, points, 1)
	require.Len(t, zones, 1)
	assert.Equal(t, "a", points[0].ID)
	assert.Equal(t, "b", zones[0].ID)
}

func TestBoundary_Valid(t *testing.T) {
	var nilBoundary *Boundary
	assert.False(t, nilBoundary.Valid())
	assert.False(t, (&Boundary{Geometry: NewPoint(0, 0)}).Valid())
	assert.True(t, (&Boundary{Geometry: NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}})}).Valid())
}
