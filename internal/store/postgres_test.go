package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func mustEWKB(t *testing.T, g facility.Geometry) []byte {
	t.Helper()
	data, err := encodeGeometry(g)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Version(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT version FROM dataset_version`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(42)))

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFacility(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	geom := facility.NewPoint(12.5, 77.25)

	mock.ExpectQuery(`SELECT id, name, category, capacity, ST_AsEWKB\(geom\) FROM facilities WHERE id = \$1`).
		WithArgs("h1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "category", "capacity", "geom"}).
			AddRow("h1", "General", "hospital", 60, mustEWKB(t, geom)))

	f, err := s.GetFacility(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, facility.Hospital, f.Category)
	assert.Equal(t, 60, f.Capacity)
	loc, ok := f.Location()
	require.True(t, ok)
	assert.Equal(t, spatial.LatLon{Lat: 12.5, Lon: 77.25}, loc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFacility_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM facilities WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetFacility(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddFacility_BumpsVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO facilities`).
		WithArgs("s1", "School 1", "school", 40, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE dataset_version SET version = version \+ 1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	f, err := s.AddFacility(context.Background(), facility.Facility{
		ID: "s1", Name: "School 1", Category: facility.School, Capacity: 40, Geometry: facility.NewPoint(1, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddFacility_Invalid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.AddFacility(context.Background(), facility.Facility{Category: facility.School})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing reaches the database")
}

func TestPostgresStore_AddFacilities_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _facility_load`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_facility_load"}, loadColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO facilities .* FROM _facility_load`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`UPDATE dataset_version`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := s.AddFacilities(context.Background(), []facility.Facility{
		{Name: "a", Category: facility.ATM, Geometry: facility.NewPoint(1, 1)},
		{Name: "b", Category: facility.ATM, Geometry: facility.NewPoint(2, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteFacility_NotFoundRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM facilities WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := s.DeleteFacility(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateFacility(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE facilities SET name = \$1`).
		WithArgs("Moved", "bank", 50, pgxmock.AnyArg(), "b1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE dataset_version`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	_, err := s.UpdateFacility(context.Background(), facility.Facility{
		ID: "b1", Name: "Moved", Category: facility.Bank, Geometry: facility.NewPoint(3, 3),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Snapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	zone := facility.NewPolygon(spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}})
	boundary := facility.NewPolygon(spatial.Ring{{Lat: -1, Lon: -1}, {Lat: -1, Lon: 2}, {Lat: 2, Lon: 2}, {Lat: 2, Lon: -1}})
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT version FROM dataset_version`).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(int64(9)))
	mock.ExpectQuery(`SELECT id, name, category, capacity, ST_AsEWKB\(geom\) FROM facilities ORDER BY id`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "category", "capacity", "geom"}).
			AddRow("a", "A", "atm", 10, mustEWKB(t, facility.NewPoint(0.5, 0.5))).
			AddRow("z", "Z", "ward", 5, mustEWKB(t, zone)))
	mock.ExpectQuery(`FROM project_boundary`).
		WillReturnRows(pgxmock.NewRows([]string{"geom", "updated_at"}).AddRow(mustEWKB(t, boundary), updated))
	mock.ExpectCommit()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), snap.Version)
	require.Len(t, snap.Facilities, 2)
	assert.True(t, snap.Facilities[0].IsPoint())
	assert.Equal(t, facility.GeometryPolygon, snap.Facilities[1].Geometry.Kind())
	require.NotNil(t, snap.Boundary)
	assert.Equal(t, updated, snap.Boundary.UpdatedAt)
	assert.True(t, snap.Boundary.Valid())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBoundary_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM project_boundary`).WillReturnError(pgx.ErrNoRows)

	b, err := s.GetBoundary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAndResetBoundary(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ring := spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO project_boundary .* ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE dataset_version`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM project_boundary`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE dataset_version`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	_, err := s.SaveBoundary(context.Background(), facility.Boundary{Geometry: facility.NewPolygon(ring)})
	require.NoError(t, err)
	require.NoError(t, s.ResetBoundary(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEWKBRoundTrip(t *testing.T) {
	ring := spatial.Ring{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 1}, {Lat: 1, Lon: 0}}
	for _, g := range []facility.Geometry{facility.NewPoint(-33.9, 151.2), facility.NewPolygon(ring)} {
		data, err := encodeGeometry(g)
		require.NoError(t, err)
		back, err := decodeGeometry(data)
		require.NoError(t, err)
		assert.Equal(t, g, back)
	}
}
