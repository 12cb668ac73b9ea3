package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/coverage-cli/internal/db"
	"github.com/sells-group/coverage-cli/internal/facility"
)

// PostgresStore implements Store on PostGIS using pgxpool. Geometries travel
// as EWKB with SRID 4326.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS facilities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	capacity   INTEGER NOT NULL CHECK (capacity BETWEEN 1 AND 100),
	geom       geometry(Geometry, 4326) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facilities_category ON facilities(category);
CREATE INDEX IF NOT EXISTS idx_facilities_geom ON facilities USING GIST (geom);

CREATE TABLE IF NOT EXISTS project_boundary (
	id         SMALLINT PRIMARY KEY CHECK (id = 1),
	geom       geometry(Polygon, 4326) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dataset_version (
	id      SMALLINT PRIMARY KEY CHECK (id = 1),
	version BIGINT NOT NULL
);

INSERT INTO dataset_version (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := s.pool.QueryRow(ctx, `SELECT version FROM dataset_version WHERE id = 1`).Scan(&v); err != nil {
		return 0, eris.Wrap(err, "postgres: get version")
	}
	return v, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context) (facility.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "postgres: begin snapshot")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var snap facility.Snapshot
	if err := tx.QueryRow(ctx, `SELECT version FROM dataset_version WHERE id = 1`).Scan(&snap.Version); err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "postgres: snapshot version")
	}
	if snap.Facilities, err = pgListFacilities(ctx, tx); err != nil {
		return facility.Snapshot{}, err
	}
	if snap.Boundary, err = pgGetBoundary(ctx, tx); err != nil {
		return facility.Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "postgres: commit snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) ListFacilities(ctx context.Context) ([]facility.Facility, error) {
	return pgListFacilities(ctx, s.pool)
}

func (s *PostgresStore) GetFacility(ctx context.Context, id string) (*facility.Facility, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, category, capacity, ST_AsEWKB(geom) FROM facilities WHERE id = $1`, id)
	f, err := pgScanFacility(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: facility %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get facility %s", id)
	}
	return &f, nil
}

func (s *PostgresStore) AddFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error) {
	f, err := prepare(f)
	if err != nil {
		return nil, err
	}
	wkb, err := encodeGeometry(f.Geometry)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO facilities (id, name, category, capacity, geom) VALUES ($1, $2, $3, $4, ST_GeomFromEWKB($5))`,
			f.ID, f.Name, f.Category.String(), f.Capacity, wkb,
		)
		return eris.Wrapf(err, "postgres: insert facility %s", f.ID)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

var loadColumns = []string{"id", "name", "category", "capacity", "geom_ewkb"}

// AddFacilities COPYs the batch into a staging table and converts the EWKB
// column on insert, all in one transaction with the version bump.
func (s *PostgresStore) AddFacilities(ctx context.Context, fs []facility.Facility) (int, error) {
	if len(fs) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(fs))
	for _, f := range fs {
		p, err := prepare(f)
		if err != nil {
			return 0, err
		}
		wkb, err := encodeGeometry(p.Geometry)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{p.ID, p.Name, p.Category.String(), int32(p.Capacity), wkb})
	}

	err := s.mutate(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`CREATE TEMP TABLE _facility_load (id TEXT, name TEXT, category TEXT, capacity INTEGER, geom_ewkb BYTEA) ON COMMIT DROP`,
		); err != nil {
			return eris.Wrap(err, "postgres: create staging table")
		}
		if _, err := db.CopyFrom(ctx, tx, "_facility_load", loadColumns, rows); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO facilities (id, name, category, capacity, geom)
			 SELECT id, name, category, capacity, ST_GeomFromEWKB(geom_ewkb) FROM _facility_load`,
		)
		return eris.Wrap(err, "postgres: insert staged facilities")
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *PostgresStore) UpdateFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error) {
	if f.ID == "" {
		return nil, &facility.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	f, err := prepare(f)
	if err != nil {
		return nil, err
	}
	wkb, err := encodeGeometry(f.Geometry)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE facilities SET name = $1, category = $2, capacity = $3, geom = ST_GeomFromEWKB($4), updated_at = now() WHERE id = $5`,
			f.Name, f.Category.String(), f.Capacity, wkb, f.ID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update facility %s", f.ID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "facility %s", f.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) DeleteFacility(ctx context.Context, id string) error {
	return s.mutate(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM facilities WHERE id = $1`, id)
		if err != nil {
			return eris.Wrapf(err, "postgres: delete facility %s", id)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "facility %s", id)
		}
		return nil
	})
}

func (s *PostgresStore) GetBoundary(ctx context.Context) (*facility.Boundary, error) {
	return pgGetBoundary(ctx, s.pool)
}

func (s *PostgresStore) SaveBoundary(ctx context.Context, b facility.Boundary) (*facility.Boundary, error) {
	if err := prepareBoundary(b); err != nil {
		return nil, err
	}
	wkb, err := encodeGeometry(b.Geometry)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now().UTC()
	err = s.mutate(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO project_boundary (id, geom, updated_at) VALUES (1, ST_GeomFromEWKB($1), $2)
			 ON CONFLICT (id) DO UPDATE SET geom = EXCLUDED.geom, updated_at = EXCLUDED.updated_at`,
			wkb, b.UpdatedAt,
		)
		return eris.Wrap(err, "postgres: save boundary")
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) ResetBoundary(ctx context.Context) error {
	return s.mutate(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM project_boundary WHERE id = 1`)
		return eris.Wrap(err, "postgres: reset boundary")
	})
}

// mutate runs fn and bumps the version in one transaction.
func (s *PostgresStore) mutate(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE dataset_version SET version = version + 1 WHERE id = 1`); err != nil {
		return eris.Wrap(err, "postgres: bump version")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgListFacilities(ctx context.Context, q pgQuerier) ([]facility.Facility, error) {
	rows, err := q.Query(ctx, `SELECT id, name, category, capacity, ST_AsEWKB(geom) FROM facilities ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facilities")
	}
	defer rows.Close()

	out := []facility.Facility{}
	for rows.Next() {
		f, err := pgScanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate facilities")
}

func pgGetBoundary(ctx context.Context, q pgQuerier) (*facility.Boundary, error) {
	var wkb []byte
	var b facility.Boundary
	err := q.QueryRow(ctx, `SELECT ST_AsEWKB(geom), updated_at FROM project_boundary WHERE id = 1`).Scan(&wkb, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get boundary")
	}
	if b.Geometry, err = decodeGeometry(wkb); err != nil {
		return nil, eris.Wrap(err, "postgres: decode boundary")
	}
	return &b, nil
}

func pgScanFacility(row pgx.Row) (facility.Facility, error) {
	var f facility.Facility
	var category string
	var wkb []byte
	if err := row.Scan(&f.ID, &f.Name, &category, &f.Capacity, &wkb); err != nil {
		return facility.Facility{}, err
	}
	cat, err := facility.ParseCategory(category)
	if err != nil {
		return facility.Facility{}, err
	}
	f.Category = cat
	if f.Geometry, err = decodeGeometry(wkb); err != nil {
		return facility.Facility{}, eris.Wrapf(err, "decode geometry of %s", f.ID)
	}
	return f, nil
}

func encodeGeometry(g facility.Geometry) ([]byte, error) {
	t, err := g.Geom()
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(t, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode EWKB")
	}
	return data, nil
}

func decodeGeometry(data []byte) (facility.Geometry, error) {
	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return facility.Geometry{}, eris.Wrap(err, "postgres: decode EWKB")
	}
	return facility.FromGeom(t)
}
