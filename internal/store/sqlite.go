package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/coverage-cli/internal/facility"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometries are
// stored as GeoJSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection serializes writers, so version bumps never hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	capacity   INTEGER NOT NULL CHECK (capacity BETWEEN 1 AND 100),
	geometry   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS project_boundary (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	geometry   TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_version (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);

INSERT OR IGNORE INTO dataset_version (id, version) VALUES (1, 0);

CREATE INDEX IF NOT EXISTS idx_facilities_category ON facilities(category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM dataset_version WHERE id = 1`).Scan(&v)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: get version")
	}
	return v, nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (facility.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	var snap facility.Snapshot
	if err := tx.QueryRowContext(ctx, `SELECT version FROM dataset_version WHERE id = 1`).Scan(&snap.Version); err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "sqlite: snapshot version")
	}
	if snap.Facilities, err = listFacilities(ctx, tx); err != nil {
		return facility.Snapshot{}, err
	}
	if snap.Boundary, err = getBoundary(ctx, tx); err != nil {
		return facility.Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return facility.Snapshot{}, eris.Wrap(err, "sqlite: commit snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) ListFacilities(ctx context.Context) ([]facility.Facility, error) {
	return listFacilities(ctx, s.db)
}

func (s *SQLiteStore) GetFacility(ctx context.Context, id string) (*facility.Facility, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, capacity, geometry FROM facilities WHERE id = ?`, id)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: facility %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get facility %s", id)
	}
	return &f, nil
}

func (s *SQLiteStore) AddFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error) {
	f, err := prepare(f)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, func(tx *sql.Tx) error {
		return insertFacility(ctx, tx, f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) AddFacilities(ctx context.Context, fs []facility.Facility) (int, error) {
	if len(fs) == 0 {
		return 0, nil
	}
	prepared := make([]facility.Facility, 0, len(fs))
	for _, f := range fs {
		p, err := prepare(f)
		if err != nil {
			return 0, err
		}
		prepared = append(prepared, p)
	}
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		for _, f := range prepared {
			if err := insertFacility(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(prepared), nil
}

func (s *SQLiteStore) UpdateFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error) {
	if f.ID == "" {
		return nil, &facility.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	f, err := prepare(f)
	if err != nil {
		return nil, err
	}
	geomJSON, err := json.Marshal(f.Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal geometry")
	}
	err = s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE facilities SET name = ?, category = ?, capacity = ?, geometry = ?, updated_at = ? WHERE id = ?`,
			f.Name, f.Category.String(), f.Capacity, string(geomJSON), time.Now().UTC(), f.ID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update facility %s", f.ID)
		}
		return checkRowsAffected(res, f.ID)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) DeleteFacility(ctx context.Context, id string) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM facilities WHERE id = ?`, id)
		if err != nil {
			return eris.Wrapf(err, "sqlite: delete facility %s", id)
		}
		return checkRowsAffected(res, id)
	})
}

func (s *SQLiteStore) GetBoundary(ctx context.Context) (*facility.Boundary, error) {
	return getBoundary(ctx, s.db)
}

func (s *SQLiteStore) SaveBoundary(ctx context.Context, b facility.Boundary) (*facility.Boundary, error) {
	if err := prepareBoundary(b); err != nil {
		return nil, err
	}
	geomJSON, err := json.Marshal(b.Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal boundary")
	}
	b.UpdatedAt = time.Now().UTC()
	err = s.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO project_boundary (id, geometry, updated_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET geometry = excluded.geometry, updated_at = excluded.updated_at`,
			string(geomJSON), b.UpdatedAt,
		)
		return eris.Wrap(err, "sqlite: save boundary")
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) ResetBoundary(ctx context.Context) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM project_boundary WHERE id = 1`)
		return eris.Wrap(err, "sqlite: reset boundary")
	})
}

// mutate runs fn and bumps the version in one transaction.
func (s *SQLiteStore) mutate(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE dataset_version SET version = version + 1 WHERE id = 1`); err != nil {
		return eris.Wrap(err, "sqlite: bump version")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// helpers

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertFacility(ctx context.Context, tx *sql.Tx, f facility.Facility) error {
	geomJSON, err := json.Marshal(f.Geometry)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal geometry")
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO facilities (id, name, category, capacity, geometry, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Category.String(), f.Capacity, string(geomJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert facility %s", f.ID)
}

func listFacilities(ctx context.Context, q querier) ([]facility.Facility, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, category, capacity, geometry FROM facilities ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facilities")
	}
	defer rows.Close() //nolint:errcheck

	out := []facility.Facility{}
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate facilities")
}

func getBoundary(ctx context.Context, q querier) (*facility.Boundary, error) {
	var geomJSON string
	var b facility.Boundary
	err := q.QueryRowContext(ctx,
		`SELECT geometry, updated_at FROM project_boundary WHERE id = 1`).Scan(&geomJSON, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get boundary")
	}
	if err := json.Unmarshal([]byte(geomJSON), &b.Geometry); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal boundary")
	}
	return &b, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "facility %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFacility(row scannable) (facility.Facility, error) {
	var f facility.Facility
	var category, geomJSON string
	if err := row.Scan(&f.ID, &f.Name, &category, &f.Capacity, &geomJSON); err != nil {
		return facility.Facility{}, err
	}
	cat, err := facility.ParseCategory(category)
	if err != nil {
		return facility.Facility{}, err
	}
	f.Category = cat
	if err := json.Unmarshal([]byte(geomJSON), &f.Geometry); err != nil {
		return facility.Facility{}, eris.Wrapf(err, "unmarshal geometry of %s", f.ID)
	}
	return f, nil
}
