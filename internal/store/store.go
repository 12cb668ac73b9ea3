// Package store persists facilities and the project boundary, and keeps the
// facility-set version that coverage caches are keyed on.
package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coverage-cli/internal/facility"
)

// ErrNotFound is returned when a facility id does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for facilities and the boundary.
// Every successful mutation increments the version in the same transaction.
type Store interface {
	// Snapshot returns the version, facilities and boundary as of one
	// point in time.
	Snapshot(ctx context.Context) (facility.Snapshot, error)
	Version(ctx context.Context) (int64, error)

	// Facilities
	ListFacilities(ctx context.Context) ([]facility.Facility, error)
	GetFacility(ctx context.Context, id string) (*facility.Facility, error)
	AddFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error)
	AddFacilities(ctx context.Context, fs []facility.Facility) (int, error)
	UpdateFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error)
	DeleteFacility(ctx context.Context, id string) error

	// Boundary
	GetBoundary(ctx context.Context) (*facility.Boundary, error)
	SaveBoundary(ctx context.Context, b facility.Boundary) (*facility.Boundary, error)
	ResetBoundary(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql", "pgx":
		return withRetry(ctx, DefaultRetryConfig(), "connect", func(ctx context.Context) (*PostgresStore, error) {
			return NewPostgres(ctx, dsn, poolCfg)
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// prepare normalizes and validates f, assigning an id when missing.
func prepare(f facility.Facility) (facility.Facility, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return facility.Facility{}, err
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return f, nil
}

// prepareBoundary checks that b holds a polygon with at least three
// distinct vertices.
func prepareBoundary(b facility.Boundary) error {
	if b.Geometry.Kind() != facility.GeometryPolygon {
		return &facility.ValidationError{Field: "geometry", Reason: "boundary must be a polygon"}
	}
	return b.Geometry.Validate()
}
