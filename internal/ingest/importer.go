package ingest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/metrics"
	"github.com/sells-group/coverage-cli/internal/spatial"
)

// Sink receives imported facilities.
type Sink interface {
	ListFacilities(ctx context.Context) ([]facility.Facility, error)
	AddFacilities(ctx context.Context, fs []facility.Facility) (int, error)
}

// Options controls how shapefile records become facilities.
type Options struct {
	// Category applies to every record unless CategoryField is set and the
	// record carries a non-empty value.
	Category      string
	CategoryField string
	// Capacity defaults to facility.DefaultCapacity.
	Capacity int
}

// Result summarizes one import.
type Result struct {
	Read       int `json:"read"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Importer loads shapefiles into a Sink.
type Importer struct {
	sink Sink
}

// NewImporter creates an Importer writing to sink.
func NewImporter(sink Sink) *Importer {
	return &Importer{sink: sink}
}

// ImportFile reads path and adds its records as Point facilities. Records at
// exactly the coordinate of an existing point facility, or of an earlier
// record in the same file, are skipped. All new facilities are added in one
// batch.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (Result, error) {
	if opts.Category == "" && opts.CategoryField == "" {
		return Result{}, &facility.ValidationError{Field: "category", Reason: "must not be empty"}
	}
	records, err := ReadShapefile(path, opts.CategoryField)
	if err != nil {
		return Result{}, err
	}

	existing, err := im.sink.ListFacilities(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "ingest: list existing facilities")
	}
	seen := make(map[spatial.LatLon]struct{}, len(existing)+len(records))
	for _, f := range existing {
		if loc, ok := f.Location(); ok {
			seen[loc] = struct{}{}
		}
	}

	log := zap.L().With(zap.String("component", "ingest"), zap.String("path", path))
	res := Result{Read: len(records)}
	batch := make([]facility.Facility, 0, len(records))
	for i, rec := range records {
		if _, dup := seen[rec.Location]; dup {
			res.Duplicates++
			continue
		}
		f, err := toFacility(rec, opts)
		if err != nil {
			var ve *facility.ValidationError
			if !errors.As(err, &ve) {
				return res, err
			}
			log.Warn("skipping invalid record", zap.Int("record", i), zap.String("field", ve.Field), zap.String("reason", ve.Reason))
			res.Invalid++
			continue
		}
		seen[rec.Location] = struct{}{}
		batch = append(batch, f)
	}

	if len(batch) > 0 {
		n, err := im.sink.AddFacilities(ctx, batch)
		if err != nil {
			metrics.ImportRecordsTotal.WithLabelValues("error").Add(float64(len(batch)))
			return res, eris.Wrap(err, "ingest: add facilities")
		}
		res.Imported = n
	}

	metrics.ImportRecordsTotal.WithLabelValues("imported").Add(float64(res.Imported))
	metrics.ImportRecordsTotal.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	metrics.ImportRecordsTotal.WithLabelValues("invalid").Add(float64(res.Invalid))
	log.Info("shapefile imported",
		zap.Int("read", res.Read),
		zap.Int("imported", res.Imported),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
	)
	return res, nil
}

func toFacility(rec Record, opts Options) (facility.Facility, error) {
	raw := opts.Category
	if rec.Category != "" {
		raw = rec.Category
	}
	cat, err := facility.ParseCategory(raw)
	if err != nil {
		return facility.Facility{}, err
	}
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = facility.DefaultCapacity
	}
	f := facility.Facility{
		Name:     rec.Name,
		Category: cat,
		Capacity: capacity,
		Geometry: facility.NewPoint(rec.Location.Lat, rec.Location.Lon),
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return facility.Facility{}, err
	}
	return f, nil
}
