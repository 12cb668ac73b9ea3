package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/boundary"
	"github.com/sells-group/coverage-cli/internal/classify"
	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/engine"
	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/ingest"
	"github.com/sells-group/coverage-cli/internal/rangemodel"
	"github.com/sells-group/coverage-cli/internal/store"
)

// Engine is the query surface served over HTTP.
type Engine interface {
	ListResources(ctx context.Context, density float64) ([]engine.Resource, error)
	Analyze(ctx context.Context, lat, lon, density float64, limit int) (classify.Result, error)
	Coverage(ctx context.Context, density float64) (*coverage.Set, error)
	Extent(ctx context.Context) (boundary.Extent, error)
	Catalog() *rangemodel.Catalog
	CacheStats() coverage.CacheStats
}

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 64 << 20
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *facility.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case eris.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		zap.L().Error("api: request failed",
			zap.String("component", "api"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &facility.ValidationError{Field: name, Reason: "must be a number"}
	}
	return v, nil
}

func requiredFloat(r *http.Request, name string) (float64, error) {
	if strings.TrimSpace(r.URL.Query().Get(name)) == "" {
		return 0, &facility.ValidationError{Field: name, Reason: "is required"}
	}
	return floatParam(r, name, 0)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &facility.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return v, nil
}

func density(r *http.Request) (float64, error) {
	return floatParam(r, "density", rangemodel.ReferenceDensity)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var ve *facility.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return &facility.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.engine.CacheStats(),
	})
}

type categoryInfo struct {
	Category string `json:"category"`
	rangemodel.Profile
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	c := s.engine.Catalog()
	out := make([]categoryInfo, 0, len(c.Names()))
	for _, name := range c.Names() {
		out = append(out, categoryInfo{Category: name, Profile: c.Lookup(facility.MustCategory(name))})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	d, err := density(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.engine.ListResources(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	lat, err := requiredFloat(r, "lat")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lon, err := requiredFloat(r, "lon")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := density(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.engine.Analyze(r.Context(), lat, lon, d, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	d, err := density(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set, err := s.engine.Coverage(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := json.Marshal(set.FeatureCollection(s.engine.Catalog()))
	if err != nil {
		writeError(w, r, eris.Wrap(err, "api: encode coverage"))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExtent(w http.ResponseWriter, r *http.Request) {
	ext, err := s.engine.Extent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

// facilityRequest accepts either a GeoJSON geometry or a bare lat/lon pair.
type facilityRequest struct {
	Name     string             `json:"name"`
	Category string             `json:"category"`
	Capacity int                `json:"capacity"`
	Lat      *float64           `json:"lat"`
	Lon      *float64           `json:"lon"`
	Geometry *facility.Geometry `json:"geometry"`
}

func (req facilityRequest) facility(id string) (facility.Facility, error) {
	cat, err := facility.ParseCategory(req.Category)
	if err != nil {
		return facility.Facility{}, err
	}
	f := facility.Facility{ID: id, Name: req.Name, Category: cat, Capacity: req.Capacity}
	switch {
	case req.Geometry != nil:
		f.Geometry = *req.Geometry
	case req.Lat != nil && req.Lon != nil:
		f.Geometry = facility.NewPoint(*req.Lat, *req.Lon)
	case req.Lat == nil:
		return facility.Facility{}, &facility.ValidationError{Field: "lat", Reason: "is required"}
	default:
		return facility.Facility{}, &facility.ValidationError{Field: "lon", Reason: "is required"}
	}
	return f, nil
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := req.facility("")
	if err != nil {
		writeError(w, r, err)
		return
	}
	added, err := s.store.AddFacility(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req facilityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := req.facility(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.store.UpdateFacility(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFacility(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type boundaryResponse struct {
	Boundary *facility.Boundary `json:"boundary"`
	Extent   boundary.Extent    `json:"extent"`
}

func (s *Server) handleGetBoundary(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBoundary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	ext, err := s.engine.Extent(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boundaryResponse{Boundary: b, Extent: ext})
}

func (s *Server) handleSaveBoundary(w http.ResponseWriter, r *http.Request) {
	var b facility.Boundary
	if err := decodeBody(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.store.SaveBoundary(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleResetBoundary(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetBoundary(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport accepts a multipart upload with a zipped shapefile in "file"
// and the category in "category".
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, &facility.ValidationError{Field: "file", Reason: "a .zip shapefile upload is required"})
		return
	}
	defer file.Close() //nolint:errcheck

	if !strings.EqualFold(filepath.Ext(header.Filename), ".zip") {
		writeError(w, r, &facility.ValidationError{Field: "file", Reason: "must be a .zip archive"})
		return
	}

	tmp, err := os.CreateTemp("", "coverage-import-*.zip")
	if err != nil {
		writeError(w, r, eris.Wrap(err, "api: create upload file"))
		return
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		writeError(w, r, eris.Wrap(err, "api: store upload"))
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, r, eris.Wrap(err, "api: store upload"))
		return
	}

	capacity := 0
	if raw := r.FormValue("capacity"); raw != "" {
		if capacity, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, &facility.ValidationError{Field: "capacity", Reason: "must be an integer"})
			return
		}
	}
	res, err := s.importer.ImportFile(r.Context(), tmp.Name(), ingest.Options{
		Category:      r.FormValue("category"),
		CategoryField: r.FormValue("category_field"),
		Capacity:      capacity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
