// Package api exposes the coverage engine and facility store over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/coverage-cli/internal/facility"
	"github.com/sells-group/coverage-cli/internal/ingest"
	"github.com/sells-group/coverage-cli/internal/metrics"
)

// FacilityStore is the part of the store the HTTP surface mutates.
type FacilityStore interface {
	GetFacility(ctx context.Context, id string) (*facility.Facility, error)
	AddFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error)
	UpdateFacility(ctx context.Context, f facility.Facility) (*facility.Facility, error)
	DeleteFacility(ctx context.Context, id string) error
	GetBoundary(ctx context.Context) (*facility.Boundary, error)
	SaveBoundary(ctx context.Context, b facility.Boundary) (*facility.Boundary, error)
	ResetBoundary(ctx context.Context) error
}

// ShapefileImporter loads an uploaded shapefile archive.
type ShapefileImporter interface {
	ImportFile(ctx context.Context, path string, opts ingest.Options) (ingest.Result, error)
}

// Options configures the HTTP server.
type Options struct {
	// RateLimitRPS of zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	// Importer enables POST /api/import when set.
	Importer ShapefileImporter
}

// Server routes HTTP requests to the engine and store.
type Server struct {
	engine   Engine
	store    FacilityStore
	importer ShapefileImporter
	opts     Options
}

// New creates a Server.
func New(eng Engine, st FacilityStore, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{engine: eng, store: st, importer: opts.Importer, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimitRPS > 0 {
			r.Use(rateLimit(s.opts.RateLimitRPS, s.opts.RateLimitBurst))
		}
		r.Get("/categories", s.handleCategories)
		r.Get("/resources", s.handleResources)
		r.Put("/resources/{id}", s.handleUpdateResource)
		r.Delete("/resources/{id}", s.handleDeleteResource)
		r.Post("/allocate", s.handleAllocate)
		r.Get("/analyze", s.handleAnalyze)
		r.Get("/coverage", s.handleCoverage)
		r.Get("/extent", s.handleExtent)
		r.Get("/boundary", s.handleGetBoundary)
		r.Put("/boundary", s.handleSaveBoundary)
		r.Delete("/boundary", s.handleResetBoundary)
		if s.importer != nil {
			r.Post("/import", s.handleImport)
		}
	})
	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records request metrics and an access log line under the route
// pattern rather than the raw path.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		dur := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPDurationMs.WithLabelValues(route).Observe(float64(dur.Microseconds()) / 1000)
		zap.L().Debug("http request",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", sw.status),
			zap.Duration("duration", dur),
		)
	})
}

func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
