// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UnionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coverage_union_duration_seconds",
		Help:    "Time spent merging the footprints of one category",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"category"})
	UnionFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_union_fallback_total",
		Help: "Categories returned as unmerged footprints after a union failure",
	}, []string{"category"})
	RegionCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_region_cache_hits_total",
		Help: "Coverage region cache hits",
	})
	RegionCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_region_cache_misses_total",
		Help: "Coverage region cache misses",
	})
	AnalyzeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_analyze_total",
		Help: "Point analyses by outcome",
	}, []string{"outcome"})
	ImportRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_import_records_total",
		Help: "Shapefile records processed by outcome",
	}, []string{"outcome"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coverage_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(UnionDurationSeconds)
	prometheus.MustRegister(UnionFallbackTotal)
	prometheus.MustRegister(RegionCacheHitsTotal)
	prometheus.MustRegister(RegionCacheMissesTotal)
	prometheus.MustRegister(AnalyzeTotal)
	prometheus.MustRegister(ImportRecordsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
