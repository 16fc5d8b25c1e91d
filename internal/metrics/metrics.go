package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Experiment metrics
	ExperimentAssignments *prometheus.CounterVec
	ExperimentConversions *prometheus.CounterVec
	ExperimentIneligible  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the metrics registry, initializing it on first use
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			ExperimentAssignments: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "experiment_assignments_total",
					Help: "Variant assignments handed out, by experiment and variant",
				},
				[]string{"experiment", "variant"},
			),
			ExperimentConversions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "experiment_conversions_total",
					Help: "Conversions recorded against an assignment",
				},
				[]string{"experiment", "metric"},
			),
			ExperimentIneligible: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "experiment_ineligible_total",
					Help: "Variant lookups that resolved to no variant",
				},
				[]string{"experiment"},
			),
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Cache hits by cache name",
				},
				[]string{"cache"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Cache misses by cache name",
				},
				[]string{"cache"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Application errors by component",
				},
				[]string{"component"},
			),
		}
	})
	return instance
}
