// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "locater"

// ── Location ─────────────────────────────────────────────────────────────────

// AcquisitionsTotal counts finished acquisitions.
// Label outcome: ok, services_disabled, permission_denied, timeout, superseded, unknown.
var AcquisitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquisitions_total",
		Help:      "Location acquisitions by outcome.",
	},
	[]string{"outcome"},
)

var AcquisitionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "acquisition_duration_seconds",
		Help:      "Time from acquisition start to result, including permission prompts.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	},
)

var GeocodingDegradedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocoding_degraded_total",
		Help:      "Entries produced without a street/place label because reverse geocoding failed.",
	},
)

// StaleDeliveriesTotal counts device reports dropped because their request was
// no longer outstanding. Label kind: position, position_error.
var StaleDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_deliveries_total",
		Help:      "Late or duplicate device deliveries that were discarded.",
	},
	[]string{"kind"},
)

// ── Weather ──────────────────────────────────────────────────────────────────

// WeatherCacheTotal counts cache lookups. Label result: hit, miss.
var WeatherCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weather_cache_total",
		Help:      "Weather cache lookups by result.",
	},
	[]string{"result"},
)

var WeatherErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weather_errors_total",
		Help:      "Weather lookups that failed after retries, by reason.",
	},
	[]string{"reason"},
)

// ── Transfer ─────────────────────────────────────────────────────────────────

// ImportRowsTotal counts CSV rows. Label result: imported, duplicate, invalid.
var ImportRowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "CSV import rows by result.",
	},
	[]string{"result"},
)

// ── HTTP ─────────────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts served requests by route template, method and status.
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	},
	[]string{"route", "method", "status"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route"},
)
