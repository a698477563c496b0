// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "botevents"

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)
)

// Event Metrics
var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Inbound bot events by type and outcome",
		},
		[]string{"type", "status"},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Authentication failures by reason",
		},
		[]string{"reason"},
	)

	Lockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Lockouts started after repeated authentication failures",
		},
	)
)

// Ledger Metrics
var (
	ItemsDeposited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_deposited_total",
			Help:      "Inventory items created by deposits",
		},
	)

	ItemsWithdrawn = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_withdrawn_total",
			Help:      "Inventory items removed by withdrawals",
		},
	)

	CatalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result",
		},
		[]string{"result"},
	)
)

// Storage Metrics
var (
	StoreRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Storage operation retries by operation and error class",
		},
		[]string{"op", "class"},
	)

	StoreReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_reconnects_total",
			Help:      "Storage reconnects after a dropped connection",
		},
	)
)
