package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Captures counts capture jobs by outcome (queued|dropped|stored|failed|skipped).
	Captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "misuse_captures_total",
			Help: "Total number of capture jobs by outcome",
		},
		[]string{"outcome"},
	)

	// GeoLookups counts geo resolutions by result (hit|miss|error).
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "misuse_geo_lookups_total",
			Help: "Total number of geo resolutions by result",
		},
		[]string{"result"},
	)

	GeoLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "misuse_geo_upstream_seconds",
			Help:    "Upstream geo lookup latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueueDepth tracks capture jobs waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "misuse_capture_queue_depth",
			Help: "Number of capture jobs waiting for a worker",
		},
	)

	// HTTPRequests measures request latency on the public listener.
	HTTPRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "misuse_http_request_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "kind", "status"},
	)
)
