package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal counts PredictLocation calls by outcome
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprobe_predictions_total",
			Help: "Total number of location predictions by status",
		},
		[]string{"status"},
	)

	// PredictionDurationSeconds measures end-to-end inference latency
	PredictionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoprobe_prediction_duration_seconds",
			Help:    "Duration of location predictions",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// EmbedRequestDurationSeconds measures embedding provider calls
	EmbedRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geoprobe_embed_request_duration_seconds",
			Help:    "Duration of embedding provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // image, locations
	)

	// EmbedRequestsTotal counts embedding provider calls by kind and status
	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprobe_embed_requests_total",
			Help: "Total number of embedding provider requests",
		},
		[]string{"kind", "status"},
	)

	// ScoringBatchesTotal counts catalog batches by outcome
	ScoringBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprobe_scoring_batches_total",
			Help: "Total number of catalog batches scored or skipped",
		},
		[]string{"status"}, // ok, skipped
	)

	// ScoredPoints tracks how many catalog points received a score per request
	ScoredPoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoprobe_scored_points",
			Help:    "Number of catalog points scored per prediction",
			Buckets: prometheus.ExponentialBuckets(1, 10, 8),
		},
	)

	// CatalogPoints reports the size of the loaded coordinate catalog
	CatalogPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geoprobe_catalog_points",
			Help: "Number of points in the loaded coordinate catalog",
		},
	)

	// TopConfidence tracks the confidence of the best single match
	TopConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geoprobe_top_confidence",
			Help:    "Confidence of the highest-ranked prediction",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// BreakerState reports circuit breaker state (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geoprobe_breaker_state",
			Help: "Current circuit breaker state per breaker",
		},
		[]string{"name"},
	)

	// RateLimitRequestsTotal counts outbound requests passing the limiter
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprobe_rate_limit_requests_total",
			Help: "Total number of outbound embedding requests by limiter outcome",
		},
		[]string{"status"}, // allowed, throttled
	)

	// SimdOpsTotal counts vector kernel invocations by implementation
	SimdOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geoprobe_simd_ops_total",
			Help: "Total number of batched vector kernel invocations",
		},
		[]string{"op", "impl"},
	)
)
