// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Prediction cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_prediction_cache_hits_total",
			Help: "Prediction cache lookups that returned a stored prediction",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_prediction_cache_misses_total",
			Help: "Prediction cache lookups that found nothing",
		},
		[]string{"backend"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_prediction_cache_errors_total",
			Help: "Prediction cache backend failures",
		},
		[]string{"backend", "operation"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focus_prediction_cache_evictions_total",
			Help: "Entries evicted from the in-memory prediction cache",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "focus_prediction_cache_entries",
			Help: "Current number of entries in the in-memory prediction cache",
		},
	)

	// Prediction engine
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_predictions_computed_total",
			Help: "Predictions computed on cache miss, by scoring path",
		},
		[]string{"source"},
	)

	PredictionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focus_prediction_score",
			Help:    "Distribution of computed concentration scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// Model adapter
	ModelFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_model_fallbacks_total",
			Help: "Times the heuristic scorer replaced the model, by reason",
		},
		[]string{"reason"}, // "no_model", "error", "timeout", "circuit_open", "invalid_output"
	)

	ModelInferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focus_model_inference_duration_seconds",
			Help:    "Duration of model inference calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "focus_model_loaded",
			Help: "1 when a backing model is loaded, 0 in heuristic mode",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "focus_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focus_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	// Ingest
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_ingest_messages_total",
			Help: "Signal messages received over MQTT, by outcome",
		},
		[]string{"outcome"}, // "processed", "invalid", "dropped"
	)

	HistoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focus_history_writes_total",
			Help: "Records appended to the history sink",
		},
		[]string{"kind", "status"},
	)
)
