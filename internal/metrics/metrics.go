// Package metrics exposes Prometheus collectors for the review service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests      *prometheus.CounterVec
	Predictions   *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	RecordWrites  *prometheus.CounterVec
	ArtifactState *prometheus.GaugeVec
	RateLimited   prometheus.Counter
}

// New registers the collectors with reg, or the default registry when reg
// is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimen_requests_total",
				Help: "Classification requests by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		Predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimen_predictions_total",
				Help: "Predictions by engine, model and sentiment category",
			},
			[]string{"engine", "model", "category"},
		),
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentimen_request_duration_seconds",
				Help:    "Time spent classifying a request",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimen_cache_lookups_total",
				Help: "Result cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		RecordWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentimen_record_writes_total",
				Help: "Review records persisted, by outcome",
			},
			[]string{"outcome"},
		),
		ArtifactState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentimen_artifact_state",
				Help: "Artifact state per engine: 0 not loaded, 1 ready, 2 failed",
			},
			[]string{"engine"},
		),
		RateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sentimen_rate_limited_total",
				Help: "HTTP requests rejected by the rate limiter",
			},
		),
	}
}
