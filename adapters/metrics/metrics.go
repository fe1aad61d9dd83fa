// Package metrics exposes Prometheus instrumentation for the admission
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the service.
type Collector struct {
	AdmissionsTotal   *prometheus.CounterVec
	AdmissionDuration *prometheus.HistogramVec
	RequestsInFlight  prometheus.Gauge
	PatchFailures     prometheus.Counter
	PatchDropped      prometheus.Counter
	FeatureLimitHits  *prometheus.CounterVec
}

// New creates and registers all metrics with the given registerer. Pass
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AdmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_admissions_total",
			Help: "Admission decisions by outcome, reason and tier.",
		}, []string{"outcome", "reason", "tier"}),

		AdmissionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codex_admission_duration_seconds",
			Help:    "Time spent deciding one admission, including hash verification.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"outcome"}),

		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "codex_requests_in_flight",
			Help: "Requests currently inside the admission pipeline.",
		}),

		PatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "codex_outcome_patch_failures_total",
			Help: "Usage log outcome patches that failed to apply.",
		}),

		PatchDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "codex_outcome_patch_dropped_total",
			Help: "Usage log outcome patches dropped because the queue was full.",
		}),

		FeatureLimitHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codex_feature_limit_hits_total",
			Help: "Feature-class limiter rejections by class.",
		}, []string{"class"}),
	}
}

// RecordAdmission records one decided admission.
func (c *Collector) RecordAdmission(outcome, reason, tier string, seconds float64) {
	c.AdmissionsTotal.WithLabelValues(outcome, reason, tier).Inc()
	c.AdmissionDuration.WithLabelValues(outcome).Observe(seconds)
}
