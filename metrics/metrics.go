// Package metrics provides Prometheus metrics for the planning service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_estimates_total",
			Help: "Total number of estimates produced, by source",
		},
		[]string{"source"},
	)
	EstimatesDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_estimates_degraded_total",
			Help: "Total number of estimates that fell back to rules, by reason",
		},
		[]string{"reason"},
	)
	EstimatorLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pacer_estimator_call_duration_seconds",
			Help:    "Duration of external estimator calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	TasksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"priority", "complexity"},
	)
	CompletionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_completions_recorded_total",
			Help: "Total number of completions fed to the learner",
		},
		[]string{"complexity"},
	)
	AccuracyRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pacer_accuracy_ratio",
			Help:    "Actual over estimated hours of completed tasks",
			Buckets: []float64{.25, .5, .75, .9, 1, 1.1, 1.25, 1.5, 2, 3, 5},
		},
	)
	PaceFactor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacer_pace_factor",
			Help: "Current overall pace factor",
		},
	)
	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_recommendations_total",
			Help: "Total number of daily recommendations, by workload",
		},
		[]string{"workload"},
	)
	AvailableHours = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pacer_available_hours",
			Help: "Available hours of the most recent recommendation",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pacer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pacer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordEstimate(source string) {
	EstimatesTotal.WithLabelValues(source).Inc()
}

func RecordEstimateDegraded(reason string) {
	EstimatesDegraded.WithLabelValues(reason).Inc()
}

func RecordEstimatorCall(duration time.Duration) {
	EstimatorLatency.Observe(duration.Seconds())
}

func RecordTaskCreated(priority, complexity string) {
	TasksCreated.WithLabelValues(priority, complexity).Inc()
}

func RecordCompletion(complexity string, ratio float64) {
	CompletionsRecorded.WithLabelValues(complexity).Inc()
	AccuracyRatio.Observe(ratio)
}

func UpdatePaceFactor(f float64) {
	PaceFactor.Set(f)
}

func RecordRecommendation(workload string, availableHours float64) {
	Recommendations.WithLabelValues(workload).Inc()
	AvailableHours.Set(availableHours)
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
