package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recommendation pipeline metrics
var (
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total recommendation requests by serving strategy",
		},
		[]string{"strategy"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation generation latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Total recommended movies served by source algorithm",
		},
		[]string{"algorithm"},
	)

	AlgorithmFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Times an algorithm could not serve and the next in the chain was used",
		},
		[]string{"from", "to"},
	)

	ModelRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_rebuilds_total",
			Help: "Model rebuild attempts by type, trigger and outcome",
		},
		[]string{"update_type", "trigger", "status"},
	)

	ModelRebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_rebuild_duration_seconds",
			Help:    "Model rebuild wall time in seconds",
			Buckets: []float64{.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"update_type"},
	)

	ImpressionsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "impressions_tracked_total",
			Help: "Recommendation impressions recorded by algorithm",
		},
		[]string{"algorithm"},
	)
)

// RecordRecommendation records one served recommendation request.
func RecordRecommendation(strategy string, served map[string]int, duration time.Duration) {
	RecommendationRequests.WithLabelValues(strategy).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	for algorithm, n := range served {
		RecommendationsServed.WithLabelValues(algorithm).Add(float64(n))
	}
}

// RecordFallback records one hop down the strategy chain.
func RecordFallback(from, to string) {
	AlgorithmFallbacks.WithLabelValues(from, to).Inc()
}

// RecordModelRebuild records a rebuild attempt and its duration.
func RecordModelRebuild(updateType, trigger string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	ModelRebuildsTotal.WithLabelValues(updateType, trigger, status).Inc()
	ModelRebuildDuration.WithLabelValues(updateType).Observe(duration.Seconds())
}

// RecordImpressions counts tracked impressions per algorithm.
func RecordImpressions(algorithm string, n int) {
	if n > 0 {
		ImpressionsTracked.WithLabelValues(algorithm).Add(float64(n))
	}
}
