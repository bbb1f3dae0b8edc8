package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of wizard submissions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SubmissionStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "submission_step_duration_seconds",
			Help:    "Duration of each submission saga step in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "step"},
	)

	CompensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_compensations_total",
			Help: "Total number of undo actions executed, by action and result",
		},
		[]string{"action", "result"},
	)

	EnrichmentDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_dispatch_total",
			Help: "Enrichment trigger outcomes as seen by the submitter",
		},
		[]string{"status"},
	)

	EnrichmentResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_results_total",
			Help: "Enrichment results ingested, by source and result",
		},
		[]string{"source", "result"},
	)

	LifecycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Status and stage changes applied to applications",
		},
		[]string{"field", "to"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// GinMiddleware records request latency by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
