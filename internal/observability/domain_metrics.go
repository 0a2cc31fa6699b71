package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	routeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_route_decisions_total",
			Help: "Total number of router decisions by route (none when no route matched).",
		},
		[]string{"route", "cached"},
	)
	pipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_pipeline_outcomes_total",
			Help: "Total number of answered questions by route and terminal stage.",
		},
		[]string{"route", "stage"},
	)
	pipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopassist_pipeline_duration_seconds",
			Help:    "End-to-end latency of answering one question.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"route"},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopassist_query_rows_returned",
			Help:    "Rows returned by validated catalog queries.",
			Buckets: []float64{0, 1, 3, 5, 10, 25, 50, 100},
		},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shopassist_query_duration_ms",
			Help:    "Catalog query execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopassist_llm_request_duration_seconds",
			Help:    "Latency of calls to the text-generation service.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"operation", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		routeDecisionsTotal,
		pipelineOutcomesTotal,
		pipelineDurationSeconds,
		queryRowsReturned,
		queryDurationMs,
		llmRequestDurationSeconds,
	)
}

func ObserveRouteDecision(route string, cached bool) {
	if route == "" {
		route = "none"
	}
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	routeDecisionsTotal.WithLabelValues(route, cachedLabel).Inc()
}

func ObservePipelineOutcome(route, stage string, elapsed time.Duration) {
	if route == "" {
		route = "none"
	}
	pipelineOutcomesTotal.WithLabelValues(route, stage).Inc()
	pipelineDurationSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

func ObserveQuery(rows int, elapsed time.Duration) {
	if rows < 0 {
		rows = 0
	}
	queryRowsReturned.Observe(float64(rows))
	queryDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveLLMCall(operation, status string, elapsed time.Duration) {
	llmRequestDurationSeconds.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}
