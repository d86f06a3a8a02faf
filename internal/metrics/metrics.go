// Package metrics registers the Prometheus metrics emitted by the router
// pipeline. Import this package (via blank import) from the server entry
// point to register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request-level counters and histograms.
var (
	// RequestsTotal counts completed requests labelled by operation family,
	// provider, model, and outcome ("success", "error", "cancelled").
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelrouter_requests_total",
			Help: "Total number of requests processed by the router.",
		},
		[]string{"operation", "provider", "model", "status"},
	)

	// RequestDuration observes end-to-end request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelrouter_request_duration_seconds",
			Help:    "End-to-end request duration in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "provider", "model"},
	)

	// TokensInput counts total input-side tokens sent to providers.
	TokensInput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelrouter_tokens_input_total",
			Help: "Total input tokens sent to providers.",
		},
		[]string{"provider", "model"},
	)

	// TokensOutput counts total output-side tokens received from providers.
	TokensOutput = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelrouter_tokens_output_total",
			Help: "Total output tokens received from providers.",
		},
		[]string{"provider", "model"},
	)

	// CostTotal accumulates realized request cost in USD.
	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelrouter_cost_usd_total",
			Help: "Total realized request cost in USD.",
		},
		[]string{"provider", "model"},
	)

	// SelectionScore observes the winning model's selection score.
	SelectionScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelrouter_selection_score",
			Help:    "Score of the model chosen by the selection engine.",
			Buckets: []float64{.05, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1, 1.5, 2, 3},
		},
		[]string{"provider", "model"},
	)

	// PipelineErrors counts pipeline failures broken down by operation and
	// error kind.
	PipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelrouter_pipeline_errors_total",
			Help: "Total pipeline errors by operation and kind.",
		},
		[]string{"operation", "kind"},
	)
)
