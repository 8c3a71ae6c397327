// Package metrics holds the Prometheus collectors for generation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "localchat_generation_duration_seconds",
		Help:    "Wall-clock duration of completed generation runs.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~128s
	})

	TokensGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localchat_generation_tokens_total",
		Help: "Non-empty fragments streamed to callers.",
	})

	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localchat_generation_failures_total",
		Help: "Generation runs that ended with an engine error.",
	})

	BudgetOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localchat_generation_budget_overruns_total",
		Help: "Completed generation runs that exceeded the configured time budget.",
	})

	GenerationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "localchat_generations_in_flight",
		Help: "Generation runs currently holding an engine slot.",
	})
)
