// Package metrics exposes the process-wide Prometheus instruments for the
// pipeline. Collectors register once against the default registry; Handler
// serves them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StagesTotal counts stage executions by terminal status
	// (succeeded or failed).
	StagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "pipeline",
		Name:      "stages_total",
		Help:      "Stage executions by stage and terminal status.",
	}, []string{"stage", "status"})

	// RetriesTotal counts provider-call retries per stage.
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "pipeline",
		Name:      "retries_total",
		Help:      "Provider call retries by stage.",
	}, []string{"stage"})

	// FallbacksTotal counts provider chain transitions per stage.
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "pipeline",
		Name:      "fallbacks_total",
		Help:      "Provider fallback transitions by stage and provider fallen back to.",
	}, []string{"stage", "to_provider"})

	// GateDecisions counts quality gate outcomes.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "gate",
		Name:      "decisions_total",
		Help:      "Quality gate decisions by outcome.",
	}, []string{"decision"})

	// RunsTotal counts pipeline runs by terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by terminal status.",
	}, []string{"status"})

	// RunCostUSD accumulates provider spend per run date label-free; the
	// per-provider split lives in the cost tracker, not in metrics.
	RunCostUSD = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "showrunner",
		Subsystem: "pipeline",
		Name:      "run_cost_usd_total",
		Help:      "Cumulative provider spend in USD across runs.",
	})
)

// Handler serves the default registry for Prometheus scrapes.
func Handler() http.Handler {
	return promhttp.Handler()
}
