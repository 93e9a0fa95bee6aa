// Package metrics holds the prometheus collectors for the query pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claimwise_stage_latency_ms",
		Help:    "Latency of pipeline stages in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"stage"})

	fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimwise_fallbacks_total",
		Help: "Stages that returned their local fallback",
	}, []string{"stage"})

	ruleOverrides = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimwise_rule_overrides_total",
		Help: "Hard coverage rules that corrected a generated decision",
	}, []string{"rule"})

	routes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimwise_routes_total",
		Help: "Queries by routed flow",
	}, []string{"route"})

	decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimwise_decisions_total",
		Help: "Final decisions by outcome",
	}, []string{"outcome"})

	retrievedClauses = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "claimwise_retrieved_clauses",
		Help:    "Clauses returned per retrieval after deduplication",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10, 20},
	})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimwise_retrieval_cache_total",
		Help: "Per-phrase retrieval cache lookups",
	}, []string{"result"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// Register makes sure all collectors are registered with the default registry.
func Register() {
	ensureRegistered()
}

// ObserveStage records the latency of a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(float64(time.Since(start).Milliseconds()))
}

// IncFallback counts a stage returning its fallback value.
func IncFallback(stage string) {
	ensureRegistered()
	fallbacks.WithLabelValues(stage).Inc()
}

// IncRuleOverride counts a hard rule correcting a proposal.
func IncRuleOverride(rule string) {
	ensureRegistered()
	ruleOverrides.WithLabelValues(rule).Inc()
}

// IncRoute counts a routed query.
func IncRoute(route string) {
	ensureRegistered()
	routes.WithLabelValues(route).Inc()
}

// IncDecision counts a final decision outcome.
func IncDecision(outcome string) {
	ensureRegistered()
	decisions.WithLabelValues(outcome).Inc()
}

// ObserveClauses records how many clauses a retrieval returned.
func ObserveClauses(n int) {
	ensureRegistered()
	retrievedClauses.Observe(float64(n))
}

// IncCache counts a retrieval cache hit or miss.
func IncCache(hit bool) {
	ensureRegistered()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		stageLatency, fallbacks, ruleOverrides, routes, decisions, retrievedClauses, cacheLookups,
	}
}
