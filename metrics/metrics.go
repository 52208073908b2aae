// Package metrics exposes Prometheus collectors for the gate: decision
// outcomes, fills, breaker trips, and per-scope portfolio gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_decisions_total",
			Help: "Risk decisions by action and reason code",
		},
		[]string{"action", "reason"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_fills_total",
			Help: "Executed fills by symbol and side",
		},
		[]string{"symbol", "side"},
	)

	fillNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskgate_fill_notional",
			Help:    "Distribution of fill notional values",
			Buckets: prometheus.ExponentialBuckets(10, 10, 7),
		},
		[]string{"symbol"},
	)

	haltsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_halts_total",
			Help: "Circuit breaker trips by scope and reason",
		},
		[]string{"scope", "reason"},
	)

	scopeEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_scope_equity",
			Help: "Current equity per scope",
		},
		[]string{"scope"},
	)

	scopeGrossExposure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_scope_gross_exposure",
			Help: "Current gross exposure per scope",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(decisionsTotal)
	prometheus.MustRegister(fillsTotal)
	prometheus.MustRegister(fillNotional)
	prometheus.MustRegister(haltsTotal)
	prometheus.MustRegister(scopeEquity)
	prometheus.MustRegister(scopeGrossExposure)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }

// RecordDecision counts one risk decision.
func RecordDecision(action, reason string) {
	decisionsTotal.WithLabelValues(action, reason).Inc()
}

// RecordFill counts one executed fill.
func RecordFill(symbol, side string, notional float64) {
	fillsTotal.WithLabelValues(symbol, side).Inc()
	fillNotional.WithLabelValues(symbol).Observe(notional)
}

// RecordHalt counts one breaker trip.
func RecordHalt(scope, reason string) {
	haltsTotal.WithLabelValues(scope, reason).Inc()
}

// UpdateScope refreshes the per-scope portfolio gauges.
func UpdateScope(scope string, equity, grossExposure float64) {
	scopeEquity.WithLabelValues(scope).Set(equity)
	scopeGrossExposure.WithLabelValues(scope).Set(grossExposure)
}
