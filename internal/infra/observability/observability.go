// Package observability holds the Prometheus metrics for the service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests counts requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status class.",
}, []string{"route", "status"})

// HTTPDuration tracks request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "hearth",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"route"})

// ─── Chore Metrics ──────────────────────────────────────────────────────────

// CompletionsRecorded counts completion outcomes by action.
var CompletionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "chores",
	Name:      "completions_total",
	Help:      "Completion reconciliations by action (CREATE, TOGGLE, REJECT).",
}, []string{"action"})

// RewardsGranted counts allowance rewards credited.
var RewardsGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "chores",
	Name:      "rewards_granted_total",
	Help:      "Total allowance rewards credited to default envelopes.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerEntries counts audit entries written by type.
var LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "ledger",
	Name:      "entries_total",
	Help:      "Ledger audit entries written by type.",
}, []string{"type"})

// LedgerRejections counts ledger primitives rejected before mutation.
var LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Ledger operations rejected by precondition checks.",
}, []string{"reason"})

// ─── Exchange Rate Metrics ──────────────────────────────────────────────────

// RateLookups counts rate resolutions by source.
var RateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "rates",
	Name:      "lookups_total",
	Help:      "Exchange rate lookups by resolution source.",
}, []string{"source"})

// RateRefreshes counts background refresh attempts.
var RateRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hearth",
	Subsystem: "rates",
	Name:      "refreshes_total",
	Help:      "Background exchange-rate refresh attempts by outcome.",
}, []string{"outcome"})

// CachedPairs tracks the current size of the rate cache.
var CachedPairs = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "hearth",
	Subsystem: "rates",
	Name:      "cached_pairs",
	Help:      "Number of currency pairs currently cached.",
})
