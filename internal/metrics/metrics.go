// Package metrics declares the facilitator's Prometheus collectors.
// Grounded on vitwit-x402-go's metrics/prometheus.go, which registers
// request counters and settlement histograms for the same kind of
// payment-facilitation service; this repo narrows that to the
// counters spec.md's components actually produce.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts Gateway requests by route and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_requests_total",
			Help: "Total Gateway requests by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	// SweepDuration measures Finality Confirmer sweep wall-clock time.
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facilitator_confirmer_sweep_duration_seconds",
			Help:    "Duration of a single Finality Confirmer sweep pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SweepRecords counts non-terminal records examined per sweep.
	SweepRecords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facilitator_confirmer_sweep_records",
			Help:    "Number of non-terminal records examined per sweep.",
			Buckets: []float64{0, 1, 5, 10, 25, 50},
		},
	)

	// VerifyOutcomes and SettleOutcomes count Verifier/Settler lifecycle
	// hook observations by network and result, wired from
	// internal/hooks rather than hardcoded into the algorithm bodies.
	VerifyOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_verify_outcomes_total",
			Help: "Verify attempts by network and outcome (valid, invalid, error).",
		},
		[]string{"network", "outcome"},
	)
	SettleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facilitator_settle_outcomes_total",
			Help: "Settle attempts by network and outcome (status or error).",
		},
		[]string{"network", "outcome"},
	)
)

// Register adds every collector to reg. Call once at startup.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(RequestsTotal, SweepDuration, SweepRecords, VerifyOutcomes, SettleOutcomes)
}
