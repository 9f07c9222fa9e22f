// Package metrics exposes prometheus instruments for batch operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PromNamespace         = "batchevm"
	BatchMetricsSubsystem = "batch"
)

// Operation label values.
const (
	OpSend   = "send"
	OpDeploy = "deploy"
	OpCall   = "call"
)

type Metrics struct {
	TxSuccess         *prometheus.CounterVec
	TxFailure         *prometheus.CounterVec
	SubmissionFailure *prometheus.CounterVec
	SigningFailure    *prometheus.CounterVec
	ConfirmationTime  prometheus.Histogram
	Operations        *prometheus.CounterVec
}

// NewMetrics builds the instruments and registers them with reg. A nil reg
// leaves them unregistered, which keeps tests and embedded use off the
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	labels := []string{"op"}
	m := &Metrics{
		TxSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "tx_success",
			Help:      "Number of transactions confirmed with a successful receipt.",
		}, labels),
		TxFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "tx_failure",
			Help:      "Number of transactions recorded as failed.",
		}, labels),
		SubmissionFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "submission_failure",
			Help:      "Number of transactions the node refused to accept.",
		}, labels),
		SigningFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "signing_failure",
			Help:      "Number of transactions that could not be signed.",
		}, labels),
		ConfirmationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "confirmation_ms",
			Help:      "Histogram of time between submission and receipt in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 1500, 2000, 5000, 10000, 15000, 20000, 30000, 60000, 90000, 120000},
		}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PromNamespace,
			Subsystem: BatchMetricsSubsystem,
			Name:      "operations",
			Help:      "Number of orchestrator operations executed.",
		}, labels),
	}

	if reg != nil {
		reg.MustRegister(
			m.TxSuccess,
			m.TxFailure,
			m.SubmissionFailure,
			m.SigningFailure,
			m.ConfirmationTime,
			m.Operations,
		)
	}
	return m
}
