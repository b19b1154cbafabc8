package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftbot_actions_received_total",
		Help: "Total number of user actions handed to the dispatcher, labelled by action identifier.",
	}, []string{"action"})

	ActionsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiftbot_actions_ignored_total",
		Help: "Total number of actions with an unrecognized identifier.",
	})

	ActionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiftbot_actions_dropped_total",
		Help: "Total number of actions rejected due to a full dispatch queue.",
	})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftbot_validation_failures_total",
		Help: "Total number of rejected logout forms, labelled by field.",
	}, []string{"field"})

	LedgerDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftbot_ledger_deliveries_total",
		Help: "Total number of ledger deliveries, labelled by event kind and outcome.",
	}, []string{"kind", "outcome"})

	LedgerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shiftbot_ledger_request_duration_ms",
		Help:    "Ledger request latency in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 8000},
	})

	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftbot_best_effort_failures_total",
		Help: "Total number of failed best-effort deliveries, labelled by channel.",
	}, []string{"channel"})

	UnexpectedErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shiftbot_unexpected_errors_total",
		Help: "Total number of actions that ended in the error boundary.",
	})

	MirrorPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftbot_mirror_published_total",
		Help: "Total number of event mirror publishes, labelled by status.",
	}, []string{"status"})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shiftbot_queue_utilization_ratio",
		Help: "Current dispatch queue utilization (0–1).",
	})
)
