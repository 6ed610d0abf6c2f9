package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recipientsSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatcher",
			Name:      "recipients_processed_total",
			Help:      "Total recipients processed by dispatch batches.",
		},
		[]string{"mode", "outcome"},
	)

	dispatchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatcher",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of dispatch batches.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	dispatchJobsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatcher",
			Name:      "jobs_consumed_total",
			Help:      "Total dispatch jobs consumed from the broker.",
		},
		[]string{"status"},
	)
)
