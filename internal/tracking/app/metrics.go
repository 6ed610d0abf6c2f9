package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "delivery_events_total",
			Help:      "Total normalized delivery events processed.",
		},
		[]string{"event_type", "outcome"},
	)

	reconcileRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tracker",
			Name:      "reconcile_runs_total",
			Help:      "Total reconciliation sweeps against the provider stats API.",
		},
		[]string{"status"},
	)
)
