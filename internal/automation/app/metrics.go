package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	automationFiresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "automation_fires_total",
			Help:      "Total number of automation fire attempts.",
		},
		[]string{"trigger_type", "status"},
	)
)
