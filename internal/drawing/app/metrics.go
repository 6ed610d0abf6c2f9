package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var drawingRunsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "drawing",
		Name:      "runs_total",
		Help:      "Total drawing runs by outcome.",
	},
	[]string{"tier", "outcome"},
)
