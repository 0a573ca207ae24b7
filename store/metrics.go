package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	staleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk",
			Subsystem: "store",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request for the same record or list was issued.",
		},
		[]string{"store", "op"},
	)

	readFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk",
			Subsystem: "store",
			Name:      "read_failures_total",
			Help:      "Read operations that degraded to an empty result.",
		},
		[]string{"store", "op"},
	)
)
