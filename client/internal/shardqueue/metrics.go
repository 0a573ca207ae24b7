package shardqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// queueDepth is only updated in the worker goroutine, so each shard has a
// single writer.
var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk",
			Subsystem: "mutation_lane",
			Name:      "submissions_total",
			Help:      "Mutations accepted into a lane.",
		},
		[]string{"shard"},
	)

	queueFullTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk",
			Subsystem: "mutation_lane",
			Name:      "queue_full_total",
			Help:      "Enqueue attempts that timed out because the lane was full.",
		},
		[]string{"shard"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "desk",
			Subsystem: "mutation_lane",
			Name:      "retries_total",
			Help:      "Retries of recoverable mutation failures.",
		},
		[]string{"shard"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "desk",
			Subsystem: "mutation_lane",
			Name:      "run_duration_seconds",
			Help:      "Mutation execution latency per attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"shard"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "desk",
			Subsystem: "mutation_lane",
			Name:      "queue_depth",
			Help:      "Current depth of each lane.",
		},
		[]string{"shard"},
	)
)

func labelFor(i int) string { return strconv.Itoa(i) }
