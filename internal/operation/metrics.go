package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notesync",
		Subsystem: "scheduler",
		Name:      "operations_total",
		Help:      "Operations joined by the scheduler, by name and outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notesync",
		Subsystem: "scheduler",
		Name:      "operation_duration_seconds",
		Help:      "Time from start until the scheduler observed the operation as terminal.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notesync",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Operations waiting behind the running one.",
	})

	fanoutInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "notesync",
		Subsystem: "fanout",
		Name:      "inflight",
		Help:      "Fan-out children currently holding a semaphore slot.",
	})
)
