// Package metrics exposes Prometheus instrumentation for the dispatch
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts inspection submissions by job type and
	// acceptance outcome (accepted/rejected).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patrol_submissions_total",
			Help: "Total number of inspection submissions received.",
		},
		[]string{"job_type", "outcome"},
	)

	// JobsProcessedTotal counts finished inspections by job type and
	// terminal status.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patrol_jobs_processed_total",
			Help: "Total number of inspections processed to a terminal status.",
		},
		[]string{"job_type", "status"},
	)

	// NotificationsTotal counts notification deliveries by kind and
	// outcome (ok/error).
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patrol_notifications_total",
			Help: "Total number of presentation-service notifications attempted.",
		},
		[]string{"kind", "outcome"},
	)

	// QueueDepth tracks the current number of durably queued tasks.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "patrol_queue_depth",
			Help: "Current number of pending tasks in the durable queue.",
		},
	)

	// ProcessingSeconds observes end-to-end inspection latency.
	ProcessingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patrol_processing_seconds",
			Help:    "Inspection processing time in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"job_type"},
	)
)
