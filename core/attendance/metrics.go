package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scanDecisions counts scan outcomes by status
	scanDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mahudhurio",
		Name:      "scan_decisions_total",
		Help:      "Total attendance scans by decision status",
	}, []string{"status"})

	// sessionsCancelled counts sessions auto-cancelled for a teacher no-show
	sessionsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mahudhurio",
		Name:      "sessions_auto_cancelled_total",
		Help:      "Total sessions cancelled because the teacher did not check in",
	})

	// sweepDuration tracks auto-cancellation sweep latency
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mahudhurio",
		Name:      "sweep_duration_seconds",
		Help:      "Auto-cancellation sweep duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)
