package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for webhook intake and the sync engine
var (
	WebhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordersync_webhooks_received_total",
			Help: "Total number of webhooks received, by topic and intake result",
		},
		[]string{"topic", "result"},
	)

	SyncOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordersync_sync_outcomes_total",
			Help: "Total number of processed events, by event type and ledger status",
		},
		[]string{"event", "status"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ordersync_sync_duration_seconds",
			Help:    "Duration of event processing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	ConflictRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_conflict_retries_total",
			Help: "Total number of optimistic concurrency retries",
		},
	)

	RetriesExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_retries_exhausted_total",
			Help: "Total number of mutations abandoned after the retry budget",
		},
	)

	RateLimitWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ordersync_rate_limit_wait_seconds",
			Help:    "Time spent waiting for rate limit tokens",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"api"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ordersync_queue_depth",
			Help: "Number of jobs waiting in the queue",
		},
	)

	JobsDeduplicatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_jobs_deduplicated_total",
			Help: "Total number of enqueues suppressed by the dedupe window",
		},
	)

	JobsTimedOutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ordersync_jobs_timed_out_total",
			Help: "Total number of jobs that hit their timeout",
		},
	)
)

// Register registers all Prometheus metrics. Later calls are no-ops.
func Register() {
	registerOnce.Do(register)
}

var registerOnce sync.Once

func register() {
	prometheus.MustRegister(WebhooksReceivedTotal)
	prometheus.MustRegister(SyncOutcomesTotal)
	prometheus.MustRegister(SyncDuration)
	prometheus.MustRegister(ConflictRetriesTotal)
	prometheus.MustRegister(RetriesExhaustedTotal)
	prometheus.MustRegister(RateLimitWaitSeconds)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(JobsDeduplicatedTotal)
	prometheus.MustRegister(JobsTimedOutTotal)
}
