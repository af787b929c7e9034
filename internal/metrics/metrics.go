// Package metrics provides Prometheus metrics for the shell core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fsOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshell_fs_operations_total",
			Help: "Filesystem operations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	flushOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshell_flush_operations_total",
			Help: "Queued operations handled by flush, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	flushQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webshell_flush_queue_depth",
			Help: "Operations currently waiting for the next flush",
		},
	)

	initializeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webshell_cache_initialize_duration_seconds",
			Help:    "Duration of full cache loads from the backing store",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webshell_cache_entries",
			Help: "Nodes currently held in the cache",
		},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webshell_commands_total",
			Help: "Command dispatches by outcome",
		},
		[]string{"outcome"},
	)

	processStartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webshell_process_starts_total",
			Help: "Foreground processes started",
		},
	)

	processStopsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webshell_process_stops_total",
			Help: "Foreground processes stopped by the user",
		},
	)
)

// RecordFSOp records one filesystem call. outcome is "ok" or "error".
func RecordFSOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	fsOpsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordFlushOp records the fate of one queued operation: "persisted" or
// "dropped".
func RecordFlushOp(kind, outcome string) {
	flushOpsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetQueueDepth publishes the pending queue length.
func SetQueueDepth(n int) {
	flushQueueDepth.Set(float64(n))
}

// ObserveInitialize records the duration of a cache load.
func ObserveInitialize(d time.Duration) {
	initializeDuration.Observe(d.Seconds())
}

// SetCacheEntries publishes the cache size.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordCommand records a dispatch outcome: "ok", "error" or "not_found".
func RecordCommand(outcome string) {
	commandsTotal.WithLabelValues(outcome).Inc()
}

// RecordProcessStart counts a foreground process start.
func RecordProcessStart() { processStartsTotal.Inc() }

// RecordProcessStop counts a user-initiated stop.
func RecordProcessStop() { processStopsTotal.Inc() }

// Handler returns the scrape handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
