package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the submission queue.
var (
	// itemsProcessed counts resolved processing passes.
	// Labels:
	//   - outcome: "completed", "duplicate", "invalid", "failed" or "requeued"
	itemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workreport_queue_processed_total",
		Help: "The total number of processing passes by outcome",
	}, []string{"outcome"})

	// processingDuration tracks pick-up to completion latency in seconds.
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workreport_queue_processing_duration_seconds",
		Help:    "Duration of successful item processing",
		Buckets: prometheus.DefBuckets,
	})

	// queueLatency tracks the time an item waits between enqueue and first pick-up.
	queueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "workreport_queue_latency_seconds",
		Help:    "Time spent pending before the first processing pass",
		Buckets: prometheus.DefBuckets,
	})

	// queueDepth is refreshed by the maintenance scheduler.
	// Labels:
	//   - state: "pending", "processing", "completed", "failed"
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workreport_queue_depth",
		Help: "Number of items in each state",
	}, []string{"state"})

	queueHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workreport_queue_healthy",
		Help: "1 when the pending backlog is below the healthy threshold",
	})

	// storageRetries counts inner retries by storage operation ("find", "create").
	storageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workreport_storage_retries_total",
		Help: "Transient storage errors retried by the retry policy",
	}, []string{"op"})

	// backupMirrors counts backup sink writes by result ("success", "error").
	backupMirrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workreport_backup_mirror_total",
		Help: "Backup sink mirror attempts by result",
	}, []string{"result"})
)

// PublishMetrics copies the current snapshot into the depth gauges.
func (q *Queue) PublishMetrics() {
	m := q.AggregateStatus()
	queueDepth.WithLabelValues(string(StatusPending)).Set(float64(m.Pending))
	queueDepth.WithLabelValues(string(StatusProcessing)).Set(float64(m.Processing))
	queueDepth.WithLabelValues(string(StatusCompleted)).Set(float64(m.Completed))
	queueDepth.WithLabelValues(string(StatusFailed)).Set(float64(m.Failed))
	if m.Healthy {
		queueHealthy.Set(1)
	} else {
		queueHealthy.Set(0)
	}
}
