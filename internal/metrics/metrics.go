package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docker_metrics_stream"

var (
	registryRefreshErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_refresh_errors_total",
			Help:      "Total number of failed workload registry refreshes (previous set retained).",
		},
	)

	registryWorkloads = promauto.With(prometheus.DefaultRegisterer).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_workloads",
			Help:      "Number of workloads in the currently visible registry set.",
		},
	)

	malformedWorkloadsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_malformed_workloads_total",
			Help:      "Total number of containers skipped because they expose no public port.",
		},
	)

	collectionCycleDuration = promauto.With(prometheus.DefaultRegisterer).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_cycle_duration_seconds",
			Help:      "Wall-clock duration of one metrics collection cycle.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	batchSnapshots = promauto.With(prometheus.DefaultRegisterer).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_snapshots",
			Help:      "Number of snapshots in the most recently published batch.",
		},
	)

	workloadMetricsErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workload_metrics_errors_total",
			Help:      "Total number of failed per-workload metrics fetches.",
		},
		[]string{"workload"},
	)

	alertsTriggeredTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Total number of alerts raised by the alert evaluator.",
		},
		[]string{"rule", "severity"},
	)

	alertEvaluationErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_evaluation_errors_total",
			Help:      "Total number of alert evaluations that failed, panicked or timed out.",
		},
	)

	eventsIngestedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total number of lifecycle events received from the runtime.",
		},
		[]string{"status"},
	)

	eventSubscriptionErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_subscription_errors_total",
			Help:      "Total number of event subscriptions that failed or ended.",
		},
	)

	broadcastDroppedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Total number of messages dropped for a subscriber whose buffer was full.",
		},
		[]string{"topic"},
	)

	broadcastSubscribers = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_subscribers",
			Help:      "Number of current subscribers per topic.",
		},
		[]string{"topic"},
	)

	storageErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total number of failed persistence writes.",
		},
		[]string{"kind"},
	)
)

func RecordRegistryRefreshError() {
	registryRefreshErrorsTotal.Inc()
}

func SetRegistryWorkloads(n int) {
	registryWorkloads.Set(float64(n))
}

func RecordMalformedWorkload() {
	malformedWorkloadsTotal.Inc()
}

// RecordCollectionCycle observes one finished cycle and the size of the batch it produced.
func RecordCollectionCycle(elapsed time.Duration, snapshots int) {
	collectionCycleDuration.Observe(elapsed.Seconds())
	batchSnapshots.Set(float64(snapshots))
}

func RecordWorkloadMetricsError(workload string) {
	workloadMetricsErrorsTotal.WithLabelValues(workload).Inc()
}

func RecordAlertTriggered(rule, severity string) {
	alertsTriggeredTotal.WithLabelValues(rule, severity).Inc()
}

func RecordAlertEvaluationError() {
	alertEvaluationErrorsTotal.Inc()
}

func RecordEventIngested(status string) {
	eventsIngestedTotal.WithLabelValues(status).Inc()
}

func RecordEventSubscriptionError() {
	eventSubscriptionErrorsTotal.Inc()
}

func RecordBroadcastDropped(topic string) {
	broadcastDroppedTotal.WithLabelValues(topic).Inc()
}

func SetBroadcastSubscribers(topic string, n int) {
	broadcastSubscribers.WithLabelValues(topic).Set(float64(n))
}

func RecordStorageError(kind string) {
	storageErrorsTotal.WithLabelValues(kind).Inc()
}
