// Package metrics exposes the Prometheus gauges, counters, and
// histograms used by the Aggregator and Worker processes,
// adapted from the teacher's flat registered-globals style
// (pkg/metrics/metrics.go).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AggregatorQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_queue_depth",
			Help: "Current number of connections waiting in the aggregator's bounded accept queue",
		},
	)

	AggregatorQueueRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregator_queue_rejections_total",
			Help: "Total number of connections rejected because the accept queue was full",
		},
	)

	AggregatorWorkerRegistrySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregator_worker_registry_size",
			Help: "Current number of worker addresses known to the aggregator",
		},
	)

	AggregatorFanoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_fanout_duration_seconds",
			Help:    "Time taken to fan a query out to all workers and combine their replies",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkerPatientsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_patients_total",
			Help: "Current number of patient records held by a worker, by country",
		},
		[]string{"country"},
	)

	WorkerIngestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_ingest_errors_total",
			Help: "Total number of record lines rejected during ingestion, by error kind",
		},
		[]string{"kind"},
	)

	WorkerRescanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_rescan_duration_seconds",
			Help:    "Time taken for a worker to rescan its input directory for new record files",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(AggregatorQueueDepth)
	prometheus.MustRegister(AggregatorQueueRejections)
	prometheus.MustRegister(AggregatorWorkerRegistrySize)
	prometheus.MustRegister(AggregatorFanoutDuration)
	prometheus.MustRegister(WorkerPatientsTotal)
	prometheus.MustRegister(WorkerIngestErrorsTotal)
	prometheus.MustRegister(WorkerRescanDuration)
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
