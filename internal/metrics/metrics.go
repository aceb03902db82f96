package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EditsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbd_edits_enqueued_total",
		Help: "Total number of edits placed on the processing queue.",
	})

	EditsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbd_edits_processed_total",
		Help: "Total number of edits fully processed, labelled by kind and status.",
	}, []string{"kind", "status"})

	EditsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rbd_edits_dropped_total",
		Help: "Total number of edits rejected due to a full queue.",
	})

	Recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbd_recomputations_total",
		Help: "Total number of recomputed ids, labelled by trigger category.",
	}, []string{"category"})

	DrainFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbd_drain_failures_total",
		Help: "Total number of aborted drains, labelled by the failing category.",
	}, []string{"category"})

	SchemaEvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rbd_schema_evaluation_duration_ms",
		Help:    "Schema compile + evaluate + integrate latency in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 1000},
	})

	EditProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rbd_edit_processing_duration_ms",
		Help:    "End-to-end edit latency (propagate + drain) in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rbd_queue_utilization_ratio",
		Help: "Current edit queue utilization (0–1).",
	})
)
