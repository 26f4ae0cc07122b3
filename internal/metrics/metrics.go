// Package metrics exposes the Prometheus instrumentation for the
// enhancement pipeline and the batch orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-image processing metrics
	ImagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propfoto_images_processed_total",
			Help: "Total number of images processed",
		},
		[]string{"status"}, // status: accepted, rejected, errored
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propfoto_processing_duration_seconds",
			Help:    "Per-image enhancement duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"scene"},
	)

	QualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "propfoto_quality_score",
			Help:    "Composite quality score of processed images",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Batch lifecycle metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propfoto_batches_total",
			Help: "Total number of batches by terminal status",
		},
		[]string{"status"}, // status: completed, partially_completed, failed, cancelled
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "propfoto_batch_duration_seconds",
			Help:    "Wall-clock batch duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	BatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "propfoto_batches_in_flight",
			Help: "Number of batches currently processing",
		},
	)

	// Retry metrics
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "propfoto_retries_total",
			Help: "Total number of per-image retry attempts",
		},
	)

	// Intake metrics
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "propfoto_upload_size_bytes",
			Help:    "Size of source images in bytes",
			Buckets: []float64{100 * 1024, 512 * 1024, 1024 * 1024, 4 * 1024 * 1024, 10 * 1024 * 1024, 30 * 1024 * 1024},
		},
	)
)
