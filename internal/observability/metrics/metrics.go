// Package metrics registers the ingestion daemon's Prometheus metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "historian_"

	ResultSuccess = "success"
	ResultError   = "error"

	DropReasonMissingValue = "missing_value"
	DropReasonUnresolved   = "dimension_unresolved"
	DropReasonUnparseable  = "timestamp_unparseable"
	DropReasonOutOfWindow  = "out_of_window"
	DropReasonDuplicate    = "duplicate_bucket"
)

var (
	registerOnce sync.Once

	windowsTotal  *prometheus.CounterVec
	windowLatency *prometheus.HistogramVec
	upsertLatency prometheus.Histogram

	rowsWritten prometheus.Counter
	rowsDropped *prometheus.CounterVec

	backpressureAdjustments *prometheus.CounterVec
	backpressureBatchSize   prometheus.Gauge
	backpressureWorkers     prometheus.Gauge
)

// Init registers ingestion metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		windowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_windows_total",
				Help: "Total processed windows by result",
			},
			[]string{"result"},
		)
		windowLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_window_seconds",
				Help:    "Window processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		upsertLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_upsert_seconds",
				Help:    "Fact store upsert sub-batch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		rowsWritten = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_written_total",
				Help: "Total rows upserted into the fact store",
			},
		)
		rowsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_rows_dropped_total",
				Help: "Total rows dropped before upsert by reason",
			},
			[]string{"reason"},
		)

		backpressureAdjustments = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backpressure_adjustments_total",
				Help: "Total backpressure decisions by action",
			},
			[]string{"action"},
		)
		backpressureBatchSize = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "backpressure_batch_size",
				Help: "Batch size for the next cycle",
			},
		)
		backpressureWorkers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "backpressure_worker_count",
				Help: "Worker count for the next cycle",
			},
		)

		prometheus.MustRegister(
			windowsTotal,
			windowLatency,
			upsertLatency,
			rowsWritten,
			rowsDropped,
			backpressureAdjustments,
			backpressureBatchSize,
			backpressureWorkers,
		)
	})
}

// ObserveWindow records one window outcome.
func ObserveWindow(result string, elapsed time.Duration) {
	if windowsTotal == nil {
		return
	}
	windowsTotal.WithLabelValues(result).Inc()
	windowLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// ObserveUpsert records one upsert sub-batch latency.
func ObserveUpsert(elapsed time.Duration) {
	if upsertLatency == nil {
		return
	}
	upsertLatency.Observe(elapsed.Seconds())
}

// AddRowsWritten records rows persisted to the fact store.
func AddRowsWritten(n int) {
	if rowsWritten == nil || n <= 0 {
		return
	}
	rowsWritten.Add(float64(n))
}

// AddRowsDropped records rows excluded before upsert.
func AddRowsDropped(reason string, n int) {
	if rowsDropped == nil || n <= 0 {
		return
	}
	rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveAdjustment records a backpressure decision and the resulting state.
func ObserveAdjustment(action string, batchSize, workers int) {
	if backpressureAdjustments == nil {
		return
	}
	backpressureAdjustments.WithLabelValues(action).Inc()
	backpressureBatchSize.Set(float64(batchSize))
	backpressureWorkers.Set(float64(workers))
}
