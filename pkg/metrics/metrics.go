package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	stackMigration = "stack_migration"

	// Migration metrics
	rowsBackedUpTotal   = "rows_backed_up_total"
	rowsRestoredTotal   = "rows_restored_total"
	segmentsSkipped     = "segments_skipped_total"
	operationsTotal     = "operations_total"
	operationDurationMs = "operation_duration_milliseconds"

	// Labels
	recordTypeLabel = "type"
	reasonLabel     = "reason"
	operationLabel  = "operation"
	statusLabel     = "status"

	SkipReasonEmpty       = "empty"
	SkipReasonUnknownType = "unknown_type"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

var rowsBackedUpMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: stackMigration,
		Name:      rowsBackedUpTotal,
		Help:      "number of rows written to backup containers",
	},
	[]string{recordTypeLabel},
)

var rowsRestoredMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: stackMigration,
		Name:      rowsRestoredTotal,
		Help:      "number of rows restored from backup containers",
	},
	[]string{recordTypeLabel},
)

var segmentsSkippedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: stackMigration,
		Name:      segmentsSkipped,
		Help:      "number of container segments skipped while reading",
	},
	[]string{reasonLabel},
)

var operationsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: stackMigration,
		Name:      operationsTotal,
		Help:      "number of migration operations partitioned by operation and status",
	},
	[]string{operationLabel, statusLabel},
)

var operationDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: stackMigration,
		Name:      operationDurationMs,
		Help:      "time spent on migration operations",
		Buckets:   []float64{50, 250, 1000, 5000, 30000, 120000},
	},
	[]string{operationLabel},
)

func IncreaseBackedUpRowsMetric(recordType string, count int) {
	rowsBackedUpMetric.With(prometheus.Labels{recordTypeLabel: recordType}).Add(float64(count))
}

func IncreaseRestoredRowsMetric(recordType string, count int) {
	rowsRestoredMetric.With(prometheus.Labels{recordTypeLabel: recordType}).Add(float64(count))
}

func IncreaseSkippedSegmentsMetric(reason string) {
	segmentsSkippedMetric.With(prometheus.Labels{reasonLabel: reason}).Inc()
}

// ObserveOperation records the outcome and the duration, in milliseconds, of a migration operation.
func ObserveOperation(operation string, err error, durationMs int64) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	operationsMetric.With(prometheus.Labels{operationLabel: operation, statusLabel: status}).Inc()
	operationDurationMetric.With(prometheus.Labels{operationLabel: operation}).Observe(float64(durationMs))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(rowsBackedUpMetric)
	prometheus.MustRegister(rowsRestoredMetric)
	prometheus.MustRegister(segmentsSkippedMetric)
	prometheus.MustRegister(operationsMetric)
	prometheus.MustRegister(operationDurationMetric)
}
