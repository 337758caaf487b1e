// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the replication pipeline:
// - per-table drain cycle duration
// - per-index document upsert counts
// - skipped-row accounting by reason
// - checkpoint offsets (for comparing against the source catalog)
// - backoff/retry counts by operation

var (
	// ReplicationCycleDuration tracks how long a full drain cycle takes,
	// from checkpoint read to checkpoint advance, per watched table.
	ReplicationCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "replication_cycle_duration_seconds",
			Help:    "Duration of a full drain cycle for a watched table",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"table"},
	)

	// ReplicationDocumentsUpserted counts documents written to a search index.
	ReplicationDocumentsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replication_documents_upserted_total",
			Help: "Total number of documents upserted into a search index",
		},
		[]string{"index"},
	)

	// ReplicationRowsSkipped counts source rows that were read but not
	// turned into a document (e.g. malformed row, empty fold).
	ReplicationRowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replication_rows_skipped_total",
			Help: "Total number of source rows skipped during transform",
		},
		[]string{"table", "reason"},
	)

	// ReplicationCheckpointOffset reports the current stream offset per
	// watched table, for comparison against source row counts.
	ReplicationCheckpointOffset = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "replication_checkpoint_offset",
			Help: "Current checkpoint offset for a watched table",
		},
		[]string{"table"},
	)

	// ReplicationBackoffRetries counts retry attempts performed by the
	// Backoff Executor, labeled by the operation name it wraps.
	ReplicationBackoffRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replication_backoff_retries_total",
			Help: "Total number of retry attempts performed by the Backoff Executor",
		},
		[]string{"operation"},
	)

	// ReplicationDependentFanout counts film re-index operations triggered
	// by a dependent-table (person, genre) change.
	ReplicationDependentFanout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replication_dependent_fanout_total",
			Help: "Total number of films re-indexed due to a dependent-table change",
		},
		[]string{"dependent_table"},
	)

	// SingletonLockHeld reports whether this process currently holds the
	// exclusive singleton lock (1) or does not (0).
	SingletonLockHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replication_singleton_lock_held",
			Help: "1 if this process holds the singleton lock, 0 otherwise",
		},
	)

	// AppInfo reports build/version information as label values on a
	// constant gauge, the conventional Prometheus pattern for static info.
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordCycle records the duration of a completed drain cycle for a table.
func RecordCycle(table string, duration time.Duration) {
	ReplicationCycleDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordUpserts adds n documents to the upsert count for an index.
func RecordUpserts(index string, n int) {
	if n <= 0 {
		return
	}
	ReplicationDocumentsUpserted.WithLabelValues(index).Add(float64(n))
}

// RecordSkippedRow records a single skipped row with a reason.
func RecordSkippedRow(table, reason string) {
	ReplicationRowsSkipped.WithLabelValues(table, reason).Inc()
}

// SetCheckpointOffset updates the reported offset gauge for a table.
func SetCheckpointOffset(table string, offset int64) {
	ReplicationCheckpointOffset.WithLabelValues(table).Set(float64(offset))
}

// RecordBackoffRetries adds n retry attempts to an operation's counter.
func RecordBackoffRetries(operation string, n int) {
	if n <= 0 {
		return
	}
	ReplicationBackoffRetries.WithLabelValues(operation).Add(float64(n))
}

// RecordDependentFanout records a film re-index triggered by a dependent
// table's drain (genre or person).
func RecordDependentFanout(dependentTable string, filmCount int) {
	if filmCount <= 0 {
		return
	}
	ReplicationDependentFanout.WithLabelValues(dependentTable).Add(float64(filmCount))
}

// SetSingletonLockHeld reports the current singleton lock acquisition state.
func SetSingletonLockHeld(held bool) {
	if held {
		SingletonLockHeld.Set(1)
	} else {
		SingletonLockHeld.Set(0)
	}
}
