// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCycle(t *testing.T) {
	RecordCycle("film_work", 2500*time.Millisecond)
	count := testutil.CollectAndCount(ReplicationCycleDuration)
	assert.GreaterOrEqual(t, count, 1)
}

func TestRecordUpserts(t *testing.T) {
	before := testutil.ToFloat64(ReplicationDocumentsUpserted.WithLabelValues("movies"))
	RecordUpserts("movies", 7)
	after := testutil.ToFloat64(ReplicationDocumentsUpserted.WithLabelValues("movies"))
	assert.Equal(t, float64(7), after-before)
}

func TestRecordUpsertsIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(ReplicationDocumentsUpserted.WithLabelValues("persons"))
	RecordUpserts("persons", 0)
	RecordUpserts("persons", -3)
	after := testutil.ToFloat64(ReplicationDocumentsUpserted.WithLabelValues("persons"))
	assert.Equal(t, before, after)
}

func TestRecordSkippedRow(t *testing.T) {
	before := testutil.ToFloat64(ReplicationRowsSkipped.WithLabelValues("genre", "empty_fold"))
	RecordSkippedRow("genre", "empty_fold")
	after := testutil.ToFloat64(ReplicationRowsSkipped.WithLabelValues("genre", "empty_fold"))
	assert.Equal(t, float64(1), after-before)
}

func TestSetCheckpointOffset(t *testing.T) {
	SetCheckpointOffset("person", 4821)
	assert.Equal(t, float64(4821), testutil.ToFloat64(ReplicationCheckpointOffset.WithLabelValues("person")))
}

func TestRecordBackoffRetries(t *testing.T) {
	before := testutil.ToFloat64(ReplicationBackoffRetries.WithLabelValues("elastic_upsert"))
	RecordBackoffRetries("elastic_upsert", 3)
	after := testutil.ToFloat64(ReplicationBackoffRetries.WithLabelValues("elastic_upsert"))
	assert.Equal(t, float64(3), after-before)
}

func TestRecordBackoffRetriesIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(ReplicationBackoffRetries.WithLabelValues("pg_read"))
	RecordBackoffRetries("pg_read", 0)
	after := testutil.ToFloat64(ReplicationBackoffRetries.WithLabelValues("pg_read"))
	assert.Equal(t, before, after)
}

func TestRecordDependentFanout(t *testing.T) {
	before := testutil.ToFloat64(ReplicationDependentFanout.WithLabelValues("genre"))
	RecordDependentFanout("genre", 12)
	after := testutil.ToFloat64(ReplicationDependentFanout.WithLabelValues("genre"))
	assert.Equal(t, float64(12), after-before)
}

func TestSetSingletonLockHeld(t *testing.T) {
	SetSingletonLockHeld(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(SingletonLockHeld))

	SetSingletonLockHeld(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(SingletonLockHeld))
}
