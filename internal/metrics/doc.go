// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

/*
Package metrics provides Prometheus instrumentation for the replication pipeline.

# Available Metrics

  - replication_cycle_duration_seconds: drain cycle duration (histogram)
    Labels: table
  - replication_documents_upserted_total: documents written to a search index (counter)
    Labels: index
  - replication_rows_skipped_total: source rows skipped during transform (counter)
    Labels: table, reason
  - replication_checkpoint_offset: current stream offset per table (gauge)
    Labels: table
  - replication_backoff_retries_total: retry attempts made by the Backoff Executor (counter)
    Labels: operation
  - replication_dependent_fanout_total: films re-indexed by a dependent-table change (counter)
    Labels: dependent_table
  - replication_singleton_lock_held: 1 if this process holds the lock (gauge)
  - app_info: build/version labels (gauge)
  - app_uptime_seconds: process uptime (gauge)

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format by the
supervised metrics HTTP server (see internal/supervisor).

	curl http://localhost:9090/metrics

# Example Prometheus configuration

	scrape_configs:
	  - job_name: 'catalogsync'
	    static_configs:
	      - targets: ['localhost:9090']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Example alert

	groups:
	  - name: catalogsync
	    rules:
	      - alert: ReplicationStalled
	        expr: rate(replication_documents_upserted_total[10m]) == 0
	        for: 15m
	        annotations:
	          summary: "no documents upserted into any index for 15m"
*/
package metrics
