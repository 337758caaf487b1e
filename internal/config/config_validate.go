// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package config

import "fmt"

// Validate checks that the configuration is internally consistent.
// A Validate failure is fatal at startup; the supervisor restarting a
// misconfigured process would loop uselessly.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("postgres.db is required")
	}
	if c.Elastic.Host == "" {
		return fmt.Errorf("elastic.host is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("sync.chunk_size must be positive, got %d", c.Sync.ChunkSize)
	}
	if c.Sync.RestartIntervalSeconds <= 0 {
		return fmt.Errorf("sync.restart_interval_seconds must be positive, got %d", c.Sync.RestartIntervalSeconds)
	}
	if c.Sync.SourceQueryRateLimit < 0 {
		return fmt.Errorf("sync.source_query_rate_limit must be non-negative, got %f", c.Sync.SourceQueryRateLimit)
	}
	if c.Singleton.LockPath == "" {
		return fmt.Errorf("singleton.lock_path is required")
	}
	return nil
}
