// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package config

import (
	"fmt"
	"time"
)

// Config holds all replicator configuration loaded from environment variables.
type Config struct {
	Postgres  PostgresConfig  `koanf:"postgres"`
	Elastic   ElasticConfig   `koanf:"elastic"`
	Redis     RedisConfig     `koanf:"redis"`
	Sync      SyncConfig      `koanf:"sync"`
	Singleton SingletonConfig `koanf:"singleton"`
	Logging   LoggingConfig   `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// PostgresConfig holds the source catalog connection settings.
type PostgresConfig struct {
	DB       string `koanf:"db"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
}

// DSN returns a libpq-style connection string for pgxpool.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", p.User, p.Password, p.Host, p.Port, p.DB)
}

// ElasticConfig holds the search sink connection settings.
type ElasticConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// URL returns the base URL of the Elasticsearch node.
func (e ElasticConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

// RedisConfig holds the checkpoint store connection settings.
type RedisConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns the host:port address for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SyncConfig holds the Coordinator's pacing knobs.
type SyncConfig struct {
	ChunkSize              int           `koanf:"chunk_size"`
	RestartIntervalSeconds int           `koanf:"restart_interval_seconds"`
	EpochDefault           time.Time     `koanf:"-"`
	EpochDefaultRaw        string        `koanf:"epoch_default"`
	RestartInterval        time.Duration `koanf:"-"`
	SourceQueryRateLimit   float64       `koanf:"source_query_rate_limit"`
}

// SingletonConfig holds the exclusive-lock file path.
type SingletonConfig struct {
	LockPath string `koanf:"lock_path"`
}

// LoggingConfig mirrors internal/logging.Config for env-driven wiring.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Port int `koanf:"port"`
}

// checkpointTimeLayout is the wire format for checkpoint dates, shared
// with the EPOCH_DEFAULT environment variable.
const checkpointTimeLayout = "2006-01-02 15:04:05"
