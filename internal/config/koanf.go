// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// defaultConfig returns a Config struct with all sensible default values.
// Defaults are applied first, then overridden by environment variables.
func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			DB:   "content",
			User: "app",
			Host: "localhost",
			Port: 5432,
		},
		Elastic: ElasticConfig{
			Host: "localhost",
			Port: 9200,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Sync: SyncConfig{
			ChunkSize:              100,
			RestartIntervalSeconds: 60,
			EpochDefaultRaw:        "2021-06-13 00:00:00",
			SourceQueryRateLimit:   50,
		},
		Singleton: SingletonConfig{
			LockPath: "/tmp/catalogsync.lock",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// envMappings maps the daemon's flat environment variable names to
// koanf dotted paths.
var envMappings = map[string]string{
	"postgres_db":       "postgres.db",
	"postgres_user":     "postgres.user",
	"postgres_password": "postgres.password",
	"postgres_host":     "postgres.host",
	"postgres_port":     "postgres.port",

	"elastic_host":     "elastic.host",
	"elastic_port":     "elastic.port",
	"elastic_user":     "elastic.user",
	"elastic_password": "elastic.password",

	"redis_host": "redis.host",
	"redis_port": "redis.port",

	"chunk_size":                "sync.chunk_size",
	"restart_interval_seconds":  "sync.restart_interval_seconds",
	"epoch_default":             "sync.epoch_default",
	"source_query_rate_limit":   "sync.source_query_rate_limit",
	"singleton_lock_path":       "singleton.lock_path",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"metrics_port": "metrics.port",
}

func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// Load loads configuration from defaults and environment variables, validates
// it, and pre-parses the derived time.Duration/time.Time fields that koanf
// cannot unmarshal directly.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// finalize derives fields koanf cannot unmarshal directly: the restart
// interval duration and the parsed EPOCH_DEFAULT sentinel.
func (c *Config) finalize() error {
	c.Sync.RestartInterval = time.Duration(c.Sync.RestartIntervalSeconds) * time.Second

	epoch, err := time.Parse(checkpointTimeLayout, c.Sync.EpochDefaultRaw)
	if err != nil {
		return fmt.Errorf("invalid EPOCH_DEFAULT %q: %w", c.Sync.EpochDefaultRaw, err)
	}
	c.Sync.EpochDefault = epoch

	return nil
}
