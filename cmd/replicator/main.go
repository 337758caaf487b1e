// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package main is the entry point for the catalogsync replicator.
//
// catalogsync tails three tables in a relational catalog (genre,
// person, film_work) and keeps a denormalized search projection of
// films, persons, and genres converged with them. It is a daemon: no
// subcommands, one polling loop, running until a termination signal
// arrives.
//
// # Application architecture
//
// The process wires its components in dependency order, then hands a
// single Coordinator to a two-layer supervisor tree:
//
//  1. Configuration: environment variables via Koanf (internal/config)
//  2. Logging: zerolog, configured from LOG_LEVEL/LOG_FORMAT
//  3. Singleton Guard: an exclusive advisory lock, so a second instance
//     refuses to start rather than double-write the same checkpoints
//  4. Checkpoint Store, Source Reader, Sink Writer: the three stateful
//     connectors; the Source Reader and Sink Writer share one Backoff
//     Executor, while Checkpoint Store calls are single attempts
//  5. Coordinator: the replication loop, slotted into the supervisor
//     tree's replication layer
//  6. Metrics server: a Prometheus /metrics endpoint in the tree's
//     observability layer, isolated from the replication layer so a
//     crash in one does not interrupt the other
//
// # Configuration
//
// See internal/config for the full list of environment variables.
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context. The Coordinator lets its
// current page finish (bulk writes are not canceled mid-flight) before
// the supervisor tree reports clean shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/catalogsync/internal/backoff"
	"github.com/tomtom215/catalogsync/internal/checkpoint"
	"github.com/tomtom215/catalogsync/internal/config"
	"github.com/tomtom215/catalogsync/internal/coordinator"
	"github.com/tomtom215/catalogsync/internal/logging"
	"github.com/tomtom215/catalogsync/internal/metrics"
	"github.com/tomtom215/catalogsync/internal/singleton"
	"github.com/tomtom215/catalogsync/internal/sink"
	"github.com/tomtom215/catalogsync/internal/source"
	"github.com/tomtom215/catalogsync/internal/supervisor"
)

// version is the build version reported on app_info; overridden at
// link time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting catalogsync replicator")

	guard := singleton.New(cfg.Singleton.LockPath)
	if err := guard.Acquire(); err != nil {
		if errors.Is(err, singleton.ErrAlreadyRunning) {
			logging.Fatal().Msg("another replicator instance already holds the singleton lock")
		}
		logging.Fatal().Err(err).Msg("failed to acquire singleton lock")
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logging.Error().Err(err).Msg("failed to release singleton lock")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	executor := backoff.New(backoff.DefaultConfig())

	checkpoints := checkpoint.NewStore(cfg.Redis.Addr())
	defer func() {
		if err := checkpoints.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing checkpoint store")
		}
	}()

	reader, err := source.New(ctx, cfg.Postgres.DSN(), executor, cfg.Sync.SourceQueryRateLimit)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to source catalog")
	}
	defer reader.Close()

	writer, err := sink.New(cfg.Elastic.URL(), cfg.Elastic.User, cfg.Elastic.Password, executor)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to search sink")
	}
	if err := writer.EnsureIndices(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to ensure search indices exist")
	}
	logging.Info().Msg("search indices ready")

	coord := coordinator.New(checkpoints, reader, writer, cfg.Sync.ChunkSize, cfg.Sync.RestartInterval, cfg.Sync.EpochDefault)
	coord.SetOnCycleCompleted(func(table string, duration time.Duration) {
		logging.Info().Str("table", table).Dur("duration", duration).Msg("table drain completed")
	})

	metricsSvc := supervisor.NewMetricsService(fmt.Sprintf(":%d", cfg.Metrics.Port), promhttp.Handler(), 10*time.Second)
	tree := supervisor.New(logging.NewSlogLogger(), coord, metricsSvc, supervisor.DefaultConfig())
	logging.Info().Int("metrics_port", cfg.Metrics.Port).Msg("supervision tree assembled")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	go reportUptime(ctx, time.Now())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor tree to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}

	logging.Info().Msg("replicator stopped gracefully")
}

// reportUptime updates app_uptime_seconds on a fixed tick until ctx is
// canceled.
func reportUptime(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
