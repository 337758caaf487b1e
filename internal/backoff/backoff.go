// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package backoff is the single retry policy for the replicator. The
// Source Reader and Sink Writer route their Postgres and Elasticsearch
// calls through an Executor instead of relying on a client library's
// own retry logic, so there is exactly one place that decides how long
// to wait and when to give up. Checkpoint Store calls to Redis do not
// go through an Executor and are not retried. Retries are unbounded:
// they stop only on context cancellation or when the operation returns
// an error wrapped with cenkalti's Permanent. The pipeline prefers to
// wedge and log through a long outage rather than crash.
package backoff

import (
	"context"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/catalogsync/internal/logging"
	"github.com/tomtom215/catalogsync/internal/metrics"
)

// Config controls the exponential backoff curve. The delay grows from
// InitialInterval by Multiplier up to MaxInterval and stays there;
// retries never stop on their own.
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Randomization   float64
}

// DefaultConfig keeps cenkalti/backoff's default initial interval and
// randomization but uses a steeper multiplier (2.0 rather than 1.5) and
// a lower cap (30s rather than 60s); newBackOff also drops
// MaxElapsedTime, so retries continue until the operation succeeds or
// the process is told to stop.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Randomization:   0.5,
	}
}

// Executor runs operations under one exponential-backoff retry policy,
// logging and counting every retry attempt so operators can see how
// often a given dependency is degrading.
type Executor struct {
	cfg Config
}

// New creates an Executor with cfg.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

func (e *Executor) newBackOff(ctx context.Context) cenkalti.BackOff {
	eb := cenkalti.NewExponentialBackOff()
	eb.InitialInterval = e.cfg.InitialInterval
	eb.MaxInterval = e.cfg.MaxInterval
	eb.Multiplier = e.cfg.Multiplier
	eb.RandomizationFactor = e.cfg.Randomization
	eb.MaxElapsedTime = 0 // never give up on its own; only ctx cancellation stops retrying
	return cenkalti.WithContext(eb, ctx)
}

// Do runs op, retrying under exponential backoff until it returns a nil
// error, returns an error wrapped with cenkalti's Permanent (which Do
// returns at once), or ctx is done. operation names the call for
// logging and the replication_backoff_retries_total metric (e.g.
// "source.stream_modified_ids", "sink.bulk_upsert").
func (e *Executor) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	retries := 0
	notify := func(err error, wait time.Duration) {
		retries++
		metrics.RecordBackoffRetries(operation, 1)
		logging.Ctx(ctx).Warn().
			Str("operation", operation).
			Err(err).
			Dur("wait", wait).
			Int("attempt", retries).
			Msg("retrying after transient failure")
	}

	return cenkalti.RetryNotify(func() error {
		return op(ctx)
	}, e.newBackOff(ctx), notify)
}
