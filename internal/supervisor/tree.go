// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config holds the restart policy for the replicator's two supervised
// services. The two layers deliberately get different treatment.
type Config struct {
	// ReplicationBackoff is the pause before restarting a crashed
	// Coordinator. The Coordinator already retries transient upstream
	// failures internally without ever returning, so a crash reaching
	// the supervisor means a panic or a programming error; restarting
	// hot would spin on the same fault and flood the source database
	// with reconnect storms. Default: 30s.
	ReplicationBackoff time.Duration

	// ObservabilityBackoff is the pause before restarting a crashed
	// metrics server. The endpoint is stateless and cheap to rebind,
	// and every second it is down is a scrape gap. Default: 2s.
	ObservabilityBackoff time.Duration

	// ShutdownTimeout bounds how long each service gets to stop after
	// the tree is cancelled before it is abandoned and reported by
	// UnstoppedServiceReport. It should comfortably exceed one bulk
	// upsert, since the Coordinator finishes its in-flight page before
	// honoring shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReplicationBackoff == 0 {
		c.ReplicationBackoff = 30 * time.Second
	}
	if c.ObservabilityBackoff == 0 {
		c.ObservabilityBackoff = 2 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// DefaultConfig returns the restart policy the daemon runs with.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// Tree is the replicator's fixed supervision tree. Its shape never
// changes at runtime: a root with one child supervisor per concern,
// the replication child running the Coordinator and the observability
// child running the metrics server. The split is failure isolation:
// a crash-restart loop in the metrics endpoint never interrupts an
// in-flight drain cycle, and vice versa.
type Tree struct {
	root *suture.Supervisor
	cfg  Config
}

// New builds the tree around the two services it exists to supervise.
// logger receives suture's lifecycle events through sutureslog.
func New(logger *slog.Logger, replication, observability suture.Service, cfg Config) *Tree {
	cfg = cfg.withDefaults()

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	root := suture.New("catalogsync", suture.Spec{
		EventHook: hook,
		Timeout:   cfg.ShutdownTimeout,
	})

	// A Coordinator crash is a bug, not weather: allow two restarts,
	// then back off hard rather than hammering a fault.
	replicationSup := suture.New("replication", suture.Spec{
		FailureThreshold: 2,
		FailureDecay:     120,
		FailureBackoff:   cfg.ReplicationBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	replicationSup.Add(replication)

	// The metrics endpoint restarts eagerly; losing it costs scrapes,
	// not data.
	observabilitySup := suture.New("observability", suture.Spec{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   cfg.ObservabilityBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
	observabilitySup.Add(observability)

	root.Add(replicationSup)
	root.Add(observabilitySup)

	return &Tree{root: root, cfg: cfg}
}

// Serve runs the tree and blocks until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine; the returned channel
// yields the tree's final error once it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored shutdown past the
// configured timeout, for logging on the way out.
func (t *Tree) UnstoppedServiceReport() (suture.UnstoppedServiceReport, error) {
	return t.root.UnstoppedServiceReport()
}
