// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

/*
Package supervisor runs the replicator's two long-lived services under
a fixed suture v4 tree.

The tree has exactly one shape:

	catalogsync (root)
	├── replication    → the Coordinator
	└── observability  → the Prometheus metrics server

Services are handed to New at construction and never added or removed
afterwards; the daemon has no dynamic service set, so the package
offers none of the machinery for one.

The two layers carry opposite restart policies, which is the reason
the tree exists at all. The Coordinator absorbs transient upstream
failures internally through unbounded backoff and should never return;
if it does crash, that is a panic or a programming error, and the
replication layer waits out Config.ReplicationBackoff before trying
again rather than spinning on the fault. The metrics server is the
inverse case: stateless, cheap to rebind, and only costing scrape gaps
while down, so the observability layer restarts it almost immediately.
Each layer is its own suture child, so a restart storm in one never
touches the other.

MetricsService owns its listener and rebinds it on every Serve call,
which is what makes the eager-restart policy safe: a restarted
instance never inherits a dead socket.

Wiring in main:

	tree := supervisor.New(logging.NewSlogLogger(), coord, metricsSvc, supervisor.DefaultConfig())
	errCh := tree.ServeBackground(ctx)

On shutdown, UnstoppedServiceReport names any service that ignored
cancellation past Config.ShutdownTimeout.
*/
package supervisor
