// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// serviceFunc adapts a closure to suture.Service, which keeps each
// test's fake service next to its assertions.
type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Serve(ctx context.Context) error {
	return f(ctx)
}

func discardSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// blockUntilCancelled returns a well-behaved service that counts its
// starts and then holds until shutdown.
func blockUntilCancelled(starts *atomic.Int32) serviceFunc {
	return func(ctx context.Context) error {
		starts.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestTreeRunsBothServicesUntilCancelled(t *testing.T) {
	var replStarts, obsStarts atomic.Int32

	tree := New(discardSlog(),
		blockUntilCancelled(&replStarts),
		blockUntilCancelled(&obsStarts),
		Config{ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return replStarts.Load() == 1 && obsStarts.Load() == 1 })
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected tree error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

// A Coordinator that crashes on every start must not be restarted hot:
// once the replication layer's failure threshold trips, restarts wait
// out ReplicationBackoff. The observability layer keeps running
// through all of it.
func TestTreeSpacesReplicationRestartsAfterRepeatedCrashes(t *testing.T) {
	var crashStarts, obsStarts atomic.Int32
	crashing := serviceFunc(func(ctx context.Context) error {
		crashStarts.Add(1)
		return errors.New("coordinator panic equivalent")
	})

	tree := New(discardSlog(), crashing, blockUntilCancelled(&obsStarts), Config{
		ReplicationBackoff: 500 * time.Millisecond,
		ShutdownTimeout:    time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	<-errCh

	// FailureThreshold 2 allows a burst of immediate restarts, then the
	// 500ms backoff outlasts the test window.
	if n := crashStarts.Load(); n < 2 || n > 4 {
		t.Errorf("expected a short restart burst then backoff, got %d starts", n)
	}
	if obsStarts.Load() != 1 {
		t.Errorf("observability layer should be untouched by replication crashes, got %d starts", obsStarts.Load())
	}
}

// The metrics server gets the opposite policy: restarts come fast, and
// a flapping metrics endpoint never disturbs the replication layer.
func TestTreeRestartsObservabilityQuickly(t *testing.T) {
	var replStarts, flapStarts atomic.Int32
	flapping := serviceFunc(func(ctx context.Context) error {
		if flapStarts.Add(1) <= 2 {
			return errors.New("bind flake")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	tree := New(discardSlog(), blockUntilCancelled(&replStarts), flapping, Config{
		ObservabilityBackoff: 10 * time.Millisecond,
		ShutdownTimeout:      time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitFor(t, func() bool { return flapStarts.Load() >= 3 })
	if replStarts.Load() != 1 {
		t.Errorf("replication layer should be untouched by metrics flapping, got %d starts", replStarts.Load())
	}

	cancel()
	<-errCh
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReplicationBackoff != 30*time.Second {
		t.Errorf("ReplicationBackoff default: got %v", cfg.ReplicationBackoff)
	}
	if cfg.ObservabilityBackoff != 2*time.Second {
		t.Errorf("ObservabilityBackoff default: got %v", cfg.ObservabilityBackoff)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout default: got %v", cfg.ShutdownTimeout)
	}

	partial := Config{ReplicationBackoff: time.Minute}.withDefaults()
	if partial.ReplicationBackoff != time.Minute {
		t.Errorf("explicit value overwritten: got %v", partial.ReplicationBackoff)
	}
	if partial.ShutdownTimeout != 10*time.Second {
		t.Errorf("zero field not defaulted: got %v", partial.ShutdownTimeout)
	}
}
