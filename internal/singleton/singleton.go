// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package singleton guards against two replicator processes running
// against the same checkpoint store at once, which would race each
// other's checkpoint advancement and could duplicate or interleave
// drain cycles. It holds an advisory exclusive file lock for the
// lifetime of the process.
package singleton

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/tomtom215/catalogsync/internal/metrics"
)

// ErrAlreadyRunning is returned by Acquire when another process already
// holds the lock.
var ErrAlreadyRunning = errors.New("singleton: another replicator instance is already running")

// Guard holds an advisory exclusive lock on a file path for as long as
// the process runs. It is not safe for concurrent use by multiple
// goroutines; one Guard exists per process.
type Guard struct {
	lock *flock.Flock
	path string
}

// New creates a Guard for the lock file at path. It does not touch the
// file; Acquire creates it if it does not exist and takes the lock.
func New(path string) *Guard {
	return &Guard{
		lock: flock.New(path),
		path: path,
	}
}

// Acquire takes a non-blocking exclusive lock. It returns
// ErrAlreadyRunning if another process already holds it, so callers can
// log and exit rather than silently duplicating work.
func (g *Guard) Acquire() error {
	locked, err := g.lock.TryLock()
	if err != nil {
		return fmt.Errorf("singleton: acquire lock at %s: %w", g.path, err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	metrics.SetSingletonLockHeld(true)
	return nil
}

// Release drops the lock. Safe to call even if Acquire failed.
func (g *Guard) Release() error {
	metrics.SetSingletonLockHeld(false)
	if !g.lock.Locked() {
		return nil
	}
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("singleton: release lock at %s: %w", g.path, err)
	}
	return nil
}
