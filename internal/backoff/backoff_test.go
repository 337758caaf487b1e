// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		Randomization:   0,
	}
}

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	e := New(fastConfig())
	calls := 0

	err := e.Do(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	e := New(fastConfig())
	calls := 0

	err := e.Do(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		if calls < 4 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_StopsOnContextCancellation(t *testing.T) {
	e := New(fastConfig())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- e.Do(ctx, "test.op", func(ctx context.Context) error {
			calls++
			if calls == 2 {
				cancel()
			}
			return errors.New("always fails")
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}

func TestDefaultConfig_GrowsFromPositiveIntervalToPositiveCap(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.InitialInterval)
	assert.Positive(t, cfg.MaxInterval)
	assert.Greater(t, cfg.Multiplier, 1.0)
}
