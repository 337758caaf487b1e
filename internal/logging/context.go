// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// cycleIDKey carries the id of the drain cycle currently in flight.
	cycleIDKey contextKey = "cycle_id"

	// tableKey carries the watched table a drain is working on.
	tableKey contextKey = "table"
)

// NewCycleID creates a short unique id for one drain cycle. Eight UUID
// characters keep log lines grep-able without drowning them.
func NewCycleID() string {
	return uuid.New().String()[:8]
}

// WithCycleID stamps ctx with a freshly generated cycle id. The
// Coordinator calls this once per cycle so every log line under it
// carries the same cycle_id field.
func WithCycleID(ctx context.Context) context.Context {
	return context.WithValue(ctx, cycleIDKey, NewCycleID())
}

// CycleIDFromContext retrieves the cycle id from ctx, or "" if unset.
func CycleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTable stamps ctx with the watched table a drain is processing.
func WithTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, tableKey, table)
}

// TableFromContext retrieves the table name from ctx, or "" if unset.
func TableFromContext(ctx context.Context) string {
	if table, ok := ctx.Value(tableKey).(string); ok {
		return table
	}
	return ""
}

// Ctx returns the global logger enriched with whatever cycle_id and
// table fields ctx carries. Components deep in a drain log through this
// so their lines correlate back to the cycle that produced them.
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := CycleIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("cycle_id", id)
	}
	if table := TableFromContext(ctx); table != "" {
		logCtx = logCtx.Str("table", table)
	}
	logger := logCtx.Logger()
	return &logger
}
