// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package logging is the replicator's structured logging layer, built
// on zerolog.
//
// Initialize once from main, then log through the package-level level
// starters:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("table", "genre").Msg("drain complete")
//
// Components running inside a drain cycle log through Ctx, which picks
// up the cycle_id and table fields the Coordinator stamps onto the
// context, so one grep over a cycle_id reconstructs everything a cycle
// did across checkpoint, source, sink, and retry lines:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("retrying after transient failure")
//
// The slog adapter exists for exactly one consumer: the supervisor
// tree's sutureslog event hook requires an *slog.Logger, and
// NewSlogLogger bridges it onto the same zerolog backend.
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// chain is silently dropped by zerolog.
package logging
