// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package config loads replicator configuration from environment variables.
//
// Configuration is layered (highest priority wins):
//
//  1. Built-in defaults
//  2. Environment variables
//
// There is no config file layer: the replicator is meant to run as a single
// long-lived daemon process configured the way its supervisor (systemd,
// Docker, Nomad) injects environment variables, not from a mounted file.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("failed to load configuration")
//	}
package config
