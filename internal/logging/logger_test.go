// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetLogger restores the default logger state after a test mutated
// the package globals.
func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		Init(Config{})
	})
}

func TestInitWritesJSON(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Info().Str("table", "genre").Int("rows", 42).Msg("drain complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "drain complete", entry["message"])
	assert.Equal(t, "genre", entry["table"])
	assert.Equal(t, float64(42), entry["rows"])
	assert.Contains(t, entry, "time")
}

func TestInitFiltersBelowLevel(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "warn", Output: &buf})

	Debug().Msg("dropped")
	Info().Msg("dropped")
	Warn().Msg("kept")

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestInitConsoleFormat(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf})

	Info().Msg("console line")

	// Console output is human-readable, not JSON.
	assert.Contains(t, buf.String(), "console line")
	assert.Error(t, json.Unmarshal(buf.Bytes(), &map[string]any{}))
}

func TestErrAttachesError(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})

	Err(assert.AnError).Msg("operation failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":     zerolog.TraceLevel,
		"debug":     zerolog.DebugLevel,
		"info":      zerolog.InfoLevel,
		"warn":      zerolog.WarnLevel,
		"warning":   zerolog.WarnLevel,
		"ERROR":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"disabled":  zerolog.Disabled,
		"gibberish": zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLevel(input), "parseLevel(%q)", input)
	}
}

func TestSetLoggerReplacesGlobal(t *testing.T) {
	resetLogger(t)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	Info().Msg("through replacement")

	assert.Contains(t, buf.String(), "through replacement")
}
