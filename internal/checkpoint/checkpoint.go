// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package checkpoint is the durable table -> {date, offset} mapping
// that records drain progress, backed by Redis. The client's own retry
// is disabled and Store calls are not wrapped in internal/backoff, so a
// failed Load or Save returns its error on the first attempt; the
// Coordinator then gives up that table's drain for the cycle, and the
// next cycle resumes from the last saved checkpoint.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// wireTimeLayout is the wire format for the checkpoint's date field,
// matching internal/config's EPOCH_DEFAULT parsing so the Coordinator
// never reparses between the two.
const wireTimeLayout = "2006-01-02 15:04:05"

// Point is a {date, offset} checkpoint for one watched table: all rows
// with modified < Date are done; within rows at modified == Date, the
// first Offset have been emitted.
type Point struct {
	Date   time.Time
	Offset int
}

type wirePoint struct {
	Date   string `json:"date"`
	Offset int    `json:"offset"`
}

func (p Point) marshal() ([]byte, error) {
	return json.Marshal(wirePoint{
		Date:   p.Date.UTC().Format(wireTimeLayout),
		Offset: p.Offset,
	})
}

func unmarshalPoint(data []byte) (Point, error) {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return Point{}, fmt.Errorf("unmarshal checkpoint payload: %w", err)
	}
	date, err := time.Parse(wireTimeLayout, w.Date)
	if err != nil {
		return Point{}, fmt.Errorf("parse checkpoint date %q: %w", w.Date, err)
	}
	return Point{Date: date, Offset: w.Offset}, nil
}

// Store is a Redis-backed Checkpoint Store, one string key per watched
// table (checkpoint:<table>).
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis at addr. The client's internal retry is
// disabled (MaxRetries: -1), and Store does not retry either: each Load
// or Save is a single attempt.
func NewStore(addr string) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:       addr,
			MaxRetries: -1,
		}),
	}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func key(table string) string {
	return "checkpoint:" + table
}

// Load returns the persisted checkpoint for table, or {epochDefault, 0}
// on cold start.
func (s *Store) Load(ctx context.Context, table string, epochDefault time.Time) (Point, error) {
	raw, err := s.client.Get(ctx, key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Point{Date: epochDefault, Offset: 0}, nil
	}
	if err != nil {
		return Point{}, fmt.Errorf("get checkpoint for table %q: %w", table, err)
	}

	point, err := unmarshalPoint(raw)
	if err != nil {
		return Point{}, fmt.Errorf("decode checkpoint for table %q: %w", table, err)
	}
	return point, nil
}

// Save atomically persists the checkpoint for table. Once Save
// returns, the value survives a crash and is visible on restart.
func (s *Store) Save(ctx context.Context, table string, point Point) error {
	payload, err := point.marshal()
	if err != nil {
		return fmt.Errorf("encode checkpoint for table %q: %w", table, err)
	}
	if err := s.client.Set(ctx, key(table), payload, 0).Err(); err != nil {
		return fmt.Errorf("set checkpoint for table %q: %w", table, err)
	}
	return nil
}
