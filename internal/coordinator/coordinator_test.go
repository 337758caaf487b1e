// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

package coordinator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/catalogsync/internal/backoff"
	"github.com/tomtom215/catalogsync/internal/checkpoint"
	"github.com/tomtom215/catalogsync/internal/sink"
	"github.com/tomtom215/catalogsync/internal/source"
)

func testExecutor() *backoff.Executor {
	return backoff.New(backoff.Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	})
}

func testCheckpointStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return checkpoint.NewStore(mr.Addr())
}

// fakeES serves the minimal Elasticsearch surface BulkUpsert exercises:
// the root handshake olivere/elastic performs on client construction,
// and a _bulk endpoint that records how many times each index name
// appeared in the request body.
type fakeES struct {
	mu           sync.Mutex
	bulkRequests int
	indexHits    map[string]int
}

func newFakeES() *fakeES {
	return &fakeES{indexHits: map[string]int{}}
}

func (f *fakeES) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"version": map[string]any{"number": "7.17.0"},
			})
		case r.URL.Path == "/_bulk" && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)

			f.mu.Lock()
			f.bulkRequests++
			for _, index := range []string{sink.IndexMovies, sink.IndexPersons, sink.IndexGenres} {
				f.indexHits[index] += strings.Count(string(body), `"_index":"`+index+`"`)
			}
			f.mu.Unlock()

			_ = json.NewEncoder(w).Encode(map[string]any{
				"took":   1,
				"errors": false,
				"items":  []map[string]any{},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testWriter(t *testing.T, fake *fakeES) *sink.Writer {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	writer, err := sink.New(server.URL, "", "", testExecutor())
	require.NoError(t, err)
	return writer
}

// TestDrainTable_FilmWork_PagesThenResetsCheckpoint runs a two-page
// film_work drain and checks that each page is upserted and that the
// drain-end checkpoint resets offset to zero against the cycle date.
func TestDrainTable_FilmWork_PagesThenResetsCheckpoint(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	now := time.Now().UTC()
	epoch := time.Unix(0, 0).UTC()
	page1 := pgxmock.NewRows([]string{"id", "modified"}).AddRow("F1", now).AddRow("F2", now)
	page2 := pgxmock.NewRows([]string{"id", "modified"}).AddRow("F3", now)
	pool.ExpectQuery(".*").WithArgs(epoch, 2, 0).WillReturnRows(page1)
	pool.ExpectQuery(".*").WithArgs([]string{"F1", "F2"}).WillReturnRows(
		pgxmock.NewRows([]string{
			"fw_id", "title", "description", "rating", "type",
			"role", "person_id", "person_full_name", "genre_id", "genre_name",
		}).
			AddRow("F1", "A", "", nil, "movie", nil, nil, nil, nil, nil).
			AddRow("F2", "B", "", nil, "movie", nil, nil, nil, nil, nil),
	)
	pool.ExpectQuery(".*").WithArgs(epoch, 2, 2).WillReturnRows(page2)
	pool.ExpectQuery(".*").WithArgs([]string{"F3"}).WillReturnRows(
		pgxmock.NewRows([]string{
			"fw_id", "title", "description", "rating", "type",
			"role", "person_id", "person_full_name", "genre_id", "genre_name",
		}).
			AddRow("F3", "C", "", nil, "movie", nil, nil, nil, nil, nil),
	)

	reader := source.NewWithQuerier(pool, testExecutor())
	store := testCheckpointStore(t)
	defer store.Close()
	fake := newFakeES()
	writer := testWriter(t, fake)

	c := New(store, reader, writer, 2, time.Minute, time.Unix(0, 0).UTC())

	require.NoError(t, c.drainTable(context.Background(), source.TableFilmWork))
	require.NoError(t, pool.ExpectationsWereMet())

	final, err := store.Load(context.Background(), source.TableFilmWork, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, final.Offset)
	assert.True(t, final.Date.After(now) || final.Date.Equal(now))

	assert.Equal(t, 2, fake.bulkRequests)
	assert.Equal(t, 3, fake.indexHits[sink.IndexMovies])
}

// TestProcessPage_PersonTable_FansOutToMoviesAndUpsertsPersons covers
// the dependent fan-out property: a person-table page resolves the
// films it touches and upserts both the persons and movies indices.
func TestProcessPage_PersonTable_FansOutToMoviesAndUpsertsPersons(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery(".*").WithArgs([]string{"P1"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("F1"))
	pool.ExpectQuery(".*").WithArgs([]string{"P1"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "role", "film_work_id"}).
			AddRow("P1", "Ann", "actor", "F1"))
	pool.ExpectQuery(".*").WithArgs([]string{"F1"}).
		WillReturnRows(pgxmock.NewRows([]string{
			"fw_id", "title", "description", "rating", "type",
			"role", "person_id", "person_full_name", "genre_id", "genre_name",
		}).AddRow("F1", "A", "", nil, "movie", ptr("actor"), ptr("P1"), ptr("Ann"), nil, nil))

	reader := source.NewWithQuerier(pool, testExecutor())
	store := testCheckpointStore(t)
	defer store.Close()
	fake := newFakeES()
	writer := testWriter(t, fake)

	c := New(store, reader, writer, 10, time.Minute, time.Time{})

	page := []source.ModifiedID{{ID: "P1", Modified: time.Now()}}
	require.NoError(t, c.processPage(context.Background(), source.TablePerson, page))
	require.NoError(t, pool.ExpectationsWereMet())

	assert.Equal(t, 2, fake.bulkRequests)
	assert.Equal(t, 1, fake.indexHits[sink.IndexPersons])
	assert.Equal(t, 1, fake.indexHits[sink.IndexMovies])
}

func TestStartStop_GuardsAgainstDoubleStartAndAllowsRestart(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	reader := source.NewWithQuerier(pool, testExecutor())
	store := testCheckpointStore(t)
	defer store.Close()
	writer := testWriter(t, newFakeES())

	c := New(store, reader, writer, 10, 15*time.Millisecond, time.Time{})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Start(ctx), ErrAlreadyRunning)

	time.Sleep(40 * time.Millisecond)
	c.Stop()

	require.NoError(t, c.Start(ctx))
	c.Stop()
}

func ptr(s string) *string { return &s }
