// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package coordinator drives the polling cycle: for each watched table,
// in the fixed order genre -> person -> film_work, it pages through
// modified ids, resolves the films a dependent-table change touches,
// transforms the joined rows into documents, bulk-upserts them, and
// advances the checkpoint. One full pass over all three tables is a
// cycle; the Coordinator sleeps between cycles and repeats forever.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tomtom215/catalogsync/internal/checkpoint"
	"github.com/tomtom215/catalogsync/internal/logging"
	"github.com/tomtom215/catalogsync/internal/metrics"
	"github.com/tomtom215/catalogsync/internal/sink"
	"github.com/tomtom215/catalogsync/internal/source"
	"github.com/tomtom215/catalogsync/internal/transform"
)

// watchedTables is the fixed drain order. Dependent tables run first so
// a film touched by a person or genre change gets re-emitted in the
// same cycle that discovers the change; film_work runs last to catch
// pure film-row modifications.
var watchedTables = []string{source.TableGenre, source.TablePerson, source.TableFilmWork}

// ErrAlreadyRunning is returned by Start/Serve when the Coordinator is
// already driving a cycle.
var ErrAlreadyRunning = errors.New("coordinator: already running")

// Coordinator drives the replication loop. It owns no connections
// itself; the checkpoint store, source reader, and sink writer are
// passed in as explicit dependencies so process-global state stays
// confined to the singleton lock.
type Coordinator struct {
	checkpoints *checkpoint.Store
	reader      *source.Reader
	writer      *sink.Writer

	chunkSize       int
	restartInterval time.Duration
	epochDefault    time.Time

	onCycleCompleted func(table string, duration time.Duration)

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New builds a Coordinator. chunkSize is both the stream_modified_ids
// page size and the bulk-upsert batch size; restartInterval is the
// sleep between cycles; epochDefault seeds a table's checkpoint on cold
// start.
func New(checkpoints *checkpoint.Store, reader *source.Reader, writer *sink.Writer, chunkSize int, restartInterval time.Duration, epochDefault time.Time) *Coordinator {
	return &Coordinator{
		checkpoints:     checkpoints,
		reader:          reader,
		writer:          writer,
		chunkSize:       chunkSize,
		restartInterval: restartInterval,
		epochDefault:    epochDefault,
	}
}

// SetOnCycleCompleted registers a callback fired after each table's
// drain within a cycle. Intended for metrics wiring and tests; nil is
// a valid (no-op) value.
func (c *Coordinator) SetOnCycleCompleted(fn func(table string, duration time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCycleCompleted = fn
}

// Start runs the Coordinator's forever-loop in a background goroutine.
// The WaitGroup entry is registered before the goroutine starts so
// Stop can never race Wait.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	stop := make(chan struct{})
	c.stopChan = stop
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.run(ctx, stop); err != nil && !errors.Is(err, context.Canceled) {
			logging.Ctx(ctx).Error().Err(err).Msg("coordinator loop exited")
		}
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	return nil
}

// Stop interrupts the inter-cycle sleep and waits for the background
// goroutine to return. It does not cancel ctx, and the loop observes
// stopChan only between cycles: a cycle already in progress drains all
// three tables before the goroutine returns.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopChan)
	c.mu.Unlock()
	c.wg.Wait()
}

// Serve implements suture.Service, letting the supervisor tree drive
// the Coordinator directly instead of through Start/Stop. It blocks
// until ctx is canceled or Stop is called concurrently from another
// goroutine holding a reference to this Coordinator.
func (c *Coordinator) Serve(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	stop := make(chan struct{})
	c.stopChan = stop
	c.mu.Unlock()

	err := c.run(ctx, stop)

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return err
}

// String names the service in suture's event log.
func (c *Coordinator) String() string {
	return "coordinator"
}

// run is the shared forever-loop body: one cycle, then sleep for
// restartInterval unless ctx or stop fires first.
func (c *Coordinator) run(ctx context.Context, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		c.runCycle(ctx)

		timer := time.NewTimer(c.restartInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// runCycle drains genre, then person, then film_work, in that fixed
// order. A table whose drain fails is logged and skipped for this
// cycle; its checkpoint is left untouched so the next cycle resumes
// from the same point.
func (c *Coordinator) runCycle(ctx context.Context) {
	ctx = logging.WithCycleID(ctx)
	for _, table := range watchedTables {
		tableCtx := logging.WithTable(ctx, table)
		start := time.Now()
		if err := c.drainTable(tableCtx, table); err != nil {
			logging.Ctx(tableCtx).Error().Err(err).Msg("table drain failed, resuming next cycle")
			continue
		}

		duration := time.Since(start)
		metrics.RecordCycle(table, duration)

		c.mu.RLock()
		onCycleCompleted := c.onCycleCompleted
		c.mu.RUnlock()
		if onCycleCompleted != nil {
			onCycleCompleted(table, duration)
		}
	}
}

// drainTable pages through table's modified ids from its checkpoint
// until a short page ends the drain. Within each page it resolves
// dependent fan-out, transforms and upserts documents, then advances
// the checkpoint so date holds and only offset moves; on drain
// completion it resets to {date: cycle_date, offset: 0}.
func (c *Coordinator) drainTable(ctx context.Context, table string) error {
	point, err := c.checkpoints.Load(ctx, table, c.epochDefault)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	since := point.Date
	cycleDate := time.Now()
	it := c.reader.StreamModifiedIDs(table, since, c.chunkSize, point.Offset)

	for {
		page, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("stream_modified_ids(%s): %w", table, err)
		}

		// The page's writes and its checkpoint save run on a context that
		// ctx's cancellation does not reach, so a shutdown lets the current
		// page finish; the next Next call observes the cancellation.
		pageCtx := context.WithoutCancel(ctx)
		if err := c.processPage(pageCtx, table, page); err != nil {
			return err
		}

		if err := c.checkpoints.Save(pageCtx, table, checkpoint.Point{Date: since, Offset: it.Offset()}); err != nil {
			return fmt.Errorf("persist page checkpoint: %w", err)
		}
		metrics.SetCheckpointOffset(table, int64(it.Offset()))
	}

	if err := c.checkpoints.Save(ctx, table, checkpoint.Point{Date: cycleDate, Offset: 0}); err != nil {
		return fmt.Errorf("persist cycle-end checkpoint: %w", err)
	}
	metrics.SetCheckpointOffset(table, 0)
	return nil
}

// processPage handles one page of modified ids for table: dependent
// tables (genre, person) also upsert their own index and resolve which
// films they touch; film_work ids are themselves the films to
// re-index. Every page unconditionally (re-)upserts movies.
func (c *Coordinator) processPage(ctx context.Context, table string, page []source.ModifiedID) error {
	ids := make([]string, len(page))
	for i, row := range page {
		ids[i] = row.ID
	}

	var filmIDs []string
	switch table {
	case source.TableGenre:
		resolved, err := c.reader.FilmIDsFor(ctx, table, ids)
		if err != nil {
			return fmt.Errorf("film_ids_for(%s): %w", table, err)
		}
		filmIDs = resolved
		metrics.RecordDependentFanout(table, len(filmIDs))

		if err := c.upsertGenres(ctx, ids); err != nil {
			return err
		}
	case source.TablePerson:
		resolved, err := c.reader.FilmIDsFor(ctx, table, ids)
		if err != nil {
			return fmt.Errorf("film_ids_for(%s): %w", table, err)
		}
		filmIDs = resolved
		metrics.RecordDependentFanout(table, len(filmIDs))

		if err := c.upsertPersons(ctx, ids); err != nil {
			return err
		}
	case source.TableFilmWork:
		filmIDs = ids
	}

	return c.upsertFilms(ctx, filmIDs)
}

func (c *Coordinator) upsertGenres(ctx context.Context, genreIDs []string) error {
	rows, err := c.reader.GetGenreRows(ctx, genreIDs)
	if err != nil {
		return fmt.Errorf("get_genre_rows: %w", err)
	}

	docs, skipped := transform.Genres(rows)
	recordSkipped(source.TableGenre, skipped)

	return c.writer.BulkUpsert(ctx, sink.IndexGenres, genreDocuments(docs))
}

func (c *Coordinator) upsertPersons(ctx context.Context, personIDs []string) error {
	rows, err := c.reader.GetPersonRows(ctx, personIDs)
	if err != nil {
		return fmt.Errorf("get_person_rows: %w", err)
	}

	docs, skipped := transform.Persons(rows)
	recordSkipped(source.TablePerson, skipped)

	return c.writer.BulkUpsert(ctx, sink.IndexPersons, personDocuments(docs))
}

func (c *Coordinator) upsertFilms(ctx context.Context, filmIDs []string) error {
	if len(filmIDs) == 0 {
		return nil
	}

	rows, err := c.reader.GetFilmRows(ctx, filmIDs)
	if err != nil {
		return fmt.Errorf("get_film_rows: %w", err)
	}

	docs, skipped := transform.Films(rows)
	recordSkipped(source.TableFilmWork, skipped)

	return c.writer.BulkUpsert(ctx, sink.IndexMovies, filmDocuments(docs))
}

func recordSkipped(table string, n int) {
	for i := 0; i < n; i++ {
		metrics.RecordSkippedRow(table, "invalid_row")
	}
}

func filmDocuments(docs map[string]*transform.FilmDocument) []sink.Document {
	out := make([]sink.Document, 0, len(docs))
	for id, doc := range docs {
		out = append(out, sink.Document{ID: id, Body: doc})
	}
	return out
}

func personDocuments(docs map[string]*transform.PersonDocument) []sink.Document {
	out := make([]sink.Document, 0, len(docs))
	for id, doc := range docs {
		out = append(out, sink.Document{ID: id, Body: doc})
	}
	return out
}

func genreDocuments(docs map[string]*transform.GenreDocument) []sink.Document {
	out := make([]sink.Document, 0, len(docs))
	for id, doc := range docs {
		out = append(out, sink.Document{ID: id, Body: doc})
	}
	return out
}
