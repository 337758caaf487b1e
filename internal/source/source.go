// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package source issues paged queries against the catalog database
// (schema content), resolves which films a dependent-table change
// touches, and fetches the join-expanded rows the Transformer needs.
// Every query routes through a Backoff Executor; connection-class
// failures retry, everything else (a malformed query, a constraint
// violation) is permanent and returned immediately.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/tomtom215/catalogsync/internal/backoff"
	"github.com/tomtom215/catalogsync/internal/transform"
)

// querier is the slice of *pgxpool.Pool this package depends on. Tests
// substitute it with a pgxmock pool double; production code passes the
// real pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Dependent-table names the Source Reader accepts for film_ids_for.
// Table names are never taken from caller-supplied strings elsewhere in
// this package, since SQL identifiers cannot be parameterized.
const (
	TableGenre    = "genre"
	TablePerson   = "person"
	TableFilmWork = "film_work"
)

// ModifiedID is one row of a stream_modified_ids page.
type ModifiedID struct {
	ID       string
	Modified time.Time
}

// Reader is the Source Reader: a pgxpool-backed connection to the
// content schema, with every blocking call routed through a Backoff
// Executor.
type Reader struct {
	pool     querier
	executor *backoff.Executor
	closer   func()
	limiter  *rate.Limiter
}

// New connects to dsn. MaxConns is derived from CPU count, with a
// small idle floor and lifetime/idle caps to avoid stale connections
// sitting behind a load balancer. queriesPerSecond paces every query
// this Reader issues against the source catalog; 0 disables pacing.
func New(ctx context.Context, dsn string, executor *backoff.Executor, queriesPerSecond float64) (*Reader, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("source: parse dsn: %w", err)
	}

	cfg.MaxConns = int32(runtime.NumCPU())
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("source: connect: %w", err)
	}

	return &Reader{pool: pool, executor: executor, closer: pool.Close, limiter: newLimiter(queriesPerSecond)}, nil
}

// NewWithQuerier builds a Reader around an arbitrary querier, letting
// tests substitute a pgxmock pool double for the real pgxpool.Pool
// without standing up Postgres. It issues queries unpaced.
func NewWithQuerier(pool querier, executor *backoff.Executor) *Reader {
	return &Reader{pool: pool, executor: executor, closer: func() {}}
}

// newLimiter returns nil (no pacing) when queriesPerSecond is non-positive.
func newLimiter(queriesPerSecond float64) *rate.Limiter {
	if queriesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(queriesPerSecond), 1)
}

// Close releases the connection pool.
func (r *Reader) Close() {
	if r.closer != nil {
		r.closer()
	}
}

// isConnectionError reports whether err indicates a lost or broken
// connection rather than a query-level failure. pgx surfaces these as
// io errors, net.Error timeouts, or messages naming the broken socket.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"conn closed",
		"closed pool",
		"unexpected EOF",
		"server closed the connection",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// run executes op through the Backoff Executor, converting any
// non-connection error into a permanent error so only connection-class
// failures are retried; everything else returns to the caller on the
// first attempt.
func (r *Reader) run(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return r.executor.Do(ctx, operation, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil || isConnectionError(err) {
			return err
		}
		return cenkalti.Permanent(err)
	})
}

// PageIterator drives a modified-id scan one LIMIT/OFFSET page at a
// time. Once a page comes back shorter than limit, Next returns that
// page and then io.EOF on the following call.
type PageIterator struct {
	reader *Reader
	table  string
	since  time.Time
	limit  int
	offset int
	done   bool
}

// StreamModifiedIDs returns a PageIterator over rows in table modified
// at or after since, paged limit at a time starting at offset.
func (r *Reader) StreamModifiedIDs(table string, since time.Time, limit, offset int) *PageIterator {
	return &PageIterator{reader: r, table: table, since: since, limit: limit, offset: offset}
}

// Offset reports the iterator's current page offset, for checkpoint
// persistence between pages.
func (p *PageIterator) Offset() int {
	return p.offset
}

// Next fetches the next page. It returns (nil, io.EOF) once the drain
// is complete; the final page it returns before that is short and may
// be empty.
func (p *PageIterator) Next(ctx context.Context) ([]ModifiedID, error) {
	if p.done {
		return nil, io.EOF
	}

	var page []ModifiedID
	err := p.reader.run(ctx, "source.stream_modified_ids", func(ctx context.Context) error {
		page = nil
		rows, err := p.reader.pool.Query(ctx,
			`SELECT id, modified FROM content.`+quoteIdent(p.table)+`
			 WHERE modified >= $1 ORDER BY modified LIMIT $2 OFFSET $3`,
			p.since, p.limit, p.offset)
		if err != nil {
			return fmt.Errorf("stream_modified_ids(%s): %w", p.table, err)
		}
		defer rows.Close()

		for rows.Next() {
			var row ModifiedID
			if err := rows.Scan(&row.ID, &row.Modified); err != nil {
				return fmt.Errorf("stream_modified_ids(%s): scan: %w", p.table, err)
			}
			page = append(page, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	p.offset += p.limit
	if len(page) < p.limit {
		p.done = true
	}
	return page, nil
}

// quoteIdent double-quotes a SQL identifier. Callers of this package
// only ever pass the fixed TableGenre/TablePerson/TableFilmWork
// constants, never external input.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// FilmIDsFor resolves the set of film ids connected to ids in the
// dependent table (genre or person) via <table>_film_work, ordered by
// film_work.modified ascending.
func (r *Reader) FilmIDsFor(ctx context.Context, table string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if table != TableGenre && table != TablePerson {
		return nil, fmt.Errorf("source: film_ids_for: unsupported dependent table %q", table)
	}

	linkTable := table + "_film_work"
	linkColumn := table + "_id"

	var filmIDs []string
	err := r.run(ctx, "source.film_ids_for", func(ctx context.Context) error {
		filmIDs = nil
		rows, err := r.pool.Query(ctx,
			`SELECT fw.id FROM content.film_work fw
			 JOIN content.`+quoteIdent(linkTable)+` link ON link.film_work_id = fw.id
			 WHERE link.`+quoteIdent(linkColumn)+` = ANY($1)
			 GROUP BY fw.id, fw.modified
			 ORDER BY fw.modified ASC`,
			ids)
		if err != nil {
			return fmt.Errorf("film_ids_for(%s): %w", table, err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("film_ids_for(%s): scan: %w", table, err)
			}
			filmIDs = append(filmIDs, id)
		}
		return rows.Err()
	})
	return filmIDs, err
}

// GetFilmRows fetches the left-join cross-product of film × person-role
// × genre for filmIDs. An empty filmIDs returns without issuing a
// query, since the underlying IN () would be invalid.
func (r *Reader) GetFilmRows(ctx context.Context, filmIDs []string) ([]transform.RawFilmRow, error) {
	if len(filmIDs) == 0 {
		return nil, nil
	}

	var out []transform.RawFilmRow
	err := r.run(ctx, "source.get_film_rows", func(ctx context.Context) error {
		out = nil
		rows, err := r.pool.Query(ctx,
			`SELECT fw.id, fw.title, fw.description, fw.rating, fw.type,
			        pfw.role, p.id, p.full_name, g.id, g.name
			 FROM content.film_work fw
			 LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
			 LEFT JOIN content.person p ON p.id = pfw.person_id
			 LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
			 LEFT JOIN content.genre g ON g.id = gfw.genre_id
			 WHERE fw.id = ANY($1)`,
			filmIDs)
		if err != nil {
			return fmt.Errorf("get_film_rows: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var row transform.RawFilmRow
			if err := rows.Scan(
				&row.FilmWorkID, &row.Title, &row.Description, &row.Rating, &row.Type,
				&row.Role, &row.PersonID, &row.PersonFullName, &row.GenreID, &row.GenreName,
			); err != nil {
				return fmt.Errorf("get_film_rows: scan: %w", err)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

// GetPersonRows fetches person × film × role rows for personIDs.
func (r *Reader) GetPersonRows(ctx context.Context, personIDs []string) ([]transform.RawPersonRow, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	var out []transform.RawPersonRow
	err := r.run(ctx, "source.get_person_rows", func(ctx context.Context) error {
		out = nil
		rows, err := r.pool.Query(ctx,
			`SELECT p.id, p.full_name, pfw.role, pfw.film_work_id
			 FROM content.person p
			 JOIN content.person_film_work pfw ON pfw.person_id = p.id
			 WHERE p.id = ANY($1)`,
			personIDs)
		if err != nil {
			return fmt.Errorf("get_person_rows: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var row transform.RawPersonRow
			if err := rows.Scan(&row.PersonID, &row.FullName, &row.Role, &row.FilmWorkID); err != nil {
				return fmt.Errorf("get_person_rows: scan: %w", err)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

// GetGenreRows fetches genre × film rows for genreIDs.
func (r *Reader) GetGenreRows(ctx context.Context, genreIDs []string) ([]transform.RawGenreRow, error) {
	if len(genreIDs) == 0 {
		return nil, nil
	}

	var out []transform.RawGenreRow
	err := r.run(ctx, "source.get_genre_rows", func(ctx context.Context) error {
		out = nil
		rows, err := r.pool.Query(ctx,
			`SELECT g.id, g.name, g.description, gfw.film_work_id
			 FROM content.genre g
			 JOIN content.genre_film_work gfw ON gfw.genre_id = g.id
			 WHERE g.id = ANY($1)`,
			genreIDs)
		if err != nil {
			return fmt.Errorf("get_genre_rows: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var row transform.RawGenreRow
			if err := rows.Scan(&row.GenreID, &row.Name, &row.Description, &row.FilmWorkID); err != nil {
				return fmt.Errorf("get_genre_rows: scan: %w", err)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}
