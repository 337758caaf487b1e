// Catalogsync - Catalog-to-Search Replication Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogsync

// Package sink is the Sink Writer: it ensures the search indices exist
// with their bundled mapping and performs id-keyed bulk upserts. Writes
// are at-least-once: a connection failure mid-bulk reconnects and
// retries the same batch, so downstream readers must tolerate
// re-application of identical documents.
package sink

import (
	"context"
	"embed"
	"fmt"
	"strings"

	elastic "github.com/olivere/elastic/v7"

	"github.com/tomtom215/catalogsync/internal/backoff"
	"github.com/tomtom215/catalogsync/internal/logging"
	"github.com/tomtom215/catalogsync/internal/metrics"
)

//go:embed mappings/*.json
var mappingFiles embed.FS

// Index names the three search indices the replicator owns.
const (
	IndexMovies  = "movies"
	IndexPersons = "persons"
	IndexGenres  = "genres"
)

var indexNames = []string{IndexMovies, IndexPersons, IndexGenres}

// Document is one id-keyed document destined for a bulk upsert.
type Document struct {
	ID   string
	Body any
}

// Writer is the Sink Writer.
type Writer struct {
	client   *elastic.Client
	executor *backoff.Executor
}

// New creates a Writer against an Elasticsearch node at url. Sniffing
// and the background healthcheck are disabled: the replicator talks to
// a single configured node, not a cluster it needs to discover.
func New(url, user, password string, executor *backoff.Executor) (*Writer, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if user != "" {
		opts = append(opts, elastic.SetBasicAuth(user, password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("sink: connect: %w", err)
	}
	return &Writer{client: client, executor: executor}, nil
}

// EnsureIndices creates movies, persons, and genres with their bundled
// mapping if they do not already exist. A 400 "already exists" response
// is tolerated.
func (w *Writer) EnsureIndices(ctx context.Context) error {
	for _, name := range indexNames {
		if err := w.ensureIndex(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) ensureIndex(ctx context.Context, name string) error {
	mapping, err := mappingFiles.ReadFile("mappings/" + name + ".json")
	if err != nil {
		return fmt.Errorf("sink: no bundled mapping for index %q: %w", name, err)
	}

	return w.executor.Do(ctx, "sink.ensure_index", func(ctx context.Context) error {
		exists, err := w.client.IndexExists(name).Do(ctx)
		if err != nil {
			return fmt.Errorf("sink: check index %q exists: %w", name, err)
		}
		if exists {
			return nil
		}

		_, err = w.client.CreateIndex(name).BodyString(string(mapping)).Do(ctx)
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("sink: create index %q: %w", name, err)
		}
		return nil
	})
}

// isAlreadyExists reports whether err is Elasticsearch's 400
// resource_already_exists_exception, which two racing replicator
// instances can both hit at startup.
func isAlreadyExists(err error) bool {
	var elasticErr *elastic.Error
	if e, ok := err.(*elastic.Error); ok {
		elasticErr = e
	}
	if elasticErr == nil {
		return strings.Contains(err.Error(), "resource_already_exists_exception")
	}
	return elasticErr.Status == 400 &&
		elasticErr.Details != nil &&
		elasticErr.Details.Type == "resource_already_exists_exception"
}

// BulkUpsert writes docs into index as one bulk request. On connection
// failure the Backoff Executor reconnects and retries the whole batch;
// since writes are id-keyed upserts this is idempotent. Per-document
// rejections (mapping conflicts, malformed bodies) are logged and
// skipped rather than failing the batch; the next modification to the
// affected row retries them.
func (w *Writer) BulkUpsert(ctx context.Context, index string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	return w.executor.Do(ctx, "sink.bulk_upsert", func(ctx context.Context) error {
		bulk := w.client.Bulk()
		for _, doc := range docs {
			bulk = bulk.Add(elastic.NewBulkIndexRequest().Index(index).Id(doc.ID).Doc(doc.Body))
		}

		resp, err := bulk.Do(ctx)
		if err != nil {
			return fmt.Errorf("sink: bulk upsert into %q: %w", index, err)
		}

		for _, failed := range resp.Failed() {
			logging.Ctx(ctx).Error().
				Str("index", index).
				Str("id", failed.Id).
				Interface("error", failed.Error).
				Msg("bulk upsert rejected document")
			metrics.RecordSkippedRow(index, "bulk_rejected")
		}

		metrics.RecordUpserts(index, len(resp.Succeeded()))
		return nil
	})
}
