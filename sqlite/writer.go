package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/minisearch"
)

// Ensure Writer implements minisearch.IndexWriter.
var _ minisearch.IndexWriter = (*Writer)(nil)

// Writer buffers documents and publishes them in atomic commits.
// Documents re-added under an existing URL replace the stored row and keep its ID.
type Writer struct {
	db *DB

	commitMu sync.Mutex // serializes commits

	mu        sync.Mutex // guards the fields below
	buf       []*minisearch.Document
	reset     bool
	resetDone bool
	dims      int
	dimsKnown bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithReset makes the first commit replace the whole index instead of
// adding to it. Until that commit, readers keep seeing the old index.
func WithReset() WriterOption {
	return func(w *Writer) {
		w.reset = true
	}
}

// NewWriter creates a Writer for db.
func NewWriter(db *DB, opts ...WriterOption) *Writer {
	w := &Writer{db: db}
	for _, opt := range opts {
		opt(w)
	}
	if w.reset {
		w.dimsKnown = true
	}
	return w
}

// Add buffers doc for the next commit. Every embedding in the index must
// have the same length; a mismatch returns EINVALID.
func (w *Writer) Add(ctx context.Context, doc *minisearch.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if doc.HasEmbedding() {
		if !w.dimsKnown {
			var dims int
			if err := w.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimensions'`).Scan(&dims); err != nil {
				return fmt.Errorf("failed to read index dimensions: %w", err)
			}
			w.dims, w.dimsKnown = dims, true
		}
		switch {
		case w.dims == 0:
			w.dims = len(doc.Embedding)
		case w.dims != len(doc.Embedding):
			return minisearch.Errorf(minisearch.EINVALID, "embedding of %s has %d dimensions, index has %d", doc.URL, len(doc.Embedding), w.dims)
		}
	}

	w.buf = append(w.buf, doc)
	return nil
}

// Commit writes all buffered documents in one transaction and bumps the
// index generation. The buffer is cleared whether or not the commit succeeds.
func (w *Writer) Commit(ctx context.Context) error {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	w.mu.Lock()
	docs := w.buf
	w.buf = nil
	reset := w.reset && !w.resetDone
	dims := w.dims
	w.mu.Unlock()

	if len(docs) == 0 && !reset {
		return nil
	}

	tx, err := w.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if reset {
		if err := resetIndex(ctx, tx); err != nil {
			return err
		}
	}

	ids := make([]minisearch.DocumentID, len(docs))
	for i, doc := range docs {
		id, err := writeDocument(ctx, tx, doc)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	if dims > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'dimensions'`, dims); err != nil {
			return fmt.Errorf("failed to store dimensions: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value + 1 WHERE key = 'generation'`); err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	for i, doc := range docs {
		doc.ID = ids[i]
	}
	if reset {
		w.mu.Lock()
		w.resetDone = true
		w.mu.Unlock()
	}
	return nil
}

// Abort discards all buffered documents.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = nil
	return nil
}

// Pending returns the number of buffered documents.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

func resetIndex(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DELETE FROM postings`,
		`DELETE FROM documents`,
		`UPDATE meta SET value = 0 WHERE key = 'dimensions'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
	}
	return nil
}

// writeDocument upserts the document row and replaces its postings.
func writeDocument(ctx context.Context, tx *sql.Tx, doc *minisearch.Document) (minisearch.DocumentID, error) {
	fetchedAt := doc.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	var embedding any
	if doc.HasEmbedding() {
		embedding = encodeVector(doc.Embedding)
	}

	var id minisearch.DocumentID
	err := tx.QueryRowContext(ctx, `
		INSERT INTO documents (url, title, body, content_hash, embedding, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			content_hash = excluded.content_hash,
			embedding = excluded.embedding,
			fetched_at = excluded.fetched_at
		RETURNING id
	`,
		doc.URL,
		doc.Title,
		doc.Text,
		doc.ContentHash,
		embedding,
		fetchedAt.UTC().Format(time.RFC3339),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to write document %s: %w", doc.URL, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE rowid = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO postings (rowid, title_terms, body_terms) VALUES (?, ?, ?)
	`, id, minisearch.TermStream(doc.Title), minisearch.TermStream(doc.Text)); err != nil {
		return 0, fmt.Errorf("failed to write postings: %w", err)
	}

	return id, nil
}
