package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fwojciec/minisearch"
)

// Ensure Reader implements minisearch.IndexReader.
var _ minisearch.IndexReader = (*Reader)(nil)

// Reader opens snapshots of the committed index. The vector set of the
// current generation is loaded once and shared by all snapshots.
type Reader struct {
	db      *DB
	owned   bool
	vectors atomic.Pointer[VectorSet]
}

// NewReader creates a Reader on an open database.
func NewReader(db *DB) *Reader {
	return &Reader{db: db}
}

// OpenReader opens the index in dir for searching.
// Returns ENOTFOUND if no index exists there.
func OpenReader(dir string) (*Reader, error) {
	db := NewDB(dir)
	if err := db.OpenExisting(); err != nil {
		return nil, err
	}
	return &Reader{db: db, owned: true}, nil
}

// Close closes the database if the reader opened it.
func (r *Reader) Close() error {
	if r.owned {
		return r.db.Close()
	}
	return nil
}

// Snapshot begins a read transaction pinned to the last committed generation.
func (r *Reader) Snapshot(ctx context.Context) (minisearch.Snapshot, error) {
	tx, err := r.db.rdb.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}

	s := &snapshot{tx: tx}
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'generation'`).Scan(&s.generation); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to read generation: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&s.count); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	vs := r.vectors.Load()
	if vs == nil || vs.generation != s.generation {
		vs, err = loadVectors(ctx, tx, s.generation)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		r.vectors.Store(vs)
	}
	s.vectors = vs

	return s, nil
}

func loadVectors(ctx context.Context, tx *sql.Tx, generation uint64) (*VectorSet, error) {
	var dims int
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dimensions'`).Scan(&dims); err != nil {
		return nil, fmt.Errorf("failed to read dimensions: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, embedding FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	defer rows.Close()

	vs := &VectorSet{generation: generation, dims: dims}
	for rows.Next() {
		var id minisearch.DocumentID
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		if len(blob) != 4*dims {
			return nil, minisearch.Errorf(minisearch.EINTERNAL, "document %d has %d embedding bytes, want %d", id, len(blob), 4*dims)
		}
		if vs.data, err = decodeVectorInto(vs.data, blob); err != nil {
			return nil, err
		}
		vs.ids = append(vs.ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vectors: %w", err)
	}
	return vs, nil
}

// snapshot implements minisearch.Snapshot over a read transaction.
type snapshot struct {
	tx         *sql.Tx
	generation uint64
	count      int
	vectors    *VectorSet
}

func (s *snapshot) Generation() uint64 {
	return s.generation
}

func (s *snapshot) Len() int {
	return s.count
}

// LexicalSearch ranks documents with BM25, weighting title terms twice as
// heavily as body terms. Documents matching none of the terms are excluded.
func (s *snapshot) LexicalSearch(ctx context.Context, terms []string, limit int) ([]minisearch.LexicalHit, error) {
	expr := matchExpression(terms)
	if expr == "" {
		return nil, nil
	}

	var query strings.Builder
	args := []any{expr}
	query.WriteString(`
		SELECT rowid, bm25(postings, 2.0, 1.0) AS score
		FROM postings
		WHERE postings MATCH ?
		ORDER BY score, rowid
	`)
	appendLimit(&query, &args, limit)

	rows, err := s.tx.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var hits []minisearch.LexicalHit
	for rows.Next() {
		var hit minisearch.LexicalHit
		var rank float64
		if err := rows.Scan(&hit.ID, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		// FTS5 reports BM25 as a negative number; lower is better.
		hit.Score = -rank
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hits: %w", err)
	}
	return hits, nil
}

func (s *snapshot) Dimensions() int {
	return s.vectors.Dimensions()
}

func (s *snapshot) NearestVectors(query minisearch.Vector, limit int) []minisearch.VectorHit {
	return s.vectors.Nearest(query, limit)
}

func (s *snapshot) Documents(ctx context.Context, ids []minisearch.DocumentID) (map[minisearch.DocumentID]*minisearch.Document, error) {
	docs := make(map[minisearch.DocumentID]*minisearch.Document, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.tx.QueryContext(ctx, `
		SELECT id, url, title, body, content_hash, embedding, fetched_at
		FROM documents
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc minisearch.Document
		var blob []byte
		var fetchedAt string
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Text, &doc.ContentHash, &blob, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if len(blob) > 0 {
			v, err := decodeVectorInto(make([]float32, 0, len(blob)/4), blob)
			if err != nil {
				return nil, err
			}
			doc.Embedding = v
		}
		if doc.FetchedAt, err = parseRFC3339(fetchedAt, "fetched_at"); err != nil {
			return nil, err
		}
		docs[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// Close ends the read transaction.
func (s *snapshot) Close() error {
	return s.tx.Rollback()
}
