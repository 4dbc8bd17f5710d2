package mock

import (
	"context"

	"github.com/fwojciec/minisearch"
)

var _ minisearch.IndexWriter = (*IndexWriter)(nil)

// IndexWriter is a mock implementation of minisearch.IndexWriter.
type IndexWriter struct {
	AddFn    func(ctx context.Context, doc *minisearch.Document) error
	CommitFn func(ctx context.Context) error
	AbortFn  func() error
}

func (w *IndexWriter) Add(ctx context.Context, doc *minisearch.Document) error {
	return w.AddFn(ctx, doc)
}

func (w *IndexWriter) Commit(ctx context.Context) error {
	return w.CommitFn(ctx)
}

func (w *IndexWriter) Abort() error {
	return w.AbortFn()
}

var _ minisearch.IndexReader = (*IndexReader)(nil)

// IndexReader is a mock implementation of minisearch.IndexReader.
type IndexReader struct {
	SnapshotFn func(ctx context.Context) (minisearch.Snapshot, error)
}

func (r *IndexReader) Snapshot(ctx context.Context) (minisearch.Snapshot, error) {
	return r.SnapshotFn(ctx)
}

var _ minisearch.Snapshot = (*Snapshot)(nil)

// Snapshot is a mock implementation of minisearch.Snapshot.
type Snapshot struct {
	GenerationFn     func() uint64
	LenFn            func() int
	DimensionsFn     func() int
	LexicalSearchFn  func(ctx context.Context, terms []string, limit int) ([]minisearch.LexicalHit, error)
	NearestVectorsFn func(query minisearch.Vector, limit int) []minisearch.VectorHit
	DocumentsFn      func(ctx context.Context, ids []minisearch.DocumentID) (map[minisearch.DocumentID]*minisearch.Document, error)
	CloseFn          func() error
}

func (s *Snapshot) Generation() uint64 {
	return s.GenerationFn()
}

func (s *Snapshot) Len() int {
	return s.LenFn()
}

func (s *Snapshot) LexicalSearch(ctx context.Context, terms []string, limit int) ([]minisearch.LexicalHit, error) {
	return s.LexicalSearchFn(ctx, terms, limit)
}

func (s *Snapshot) Dimensions() int {
	return s.DimensionsFn()
}

func (s *Snapshot) NearestVectors(query minisearch.Vector, limit int) []minisearch.VectorHit {
	return s.NearestVectorsFn(query, limit)
}

func (s *Snapshot) Documents(ctx context.Context, ids []minisearch.DocumentID) (map[minisearch.DocumentID]*minisearch.Document, error) {
	return s.DocumentsFn(ctx, ids)
}

func (s *Snapshot) Close() error {
	return s.CloseFn()
}
