package mock

import (
	"context"

	"github.com/fwojciec/minisearch"
)

var _ minisearch.Searcher = (*Searcher)(nil)

// Searcher is a mock implementation of minisearch.Searcher.
type Searcher struct {
	SearchFn func(ctx context.Context, query string, opts minisearch.SearchOptions) ([]*minisearch.SearchResult, error)
}

func (s *Searcher) Search(ctx context.Context, query string, opts minisearch.SearchOptions) ([]*minisearch.SearchResult, error) {
	return s.SearchFn(ctx, query, opts)
}
