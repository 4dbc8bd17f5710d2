package mock

import (
	"context"

	"github.com/fwojciec/minisearch"
)

var _ minisearch.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of minisearch.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (*minisearch.RawPage, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*minisearch.RawPage, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}
