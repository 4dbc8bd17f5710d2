package minisearch

import "context"

// Fetcher retrieves pages over the network.
type Fetcher interface {
	// Fetch retrieves the URL and returns its body decoded to UTF-8.
	// Non-2xx responses and unsupported content types are errors.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (*RawPage, error)

	// Close releases resources held by the fetcher.
	Close() error
}
