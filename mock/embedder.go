package mock

import (
	"context"

	"github.com/fwojciec/minisearch"
)

var _ minisearch.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of minisearch.Embedder.
type Embedder struct {
	EmbedFn      func(ctx context.Context, text string) (minisearch.Vector, error)
	EmbedBatchFn func(ctx context.Context, texts []string) ([]minisearch.Vector, error)
	DimensionsFn func() int
}

func (e *Embedder) Embed(ctx context.Context, text string) (minisearch.Vector, error) {
	return e.EmbedFn(ctx, text)
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]minisearch.Vector, error) {
	return e.EmbedBatchFn(ctx, texts)
}

func (e *Embedder) Dimensions() int {
	return e.DimensionsFn()
}
