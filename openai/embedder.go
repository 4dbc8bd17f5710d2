// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fwojciec/minisearch"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultModel is the embedding model requested when none is configured.
const DefaultModel = "text-embedding-3-small"

// Ensure Embedder implements minisearch.Embedder.
var _ minisearch.Embedder = (*Embedder)(nil)

// Embedder calls a remote embedding endpoint and normalizes the returned
// vectors, so their dot product is cosine similarity like the local model's.
type Embedder struct {
	embedder *embeddings.EmbedderImpl
	dims     atomic.Int64
}

// Option configures an Embedder.
type Option func(*config)

type config struct {
	model string
	token string
	dims  int
}

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithToken sets the API token. Local services usually need none.
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithDimensions declares the vector size up front. Without it the size is
// learned from the first response.
func WithDimensions(n int) Option {
	return func(c *config) {
		c.dims = n
	}
}

// NewEmbedder creates an Embedder for the API at baseURL.
func NewEmbedder(baseURL string, opts ...Option) (*Embedder, error) {
	cfg := config{model: DefaultModel, token: "none"}
	for _, opt := range opts {
		opt(&cfg)
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(cfg.token),
		openai.WithEmbeddingModel(cfg.model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	e := &Embedder{embedder: embedder}
	e.dims.Store(int64(cfg.dims))
	return e, nil
}

// Embed returns the normalized embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) (minisearch.Vector, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// EmbedBatch embeds texts in as few requests as the client allows.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]minisearch.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, minisearch.Errorf(minisearch.EINVALID, "cannot embed empty text")
		}
	}

	raw, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, minisearch.Errorf(minisearch.EUNAVAILABLE, "embedding request failed: %v", err)
	}
	if len(raw) != len(texts) {
		return nil, minisearch.Errorf(minisearch.EINTERNAL, "embedding service returned %d vectors for %d texts", len(raw), len(texts))
	}

	dims := int(e.dims.Load())
	out := make([]minisearch.Vector, len(raw))
	for i, r := range raw {
		if len(r) == 0 {
			return nil, minisearch.Errorf(minisearch.EINTERNAL, "embedding service returned an empty vector")
		}
		if dims == 0 {
			dims = len(r)
			e.dims.CompareAndSwap(0, int64(dims))
		}
		if len(r) != dims {
			return nil, minisearch.Errorf(minisearch.EINTERNAL, "embedding has %d dimensions, want %d", len(r), dims)
		}
		out[i] = minisearch.Vector(r).Normalize()
	}
	return out, nil
}

// Dimensions returns the vector size, or zero before the first response
// when no size was declared.
func (e *Embedder) Dimensions() int {
	return int(e.dims.Load())
}
