package main_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fwojciec/minisearch"
	main "github.com/fwojciec/minisearch/cmd/minisearch"
	"github.com/fwojciec/minisearch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints ranked results", func(t *testing.T) {
		t.Parallel()

		var got minisearch.SearchOptions
		searcher := &mock.Searcher{
			SearchFn: func(_ context.Context, query string, opts minisearch.SearchOptions) ([]*minisearch.SearchResult, error) {
				assert.Equal(t, "install rust", query)
				got = opts
				return []*minisearch.SearchResult{
					{
						ID:    1,
						URL:   "https://example.com/rust",
						Title: "Rust",
						Score: 0.9,
						Snippet: minisearch.Snippet{
							Text:       "Install Rust with rustup",
							Highlights: []minisearch.Range{{Start: 0, End: 7}, {Start: 8, End: 12}},
						},
					},
					{ID: 2, URL: "https://example.com/go", Score: 0.25},
				}, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:      context.Background(),
			Stdout:   stdout,
			Stderr:   &bytes.Buffer{},
			Searcher: searcher,
		}

		cmd := &main.SearchCmd{Query: "install rust", Limit: 5, Mode: "lexical", LexicalWeight: 0.7, SemanticWeight: 0.3}
		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Equal(t, minisearch.SearchOptions{
			Limit:          5,
			Mode:           minisearch.SearchLexical,
			LexicalWeight:  0.7,
			SemanticWeight: 0.3,
		}, got)

		out := stdout.String()
		assert.Contains(t, out, " 1. 0.900  https://example.com/rust")
		assert.Contains(t, out, "    Rust\n")
		assert.Contains(t, out, "*Install* *Rust* with rustup")
		assert.Contains(t, out, " 2. 0.250  https://example.com/go")
	})

	t.Run("reports no results", func(t *testing.T) {
		t.Parallel()

		searcher := &mock.Searcher{
			SearchFn: func(context.Context, string, minisearch.SearchOptions) ([]*minisearch.SearchResult, error) {
				return nil, nil
			},
		}

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{Ctx: context.Background(), Stdout: stdout, Stderr: &bytes.Buffer{}, Searcher: searcher}

		err := (&main.SearchCmd{Query: "nothing"}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, "No results for \"nothing\".\n", stdout.String())
	})

	t.Run("prints errors", func(t *testing.T) {
		t.Parallel()

		searcher := &mock.Searcher{
			SearchFn: func(context.Context, string, minisearch.SearchOptions) ([]*minisearch.SearchResult, error) {
				return nil, minisearch.Errorf(minisearch.EINVALID, "unknown search mode %q", "fuzzy")
			},
		}

		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{Ctx: context.Background(), Stdout: &bytes.Buffer{}, Stderr: stderr, Searcher: searcher}

		err := (&main.SearchCmd{Query: "q", Mode: "fuzzy"}).Run(deps)

		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
		assert.Contains(t, stderr.String(), "error: unknown search mode")
	})
}
