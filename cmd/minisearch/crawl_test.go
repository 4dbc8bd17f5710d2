package main_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fwojciec/minisearch"
	main "github.com/fwojciec/minisearch/cmd/minisearch"
	"github.com/fwojciec/minisearch/crawl"
	"github.com/fwojciec/minisearch/html"
	"github.com/fwojciec/minisearch/ingest"
	"github.com/fwojciec/minisearch/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagesCrawler(pages ...*minisearch.RawPage) ingest.Crawler {
	return ingest.CrawlFunc(func(ctx context.Context, _ string, out chan<- *minisearch.RawPage) (*crawl.Result, error) {
		defer close(out)
		size := 0
		for _, p := range pages {
			select {
			case out <- p:
				size += len(p.Content)
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return &crawl.Result{Fetched: len(pages), Failed: 1, Bytes: size}, nil
	})
}

func page(url, body string) *minisearch.RawPage {
	return &minisearch.RawPage{
		URL:         url,
		ContentType: "text/html",
		StatusCode:  200,
		Content:     []byte("<html><body><p>" + body + "</p></body></html>"),
	}
}

func TestCrawlCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints a summary", func(t *testing.T) {
		t.Parallel()

		var added int
		index := &mock.IndexWriter{
			AddFn:    func(context.Context, *minisearch.Document) error { added++; return nil },
			CommitFn: func(context.Context) error { return nil },
			AbortFn:  func() error { return nil },
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: stderr,
			Pipeline: &ingest.Pipeline{
				Crawler: pagesCrawler(
					page("https://example.com/a", "alpha"),
					page("https://example.com/b", "beta"),
					page("https://example.com/c", "alpha"),
				),
				Extractor: html.NewExtractor(),
				Index:     index,
				Workers:   1,
			},
		}

		cmd := &main.CrawlCmd{URL: "https://example.com/"}
		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Equal(t, 2, added)
		out := stdout.String()
		assert.Contains(t, out, "Crawling https://example.com/")
		assert.Contains(t, out, "Fetched 3 pages")
		assert.Contains(t, out, "1 failed")
		assert.Contains(t, out, "Indexed 2 documents")
		assert.Contains(t, out, "Skipped 1 duplicates")
		assert.Empty(t, stderr.String())
	})

	t.Run("reports commit failures", func(t *testing.T) {
		t.Parallel()

		index := &mock.IndexWriter{
			AddFn:    func(context.Context, *minisearch.Document) error { return nil },
			CommitFn: func(context.Context) error { return minisearch.Errorf(minisearch.EINTERNAL, "disk full") },
			AbortFn:  func() error { return nil },
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: stderr,
			Pipeline: &ingest.Pipeline{
				Crawler:   pagesCrawler(page("https://example.com/a", "alpha")),
				Extractor: html.NewExtractor(),
				Index:     index,
			},
		}

		cmd := &main.CrawlCmd{URL: "https://example.com/"}
		err := cmd.Run(deps)

		require.Error(t, err)
		assert.Contains(t, stderr.String(), "error: disk full")
		assert.NotContains(t, stderr.String(), "interrupted")
	})
}
