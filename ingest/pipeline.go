// Package ingest turns crawled pages into committed index documents:
// extraction and deduplication on a worker pool, batched embedding and
// periodic commits.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/crawl"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"
)

// Pipeline defaults.
const (
	DefaultBatchSize   = 16
	DefaultMaxPending  = 256
	DefaultCommitEvery = 500
)

// Crawler produces raw pages. *crawl.Crawler implements it.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string, pages chan<- *minisearch.RawPage) (*crawl.Result, error)
}

// CrawlFunc adapts a function to the Crawler interface.
type CrawlFunc func(ctx context.Context, seedURL string, pages chan<- *minisearch.RawPage) (*crawl.Result, error)

// Crawl calls f.
func (f CrawlFunc) Crawl(ctx context.Context, seedURL string, pages chan<- *minisearch.RawPage) (*crawl.Result, error) {
	return f(ctx, seedURL, pages)
}

// Pipeline crawls a site and indexes its pages.
//
// Extraction runs on a pool of Workers goroutines. Extracted documents queue
// for a single embedding goroutine in a channel of MaxPending slots; when it
// is full the pool stalls and, through the blocking page channel, so does the
// crawl. Every CommitEvery documents the index is committed, and once more
// at the end if anything is left. If anything fails or ctx is canceled,
// uncommitted documents are discarded and earlier commits stay visible.
type Pipeline struct {
	Crawler     Crawler
	Extractor   minisearch.Extractor
	Embedder    minisearch.Embedder // Optional; documents are indexed lexically without it
	Index       minisearch.IndexWriter
	Runs        minisearch.RunService // Optional run history
	Workers     int                   // Extraction pool size; GOMAXPROCS if zero
	BatchSize   int
	MaxPending  int
	CommitEvery int
	Logger      *slog.Logger
}

// Result holds the outcome of a pipeline run.
type Result struct {
	RunID       string
	Crawl       *crawl.Result
	Indexed     int // Committed documents
	Embedded    int // Committed documents with an embedding
	EmbedFailed int // Documents indexed without an embedding
	Duplicates  int // Pages whose text matched an earlier page
	Skipped     int // Pages with no extractable text
	Commits     int
	Duration    time.Duration
}

// run holds the mutable state of one Run call.
type run struct {
	*Pipeline
	logger *slog.Logger

	mu     sync.Mutex
	hashes map[uint64]string // content hash to first URL

	duplicates atomic.Int64
	skipped    atomic.Int64

	// Owned by the indexing goroutine until the group finishes.
	batch             []*minisearch.Document
	uncommitted       int
	uncommittedEmbed  int
	uncommittedFailed int
	result            Result
}

// Run crawls from seedURL and indexes everything the crawl delivers.
func (p *Pipeline) Run(ctx context.Context, seedURL string) (*Result, error) {
	begin := time.Now()
	r := &run{
		Pipeline: p,
		logger:   p.Logger,
		hashes:   make(map[uint64]string),
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	record := &minisearch.Run{SeedURL: seedURL}
	if p.Runs != nil {
		if err := p.Runs.CreateRun(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		r.result.RunID = record.ID
	}

	err := r.execute(ctx, seedURL)

	res := &r.result
	res.Duplicates = int(r.duplicates.Load())
	res.Skipped = int(r.skipped.Load())
	res.Duration = time.Since(begin)

	if p.Runs != nil {
		record.Status = minisearch.RunCompleted
		switch {
		case err != nil && ctx.Err() != nil:
			record.Status = minisearch.RunAborted
		case err != nil:
			record.Status = minisearch.RunFailed
		}
		if res.Crawl != nil {
			record.Fetched = res.Crawl.Fetched
			record.Failed = res.Crawl.Failed
		}
		record.Indexed = res.Indexed
		record.Embedded = res.Embedded
		record.EmbedFailed = res.EmbedFailed
		record.Duplicates = res.Duplicates
		if ferr := p.Runs.FinishRun(context.WithoutCancel(ctx), record); ferr != nil {
			r.logger.Error("failed to record run result", "run", record.ID, "err", ferr)
		}
	}

	return res, err
}

func (r *run) execute(ctx context.Context, seedURL string) error {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	maxPending := r.MaxPending
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create extraction pool: %w", err)
	}
	defer pool.Release()

	pages := make(chan *minisearch.RawPage)
	pending := make(chan *minisearch.Document, maxPending)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := r.Crawler.Crawl(gctx, seedURL, pages)
		r.result.Crawl = res
		return err
	})

	g.Go(func() error {
		defer close(pending)
		var wg sync.WaitGroup
		defer wg.Wait()
		for page := range pages {
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				doc := r.process(page)
				if doc == nil {
					return
				}
				select {
				case pending <- doc:
				case <-gctx.Done():
				}
			})
			if err != nil {
				wg.Done()
				return fmt.Errorf("failed to submit page: %w", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		return r.index(gctx, pending)
	})

	err = g.Wait()
	if err == nil {
		err = r.commit(context.WithoutCancel(ctx))
	}
	if err != nil {
		if aerr := r.Index.Abort(); aerr != nil {
			r.logger.Error("failed to discard uncommitted documents", "err", aerr)
		}
		return err
	}
	return nil
}

// process extracts and deduplicates one page. It returns nil for pages that
// yield no new text.
func (r *run) process(page *minisearch.RawPage) *minisearch.Document {
	var title, text string
	switch {
	case page.IsText():
		text = strings.TrimSpace(string(page.Content))
	case page.IsHTML():
		res, err := r.Extractor.Extract(page.Content)
		if err != nil {
			r.skipped.Add(1)
			r.logger.Warn("extraction failed", "url", page.URL, "err", err)
			return nil
		}
		title, text = res.Title, res.Text
	default:
		r.skipped.Add(1)
		r.logger.Debug("unsupported content type", "url", page.URL, "type", page.ContentType)
		return nil
	}

	if title == "" && text == "" {
		r.skipped.Add(1)
		r.logger.Debug("no text", "url", page.URL)
		return nil
	}

	sum := ContentHash(title, text)
	r.mu.Lock()
	first, dup := r.hashes[sum]
	if !dup {
		r.hashes[sum] = page.URL
	}
	r.mu.Unlock()
	if dup {
		r.duplicates.Add(1)
		r.logger.Debug("duplicate content", "url", page.URL, "of", first)
		return nil
	}

	fetchedAt := page.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	return &minisearch.Document{
		URL:         page.URL,
		Title:       title,
		Text:        text,
		ContentHash: fmt.Sprintf("%016x", sum),
		FetchedAt:   fetchedAt,
	}
}

// ContentHash returns the hash used to detect pages with identical text.
func ContentHash(title, text string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(title)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(text)
	return d.Sum64()
}

// index batches pending documents through the embedder into the index and
// commits periodically.
func (r *run) index(ctx context.Context, pending <-chan *minisearch.Document) error {
	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for doc := range pending {
		r.batch = append(r.batch, doc)
		if len(r.batch) >= batchSize {
			if err := r.flush(ctx); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.flush(ctx)
}

// flush embeds the current batch, adds it to the index and commits when
// enough documents have accumulated.
func (r *run) flush(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := r.batch
	r.batch = nil

	r.embed(ctx, batch)

	for _, doc := range batch {
		if err := r.Index.Add(ctx, doc); err != nil {
			return fmt.Errorf("failed to add %s: %w", doc.URL, err)
		}
		r.uncommitted++
		if doc.HasEmbedding() {
			r.uncommittedEmbed++
		} else if r.Embedder != nil {
			r.uncommittedFailed++
		}
	}

	commitEvery := r.CommitEvery
	if commitEvery <= 0 {
		commitEvery = DefaultCommitEvery
	}
	if r.uncommitted >= commitEvery {
		return r.commit(context.WithoutCancel(ctx))
	}
	return nil
}

// embed sets the embedding of each document in batch. If the batch call
// fails, documents are embedded one by one so a single bad input only
// costs its own vector.
func (r *run) embed(ctx context.Context, batch []*minisearch.Document) {
	if r.Embedder == nil {
		return
	}

	inputs := make([]string, len(batch))
	for i, doc := range batch {
		inputs[i] = doc.EmbeddingInput()
	}

	vectors, err := r.Embedder.EmbedBatch(ctx, inputs)
	if err == nil && len(vectors) != len(batch) {
		err = minisearch.Errorf(minisearch.EINTERNAL, "embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}
	if err == nil {
		for i, doc := range batch {
			doc.Embedding = vectors[i]
		}
		return
	}

	r.logger.Debug("batch embedding failed, embedding individually", "size", len(batch), "err", err)
	for i, doc := range batch {
		if ctx.Err() != nil {
			return
		}
		v, err := r.Embedder.Embed(ctx, inputs[i])
		if err != nil {
			r.logger.Warn("embedding failed, indexing lexically", "url", doc.URL, "err", err)
			continue
		}
		doc.Embedding = v
	}
}

// commit publishes everything added since the last commit.
func (r *run) commit(ctx context.Context) error {
	if r.uncommitted == 0 {
		return nil
	}
	begin := time.Now()
	if err := r.Index.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	r.result.Commits++
	r.result.Indexed += r.uncommitted
	r.result.Embedded += r.uncommittedEmbed
	r.result.EmbedFailed += r.uncommittedFailed
	r.logger.Info("index committed",
		"documents", r.uncommitted,
		"total", r.result.Indexed,
		"duration", time.Since(begin),
	)
	r.uncommitted, r.uncommittedEmbed, r.uncommittedFailed = 0, 0, 0
	return nil
}
