// Package crawl implements bounded, scoped crawling: a coordinator owns the
// URL frontier and dispatches fetches to a pool of workers, all sharing one
// page budget.
package crawl

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fwojciec/minisearch"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of fetch workers.
const DefaultConcurrency = 10

// frontierFalsePositiveRate is the acceptable false positive rate for
// deduplication. A false positive skips a page; it never duplicates one.
const frontierFalsePositiveRate = 0.001

// linksPerPage sizes the visited set relative to the budget.
const linksPerPage = 20

// Crawler fetches pages breadth first from a seed URL.
//
// Links are followed on the seed's host only. PathPrefix is a preference:
// links under it are fetched before links outside it, but both are
// eligible, so a crawl may leave the prefix once it is exhausted.
type Crawler struct {
	Fetcher      minisearch.Fetcher
	LinkSelector minisearch.LinkSelector
	RateLimiter  minisearch.DomainLimiter  // Optional
	Sitemaps     minisearch.SitemapService // Optional seed expansion
	Concurrency  int
	Budget       int    // Maximum pages fetched; DefaultBudget if zero
	PathPrefix   string // Preferred path prefix; derived from the seed if empty
	MaxDepth     int    // Link depth limit; zero means unlimited
	Progress     ProgressFunc
	Logger       *slog.Logger
}

// Result holds the outcome of a crawl.
type Result struct {
	Fetched   int  // Pages delivered to the consumer
	Failed    int  // Fetches that failed and were dropped
	Bytes     int  // Content bytes delivered
	Visited   int  // Distinct URLs discovered
	Exhausted bool // Budget ran out before the frontier did
}

// ProgressEvent reports progress during a crawl.
type ProgressEvent struct {
	Type    ProgressType
	Fetched int
	Failed  int
	Queued  int
	URL     string
	Error   error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressFetched ProgressType = iota
	ProgressFailed
)

// ProgressFunc is a callback for reporting crawl progress. It is called
// from the coordinator goroutine only.
type ProgressFunc func(event ProgressEvent)

// fetchResult is a worker's report on one task.
type fetchResult struct {
	task      minisearch.CrawlTask
	finalURL  string
	bytes     int
	links     []minisearch.DiscoveredLink
	exhausted bool
	err       error
}

// Crawl fetches pages starting at seedURL and sends them to pages until the
// budget is spent, the frontier is empty or ctx is canceled. Sends block, so
// a slow consumer pauses the crawl. Crawl closes pages before returning.
//
// Fetch failures are logged and counted, never retried and never fatal.
// On cancellation Crawl waits for workers to exit and returns ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, seedURL string, pages chan<- *minisearch.RawPage) (*Result, error) {
	defer close(pages)

	seed, err := NormalizeURL(seedURL)
	if err != nil {
		return nil, err
	}
	seedU, err := url.Parse(seed)
	if err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid seed URL: %v", err)
	}

	prefix := c.PathPrefix
	if prefix == "" {
		prefix = scopePrefix(seedU.Path)
	}

	size := c.Budget
	if size <= 0 {
		size = DefaultBudget
	}
	budget := NewBudget(size)

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	frontier := NewFrontier(uint(max(size*linksPerPage, 1000)), frontierFalsePositiveRate)
	frontier.Push(minisearch.CrawlTask{URL: seed, Priority: minisearch.PrioritySeed})

	s := &session{
		crawler:  c,
		host:     seedU.Host,
		prefix:   prefix,
		frontier: frontier,
		logger:   c.logger(),
	}
	s.seedFromSitemaps(ctx, seed)

	g, gctx := errgroup.WithContext(ctx)
	workCh := make(chan minisearch.CrawlTask)
	resultCh := make(chan fetchResult)

	for range concurrency {
		g.Go(func() error {
			for task := range workCh {
				res := c.fetch(gctx, task, budget, pages)
				select {
				case resultCh <- res:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	// Coordinator loop
	pending := 0
	var next *minisearch.CrawlTask
	popNext := func() {
		if next != nil || s.result.Exhausted || budget.Remaining() <= 0 {
			return
		}
		if task, ok := frontier.Pop(); ok {
			next = &task
		}
	}
	popNext()

coordinatorLoop:
	for next != nil || pending > 0 {
		// A nil channel disables the dispatch case.
		var dispatch chan<- minisearch.CrawlTask
		var task minisearch.CrawlTask
		if next != nil {
			dispatch = workCh
			task = *next
		}

		select {
		case <-ctx.Done():
			break coordinatorLoop
		case dispatch <- task:
			pending++
			next = nil
		case res := <-resultCh:
			pending--
			s.handle(ctx, res)
			if s.result.Exhausted {
				next = nil
			}
		}

		popNext()
	}

	close(workCh)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.result.Visited = frontier.Visited()
	if budget.Remaining() == 0 && frontier.Len() > 0 {
		s.result.Exhausted = true
	}
	if err := ctx.Err(); err != nil {
		return &s.result, err
	}

	s.logger.Debug("crawl finished",
		"seed", seed,
		"fetched", s.result.Fetched,
		"failed", s.result.Failed,
		"visited", s.result.Visited,
		"exhausted", s.result.Exhausted,
	)
	return &s.result, nil
}

// fetch runs on a worker: it reserves budget, waits for the rate limiter,
// fetches the page, extracts its links and hands the page to the consumer.
func (c *Crawler) fetch(ctx context.Context, task minisearch.CrawlTask, budget *Budget, pages chan<- *minisearch.RawPage) fetchResult {
	res := fetchResult{task: task}

	if !budget.Take() {
		res.exhausted = true
		return res
	}

	if c.RateLimiter != nil {
		u, err := url.Parse(task.URL)
		if err != nil {
			res.err = err
			return res
		}
		if err := c.RateLimiter.Wait(ctx, u.Host); err != nil {
			res.err = err
			return res
		}
	}

	page, err := c.Fetcher.Fetch(ctx, task.URL)
	if err != nil {
		res.err = err
		return res
	}
	page.Depth = task.Depth
	if page.FinalURL == "" {
		page.FinalURL = page.URL
	}
	res.finalURL = page.FinalURL
	res.bytes = len(page.Content)

	if page.IsHTML() && (c.MaxDepth <= 0 || task.Depth < c.MaxDepth) {
		links, err := c.LinkSelector.ExtractLinks(page.Content, page.FinalURL)
		if err != nil {
			c.logger().Debug("link extraction failed", "url", task.URL, "err", err)
		}
		res.links = links
	}

	select {
	case pages <- page:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	return res
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// session is the coordinator's state for one crawl.
type session struct {
	crawler  *Crawler
	host     string
	prefix   string
	frontier *Frontier
	logger   *slog.Logger
	result   Result
}

// seedFromSitemaps queues sitemap URLs after the seed. Sitemap failures are
// logged and otherwise ignored.
func (s *session) seedFromSitemaps(ctx context.Context, seed string) {
	if s.crawler.Sitemaps == nil {
		return
	}
	urls, err := s.crawler.Sitemaps.DiscoverURLs(ctx, seed)
	if err != nil {
		s.logger.Warn("sitemap discovery failed", "url", seed, "err", err)
		return
	}
	queued := 0
	for _, u := range urls {
		if s.enqueue(u, 1) {
			queued++
		}
	}
	s.logger.Debug("sitemap discovery", "url", seed, "found", len(urls), "queued", queued)
}

// handle applies a worker's result to the frontier and counters.
func (s *session) handle(ctx context.Context, res fetchResult) {
	switch {
	case res.exhausted:
		s.result.Exhausted = true
		return
	case res.err != nil:
		if ctx.Err() != nil && errors.Is(res.err, ctx.Err()) {
			return
		}
		s.result.Failed++
		s.logger.Warn("fetch failed", "url", res.task.URL, "err", res.err)
		s.report(ProgressFailed, res.task.URL, res.err)
		return
	}

	s.result.Fetched++
	s.result.Bytes += res.bytes
	if res.finalURL != res.task.URL {
		s.frontier.Visit(res.finalURL)
	}
	for _, link := range res.links {
		s.enqueue(link.URL, res.task.Depth+1)
	}
	s.report(ProgressFetched, res.task.URL, nil)
}

// enqueue pushes a same-host URL with a priority reflecting the preferred
// path prefix.
func (s *session) enqueue(rawURL string, depth int) bool {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(normalized)
	if err != nil || !strings.EqualFold(u.Host, s.host) {
		return false
	}
	priority := minisearch.PriorityFallback
	if inScope(u.Path, s.prefix) {
		priority = minisearch.PriorityPreferred
	}
	return s.frontier.Push(minisearch.CrawlTask{URL: normalized, Depth: depth, Priority: priority})
}

func (s *session) report(typ ProgressType, url string, err error) {
	if s.crawler.Progress == nil {
		return
	}
	s.crawler.Progress(ProgressEvent{
		Type:    typ,
		Fetched: s.result.Fetched,
		Failed:  s.result.Failed,
		Queued:  s.frontier.Len(),
		URL:     url,
		Error:   err,
	})
}
