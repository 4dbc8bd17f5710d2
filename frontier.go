package minisearch

import "context"

// CrawlTask is a URL waiting in the crawl frontier.
type CrawlTask struct {
	URL      string
	Depth    int
	Priority LinkPriority
}

// URLFrontier manages a crawl queue with deduplication.
type URLFrontier interface {
	// Push adds a task to the frontier.
	// Returns false if the URL has already been seen.
	Push(task CrawlTask) bool

	// Pop returns the next task by priority.
	// Returns false if the frontier is empty.
	Pop() (CrawlTask, bool)

	// Len returns the number of URLs in the queue.
	Len() int

	// Seen returns true if the URL has been processed or queued.
	Seen(url string) bool

	// Visited returns the number of distinct URLs ever pushed.
	Visited() int
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
