package crawl

import (
	"container/heap"
	"sync"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/bloom"
)

// Compile-time interface verification.
var _ minisearch.URLFrontier = (*Frontier)(nil)

// Frontier is an in-memory URL frontier with priority queue and Bloom filter
// deduplication. It is safe for concurrent use by multiple goroutines.
//
// Tasks pop by priority, then by depth (breadth first), then in push order.
type Frontier struct {
	mu    sync.Mutex
	seen  *bloom.Filter
	queue *taskHeap
	seq   uint64
}

// NewFrontier creates a new Frontier sized for n expected URLs
// with the given false positive rate for deduplication.
func NewFrontier(n uint, fpRate float64) *Frontier {
	h := &taskHeap{}
	heap.Init(h)
	return &Frontier{
		seen:  bloom.NewFilter(n, fpRate),
		queue: h,
	}
}

// Push adds a task to the frontier. The URL is normalized first, so URLs
// differing only by fragment, default port or letter case of the host are
// duplicates. Returns false if the URL has already been seen or is invalid.
func (f *Frontier) Push(task minisearch.CrawlTask) bool {
	url, err := NormalizeURL(task.URL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.seen.Add(url) {
		return false
	}

	task.URL = url
	heap.Push(f.queue, queuedTask{task: task, seq: f.seq})
	f.seq++
	return true
}

// Visit marks a URL as seen without queueing it, e.g. a redirect target.
// Returns false if the URL had already been seen.
func (f *Frontier) Visit(rawURL string) bool {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Add(url)
}

// Pop returns the next task by priority.
// The bool result is false if the frontier is empty.
func (f *Frontier) Pop() (minisearch.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return minisearch.CrawlTask{}, false
	}
	item, _ := heap.Pop(f.queue).(queuedTask)
	return item.task, true
}

// Len returns the number of URLs in the queue.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Seen returns true if the URL has been processed or queued.
func (f *Frontier) Seen(rawURL string) bool {
	url, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Test(url)
}

// Visited returns the number of distinct URLs ever accepted.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.seen.Count())
}

type queuedTask struct {
	task minisearch.CrawlTask
	seq  uint64
}

// taskHeap implements heap.Interface for the crawl priority queue.
type taskHeap []queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if a.task.Depth != b.task.Depth {
		return a.task.Depth < b.task.Depth
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	item, _ := x.(queuedTask)
	*h = append(*h, item)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
