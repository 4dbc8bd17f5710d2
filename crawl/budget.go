package crawl

import "sync/atomic"

// DefaultBudget is the maximum number of pages fetched per crawl.
const DefaultBudget = 10000

// Budget caps the number of pages a crawl fetches. It is safe for
// concurrent use; successful Take calls never exceed the initial size.
type Budget struct {
	size      int64
	remaining atomic.Int64
}

// NewBudget creates a Budget allowing n fetches.
func NewBudget(n int) *Budget {
	if n < 0 {
		n = 0
	}
	b := &Budget{size: int64(n)}
	b.remaining.Store(int64(n))
	return b
}

// Take reserves one fetch. It returns false once the budget is spent.
func (b *Budget) Take() bool {
	for {
		r := b.remaining.Load()
		if r <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(r, r-1) {
			return true
		}
	}
}

// Remaining returns the number of fetches left.
func (b *Budget) Remaining() int {
	return int(b.remaining.Load())
}

// Used returns the number of successful Take calls.
func (b *Budget) Used() int {
	return int(b.size - b.remaining.Load())
}
