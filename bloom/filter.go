// Package bloom provides the crawl visited set as a Bloom filter.
//
// A Bloom filter never forgets a URL, so no URL is fetched twice. The price
// is a small false positive rate: a URL never seen before may be reported
// as seen and skipped.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// DefaultFalsePositiveRate is the target rate at the expected capacity.
const DefaultFalsePositiveRate = 0.001

// Filter is a set of URLs. It is not safe for concurrent use.
type Filter struct {
	f     *bloom.BloomFilter
	count uint
}

// NewFilter creates a new Bloom filter sized for n expected URLs
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultFalsePositiveRate
	}
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add inserts url and reports whether it was new.
func (f *Filter) Add(url string) bool {
	if f.f.TestAndAddString(url) {
		return false
	}
	f.count++
	return true
}

// Test returns true if the URL might be in the filter.
// False positives are possible; false negatives are not.
func (f *Filter) Test(url string) bool {
	return f.f.TestString(url)
}

// Count returns the number of URLs Add accepted as new.
func (f *Filter) Count() uint {
	return f.count
}

// EstimatedCount returns the approximate number of items in the filter,
// derived from the bit pattern.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}

// Capacity returns the number of bits in the filter.
func (f *Filter) Capacity() uint {
	return f.f.Cap()
}
