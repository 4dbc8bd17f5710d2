package bloom_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/minisearch/bloom"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Add(t *testing.T) {
	t.Parallel()

	t.Run("reports new URLs", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(1000, 0.01)

		assert.False(t, f.Test("https://example.com/page1"))
		assert.True(t, f.Add("https://example.com/page1"))
		assert.True(t, f.Test("https://example.com/page1"))
		assert.False(t, f.Test("https://example.com/page2"))
	})

	t.Run("rejects repeated URLs", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(1000, 0.01)

		assert.True(t, f.Add("https://example.com/page1"))
		assert.False(t, f.Add("https://example.com/page1"))
		assert.Equal(t, uint(1), f.Count())
	})

	t.Run("never reports an added URL as new", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(100, 0.01)
		for i := range 500 {
			f.Add(fmt.Sprintf("https://example.com/page%d", i))
		}

		for i := range 500 {
			assert.False(t, f.Add(fmt.Sprintf("https://example.com/page%d", i)))
		}
		assert.LessOrEqual(t, f.Count(), uint(500))
	})
}

func TestFilter_EstimatedCount(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)

	// Empty filter should have count near 0
	assert.Equal(t, uint(0), f.EstimatedCount())

	f.Add("https://example.com/page1")
	f.Add("https://example.com/page2")
	f.Add("https://example.com/page3")

	// Estimated count should be approximately 3
	count := f.EstimatedCount()
	assert.True(t, count >= 2 && count <= 4, "expected count near 3, got %d", count)
}

func TestNewFilter(t *testing.T) {
	t.Parallel()

	t.Run("falls back to default rate for invalid input", func(t *testing.T) {
		t.Parallel()

		f := bloom.NewFilter(0, 0)

		assert.Positive(t, f.Capacity())
		assert.True(t, f.Add("https://example.com/"))
	})
}
