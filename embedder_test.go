package minisearch_test

import (
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/stretchr/testify/assert"
)

func TestVector_Normalize(t *testing.T) {
	t.Parallel()

	t.Run("scales to unit length", func(t *testing.T) {
		t.Parallel()

		v := minisearch.Vector{3, 4}.Normalize()

		assert.InDelta(t, 1.0, v.Norm(), 1e-6)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("leaves zero vector unchanged", func(t *testing.T) {
		t.Parallel()

		v := minisearch.Vector{0, 0, 0}.Normalize()

		assert.Equal(t, minisearch.Vector{0, 0, 0}, v)
	})
}

func TestVector_Dot(t *testing.T) {
	t.Parallel()

	t.Run("computes dot product", func(t *testing.T) {
		t.Parallel()

		got := minisearch.Vector{1, 2, 3}.Dot(minisearch.Vector{4, 5, 6})

		assert.InDelta(t, 32.0, got, 1e-6)
	})

	t.Run("returns zero for mismatched lengths", func(t *testing.T) {
		t.Parallel()

		got := minisearch.Vector{1, 2}.Dot(minisearch.Vector{1, 2, 3})

		assert.Zero(t, got)
	})
}
