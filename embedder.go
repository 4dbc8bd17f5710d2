package minisearch

import (
	"context"
	"math"
)

// Vector is a dense embedding. Vectors produced by an Embedder have unit
// length, so the dot product of two vectors is their cosine similarity.
type Vector []float32

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	// Embed returns the normalized embedding of a single text.
	// Empty or whitespace-only text is an EINVALID error.
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch embeds several texts at once. The result has one vector
	// per input, in input order. Any failing input fails the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Dimensions returns the length of produced vectors.
	Dimensions() int
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func (v Vector) Normalize() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	inv := float32(1 / n)
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Dot returns the dot product of v and w.
// Vectors of different lengths have no defined similarity and yield 0.
func (v Vector) Dot(w Vector) float32 {
	if len(v) != len(w) {
		return 0
	}
	var sum float32
	for i := range v {
		sum += v[i] * w[i]
	}
	return sum
}
