package sqlite

import (
	"container/heap"
	"sort"

	"github.com/fwojciec/minisearch"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// VectorSet holds every embedding of one index generation in a single
// row-major matrix. It is immutable once loaded.
type VectorSet struct {
	generation uint64
	dims       int
	ids        []minisearch.DocumentID
	data       []float32
}

// Len returns the number of vectors in the set.
func (vs *VectorSet) Len() int {
	return len(vs.ids)
}

// Dimensions returns the vector length, or zero for an empty set.
func (vs *VectorSet) Dimensions() int {
	return vs.dims
}

// Nearest returns the limit vectors with the highest dot product against
// query. Stored vectors are unit length, so for a unit query this is cosine
// similarity. The scan is exact.
func (vs *VectorSet) Nearest(query minisearch.Vector, limit int) []minisearch.VectorHit {
	if limit <= 0 || len(vs.ids) == 0 || len(query) != vs.dims {
		return nil
	}

	scores := make([]float32, len(vs.ids))
	blas32.Gemv(blas.NoTrans, 1,
		blas32.General{Rows: len(vs.ids), Cols: vs.dims, Stride: vs.dims, Data: vs.data},
		blas32.Vector{N: vs.dims, Inc: 1, Data: query},
		0,
		blas32.Vector{N: len(scores), Inc: 1, Data: scores},
	)

	h := make(hitHeap, 0, limit)
	for i, score := range scores {
		hit := minisearch.VectorHit{ID: vs.ids[i], Similarity: score}
		if h.Len() < limit {
			heap.Push(&h, hit)
		} else if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := []minisearch.VectorHit(h)
	sort.Slice(hits, func(i, j int) bool { return better(hits[i], hits[j]) })
	return hits
}

// better orders hits by descending similarity, then ascending ID.
func better(a, b minisearch.VectorHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ID < b.ID
}

// hitHeap is a min-heap with the worst retained hit at the root.
type hitHeap []minisearch.VectorHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(minisearch.VectorHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
