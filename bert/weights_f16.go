//go:build f16

package bert

import "github.com/x448/float16"

// weights holds a parameter matrix in half precision. Values are expanded
// to float32 for each use, trading speed for half the resident memory.
type weights []float16.Float16

func newWeights(data []float32) weights {
	w := make(weights, len(data))
	for i, x := range data {
		w[i] = float16.Fromfloat32(x)
	}
	return w
}

// expand returns the values as float32.
func (w weights) expand() []float32 {
	out := make([]float32, len(w))
	for i, h := range w {
		out[i] = h.Float32()
	}
	return out
}

// addRow adds row i of a matrix with the given width to dst.
func (w weights) addRow(dst []float32, i, width int) {
	row := w[i*width : (i+1)*width]
	for j, h := range row {
		dst[j] += h.Float32()
	}
}
