//go:build !f16

package bert

// weights holds a parameter matrix in single precision.
type weights []float32

func newWeights(data []float32) weights {
	return weights(data)
}

// expand returns the values as float32.
func (w weights) expand() []float32 {
	return w
}

// addRow adds row i of a matrix with the given width to dst.
func (w weights) addRow(dst []float32, i, width int) {
	row := w[i*width : (i+1)*width]
	for j, x := range row {
		dst[j] += x
	}
}
