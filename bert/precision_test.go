package bert_test

import (
	"context"
	"math"
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/bert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// halfTensors rounds every weight through float16, which is exactly what
// the f16 build stores and expands on use.
func halfTensors(ts map[string]bert.Tensor) map[string]bert.Tensor {
	out := make(map[string]bert.Tensor, len(ts))
	for name, t := range ts {
		data := make([]float32, len(t.Data))
		for i, x := range t.Data {
			data[i] = float16.Fromfloat32(x).Float32()
		}
		out[name] = bert.Tensor{Shape: t.Shape, Data: data}
	}
	return out
}

func TestEncoder_HalfPrecision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	full, err := bert.Load(writeModel(t, tinyTensors("")))
	require.NoError(t, err)
	half, err := bert.Load(writeModel(t, halfTensors(tinyTensors(""))))
	require.NoError(t, err)

	query := "hello world"
	docs := []string{
		"hello",
		"world",
		"hello, world!",
		"cafe",
		"unaffable",
		"worlds cafe",
		"un hello cafe",
		"世 world",
	}

	embed := func(enc *bert.Encoder) []minisearch.Vector {
		vs, err := enc.EmbedBatch(ctx, append([]string{query}, docs...))
		require.NoError(t, err)
		return vs
	}
	fullVecs := embed(full)
	halfVecs := embed(half)

	t.Run("keeps embeddings within 1e-3 cosine of float32", func(t *testing.T) {
		t.Parallel()

		for i := range fullVecs {
			cos := fullVecs[i].Dot(halfVecs[i])
			assert.Greater(t, cos, float32(1-1e-3), "text %d", i)
		}
	})

	t.Run("keeps query similarities within 1e-3", func(t *testing.T) {
		t.Parallel()

		for i := range docs {
			a := fullVecs[0].Dot(fullVecs[i+1])
			b := halfVecs[0].Dot(halfVecs[i+1])
			assert.InDelta(t, a, b, 1e-3, docs[i])
		}
	})

	t.Run("preserves the ranking of separated documents", func(t *testing.T) {
		t.Parallel()

		for i := range docs {
			for j := range docs {
				fi, fj := fullVecs[0].Dot(fullVecs[i+1]), fullVecs[0].Dot(fullVecs[j+1])
				if math.Abs(float64(fi-fj)) <= 2e-3 {
					continue
				}
				hi, hj := halfVecs[0].Dot(halfVecs[i+1]), halfVecs[0].Dot(halfVecs[j+1])
				assert.Equal(t, fi > fj, hi > hj, "%q vs %q", docs[i], docs[j])
			}
		}
	})
}
