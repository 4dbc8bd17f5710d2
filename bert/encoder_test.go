package bert_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/bert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tiny model dimensions.
const (
	tinyHidden = 8
	tinyInter  = 16
	tinyLayers = 2
	tinyHeads  = 2
	tinyMaxPos = 32
)

func tinyConfig() map[string]any {
	return map[string]any{
		"vocab_size":              len(testVocab),
		"hidden_size":             tinyHidden,
		"num_hidden_layers":       tinyLayers,
		"num_attention_heads":     tinyHeads,
		"intermediate_size":       tinyInter,
		"max_position_embeddings": tinyMaxPos,
		"type_vocab_size":         2,
		"layer_norm_eps":          1e-12,
		"hidden_act":              "gelu",
	}
}

// tinyTensors returns deterministic random weights named with prefix.
func tinyTensors(prefix string) map[string]bert.Tensor {
	rng := rand.New(rand.NewPCG(1, 2))
	random := func(shape ...int) bert.Tensor {
		t := bert.Tensor{Shape: shape}
		t.Data = make([]float32, t.Len())
		for i := range t.Data {
			t.Data[i] = float32(rng.NormFloat64() * 0.2)
		}
		return t
	}
	filled := func(v float32, n int) bert.Tensor {
		t := bert.Tensor{Shape: []int{n}, Data: make([]float32, n)}
		for i := range t.Data {
			t.Data[i] = v
		}
		return t
	}

	ts := map[string]bert.Tensor{
		"embeddings.word_embeddings.weight":       random(len(testVocab), tinyHidden),
		"embeddings.position_embeddings.weight":   random(tinyMaxPos, tinyHidden),
		"embeddings.token_type_embeddings.weight": random(2, tinyHidden),
		"embeddings.LayerNorm.weight":             filled(1, tinyHidden),
		"embeddings.LayerNorm.bias":               filled(0, tinyHidden),
	}
	for l := range tinyLayers {
		p := fmt.Sprintf("encoder.layer.%d.", l)
		for _, name := range []string{"attention.self.query", "attention.self.key", "attention.self.value", "attention.output.dense"} {
			ts[p+name+".weight"] = random(tinyHidden, tinyHidden)
			ts[p+name+".bias"] = random(tinyHidden)
		}
		ts[p+"attention.output.LayerNorm.weight"] = filled(1, tinyHidden)
		ts[p+"attention.output.LayerNorm.bias"] = filled(0, tinyHidden)
		ts[p+"intermediate.dense.weight"] = random(tinyInter, tinyHidden)
		ts[p+"intermediate.dense.bias"] = random(tinyInter)
		ts[p+"output.dense.weight"] = random(tinyHidden, tinyInter)
		ts[p+"output.dense.bias"] = random(tinyHidden)
		ts[p+"output.LayerNorm.weight"] = filled(1, tinyHidden)
		ts[p+"output.LayerNorm.bias"] = filled(0, tinyHidden)
	}

	out := make(map[string]bert.Tensor, len(ts))
	for name, t := range ts {
		out[prefix+name] = t
	}
	return out
}

// writeTinyModel writes a complete model directory and returns its path.
func writeTinyModel(t *testing.T, prefix string) string {
	t.Helper()

	return writeModel(t, tinyTensors(prefix))
}

// writeModel writes a tiny model directory holding tensors.
func writeModel(t *testing.T, tensors map[string]bert.Tensor) string {
	t.Helper()

	dir := t.TempDir()
	cfg, err := json.Marshal(tinyConfig())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, bert.ConfigFile), cfg, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, bert.VocabFile), []byte(strings.Join(testVocab, "\n")), 0o644))
	require.NoError(t, bert.WriteSafetensors(filepath.Join(dir, bert.WeightsFile), tensors))
	return dir
}

func loadTinyModel(t *testing.T, opts ...bert.Option) *bert.Encoder {
	t.Helper()

	enc, err := bert.Load(writeTinyModel(t, ""), opts...)
	require.NoError(t, err)
	return enc
}

func TestEncoder_Embed(t *testing.T) {
	t.Parallel()

	enc := loadTinyModel(t)
	ctx := context.Background()

	t.Run("returns unit vectors of model dimension", func(t *testing.T) {
		t.Parallel()

		v, err := enc.Embed(ctx, "Hello, world!")
		require.NoError(t, err)
		assert.Len(t, v, tinyHidden)
		assert.Equal(t, tinyHidden, enc.Dimensions())
		assert.InDelta(t, 1.0, v.Norm(), 1e-5)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		a, err := enc.Embed(ctx, "hello world")
		require.NoError(t, err)
		b, err := enc.Embed(ctx, "hello world")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("distinguishes different texts", func(t *testing.T) {
		t.Parallel()

		a, err := enc.Embed(ctx, "hello world")
		require.NoError(t, err)
		b, err := enc.Embed(ctx, "unaffable cafe")
		require.NoError(t, err)
		assert.Less(t, a.Dot(b), float32(0.9999))
	})

	t.Run("rejects empty text", func(t *testing.T) {
		t.Parallel()

		_, err := enc.Embed(ctx, " \n\t")
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})

	t.Run("truncates long text", func(t *testing.T) {
		t.Parallel()

		v, err := enc.Embed(ctx, strings.Repeat("hello world ", 500))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, v.Norm(), 1e-5)
	})

	t.Run("is safe for concurrent use", func(t *testing.T) {
		t.Parallel()

		want, err := enc.Embed(ctx, "hello worlds")
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]minisearch.Vector, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = enc.Embed(ctx, "hello worlds")
			}()
		}
		wg.Wait()
		for _, got := range results {
			assert.Equal(t, want, got)
		}
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		t.Parallel()

		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := enc.Embed(canceled, "hello")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEncoder_EmbedBatch(t *testing.T) {
	t.Parallel()

	enc := loadTinyModel(t)
	ctx := context.Background()

	t.Run("matches single embeddings", func(t *testing.T) {
		t.Parallel()

		texts := []string{"hello world", "Café!", "unaffable worlds, hello"}
		batch, err := enc.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, batch, len(texts))

		for i, text := range texts {
			single, err := enc.Embed(ctx, text)
			require.NoError(t, err)
			assert.InDeltaSlice(t, single, batch[i], 1e-5, text)
		}
	})

	t.Run("fails whole batch on empty text", func(t *testing.T) {
		t.Parallel()

		_, err := enc.EmbedBatch(ctx, []string{"hello", ""})
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})

	t.Run("returns nothing for no texts", func(t *testing.T) {
		t.Parallel()

		vs, err := enc.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vs)
	})
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults max sequence length to position limit", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, tinyMaxPos, loadTinyModel(t).MaxSequenceLength())
	})

	t.Run("applies max sequence length option", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 8, loadTinyModel(t, bert.WithMaxSequenceLength(8)).MaxSequenceLength())
		assert.Equal(t, tinyMaxPos, loadTinyModel(t, bert.WithMaxSequenceLength(1000)).MaxSequenceLength())
	})

	t.Run("accepts bert-prefixed tensor names", func(t *testing.T) {
		t.Parallel()

		enc, err := bert.Load(writeTinyModel(t, "bert."))
		require.NoError(t, err)

		plain := loadTinyModel(t)
		a, err := enc.Embed(context.Background(), "hello")
		require.NoError(t, err)
		b, err := plain.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, b, a)
	})

	t.Run("falls back to tokenizer.json", func(t *testing.T) {
		t.Parallel()

		dir := writeTinyModel(t, "")
		require.NoError(t, os.Remove(filepath.Join(dir, bert.VocabFile)))
		writeTokenizerJSON(t, filepath.Join(dir, bert.TokenizerJSONFile))

		enc, err := bert.Load(dir)
		require.NoError(t, err)
		_, err = enc.Embed(context.Background(), "hello")
		require.NoError(t, err)
	})

	t.Run("rejects missing tensors", func(t *testing.T) {
		t.Parallel()

		dir := writeTinyModel(t, "")
		ts := tinyTensors("")
		delete(ts, "encoder.layer.1.output.dense.weight")
		require.NoError(t, bert.WriteSafetensors(filepath.Join(dir, bert.WeightsFile), ts))

		_, err := bert.Load(dir)
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})

	t.Run("returns error for missing directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "missing")
		_, err := bert.Load(dir)
		require.Error(t, err)
		assert.False(t, bert.Exists(dir))
	})

	t.Run("detects model directory", func(t *testing.T) {
		t.Parallel()

		assert.True(t, bert.Exists(writeTinyModel(t, "")))
	})
}
