// Package bert computes sentence embeddings with a BERT-style transformer
// encoder loaded from Hugging Face files: config.json, model.safetensors and
// vocab.txt or tokenizer.json.
//
// Weights are kept in float32 by default. Building with the f16 tag stores
// them in half precision instead.
package bert

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/minisearch"
)

// DefaultMaxSequenceLength bounds tokens per text, including [CLS] and [SEP].
const DefaultMaxSequenceLength = 256

// Model directory file names.
const (
	ConfigFile        = "config.json"
	WeightsFile       = "model.safetensors"
	VocabFile         = "vocab.txt"
	TokenizerJSONFile = "tokenizer.json"
)

// Ensure Encoder implements minisearch.Embedder.
var _ minisearch.Embedder = (*Encoder)(nil)

// Encoder embeds text with a local BERT model. It is safe for concurrent use.
type Encoder struct {
	model  *model
	tok    *Tokenizer
	maxSeq int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithMaxSequenceLength sets the token limit per text. Longer texts are
// truncated. The limit is capped by the model's position embeddings.
func WithMaxSequenceLength(n int) Option {
	return func(e *Encoder) {
		e.maxSeq = n
	}
}

// Load reads a model directory.
func Load(dir string, opts ...Option) (*Encoder, error) {
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}

	tok, err := LoadVocab(filepath.Join(dir, VocabFile))
	if errors.Is(err, fs.ErrNotExist) {
		tok, err = LoadTokenizerJSON(filepath.Join(dir, TokenizerJSONFile))
	}
	if err != nil {
		return nil, err
	}

	tensors, err := ReadSafetensors(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, err
	}

	return New(cfg, tensors, tok, opts...)
}

// Exists reports whether dir looks like a model directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFile, WeightsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// New creates an Encoder from an already loaded configuration, weights and
// tokenizer.
func New(cfg *Config, tensors map[string]Tensor, tok *Tokenizer, opts ...Option) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := newModel(cfg, tensors)
	if err != nil {
		return nil, err
	}
	if rows := len(m.word) / cfg.HiddenSize; int(tok.maxID()) >= rows {
		return nil, minisearch.Errorf(minisearch.EINVALID, "vocabulary IDs reach %d but the model embeds %d tokens", tok.maxID(), rows)
	}

	e := &Encoder{model: m, tok: tok, maxSeq: DefaultMaxSequenceLength}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxSeq <= 2 || e.maxSeq > cfg.MaxPositionEmbeddings {
		e.maxSeq = min(DefaultMaxSequenceLength, cfg.MaxPositionEmbeddings)
	}
	return e, nil
}

// Dimensions returns the embedding size.
func (e *Encoder) Dimensions() int {
	return e.model.hidden
}

// MaxSequenceLength returns the token limit per text.
func (e *Encoder) MaxSequenceLength() int {
	return e.maxSeq
}

// Embed returns the normalized embedding of text.
func (e *Encoder) Embed(ctx context.Context, text string) (minisearch.Vector, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

// EmbedBatch embeds texts in one forward pass. An empty text fails the batch.
func (e *Encoder) EmbedBatch(ctx context.Context, texts []string) ([]minisearch.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	seqs := make([][]int32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, minisearch.Errorf(minisearch.EINVALID, "cannot embed empty text")
		}
		seqs[i] = e.tok.Encode(text, e.maxSeq)
	}
	return e.model.forward(ctx, seqs)
}
