package bert

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fwojciec/minisearch"
)

// Config is the subset of a Hugging Face BERT config.json the encoder needs.
type Config struct {
	VocabSize             int     `json:"vocab_size"`
	HiddenSize            int     `json:"hidden_size"`
	NumHiddenLayers       int     `json:"num_hidden_layers"`
	NumAttentionHeads     int     `json:"num_attention_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	TypeVocabSize         int     `json:"type_vocab_size"`
	LayerNormEps          float64 `json:"layer_norm_eps"`
	HiddenAct             string  `json:"hidden_act"`
}

// LoadConfig reads and validates a config.json file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid model config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns an error if the config cannot describe a BERT encoder.
func (c *Config) Validate() error {
	switch {
	case c.HiddenSize <= 0 || c.NumHiddenLayers <= 0 || c.NumAttentionHeads <= 0 || c.IntermediateSize <= 0:
		return minisearch.Errorf(minisearch.EINVALID, "model config has non-positive sizes")
	case c.HiddenSize%c.NumAttentionHeads != 0:
		return minisearch.Errorf(minisearch.EINVALID, "hidden size %d is not divisible by %d heads", c.HiddenSize, c.NumAttentionHeads)
	case c.MaxPositionEmbeddings <= 0:
		return minisearch.Errorf(minisearch.EINVALID, "model config lacks max_position_embeddings")
	case c.HiddenAct != "" && c.HiddenAct != "gelu":
		return minisearch.Errorf(minisearch.EINVALID, "unsupported activation %s", c.HiddenAct)
	}
	if c.LayerNormEps == 0 {
		c.LayerNormEps = 1e-12
	}
	return nil
}
