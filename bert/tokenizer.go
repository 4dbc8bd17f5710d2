package bert

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/fwojciec/minisearch"
	"golang.org/x/text/unicode/norm"
)

// Special tokens of uncased BERT vocabularies.
const (
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
)

// defaultMaxWordChars is the longest word split into subwords; longer
// words become [UNK].
const defaultMaxWordChars = 100

// Tokenizer is an uncased WordPiece tokenizer.
type Tokenizer struct {
	vocab        map[string]int32
	unk          int32
	cls          int32
	sep          int32
	prefix       string
	maxWordChars int
	lowercase    bool
}

// NewTokenizer creates a tokenizer from a vocabulary of token to ID.
// The vocabulary must contain [UNK], [CLS] and [SEP].
func NewTokenizer(vocab map[string]int32) (*Tokenizer, error) {
	t := &Tokenizer{vocab: vocab, prefix: "##", maxWordChars: defaultMaxWordChars, lowercase: true}
	for _, s := range []struct {
		token string
		id    *int32
	}{{unkToken, &t.unk}, {clsToken, &t.cls}, {sepToken, &t.sep}} {
		id, ok := vocab[s.token]
		if !ok {
			return nil, minisearch.Errorf(minisearch.EINVALID, "vocabulary lacks %s", s.token)
		}
		*s.id = id
	}
	return t, nil
}

// LoadVocab reads a vocab.txt file with one token per line; the line
// number is the token ID.
func LoadVocab(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int32)
	scanner := bufio.NewScanner(f)
	var id int32
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return NewTokenizer(vocab)
}

// LoadTokenizerJSON reads the WordPiece model of a tokenizer.json file.
func LoadTokenizerJSON(path string) (*Tokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer: %w", err)
	}

	var doc struct {
		Normalizer *struct {
			Lowercase *bool `json:"lowercase"`
		} `json:"normalizer"`
		Model struct {
			Type                    string           `json:"type"`
			Vocab                   map[string]int32 `json:"vocab"`
			ContinuingSubwordPrefix string           `json:"continuing_subword_prefix"`
			MaxInputCharsPerWord    int              `json:"max_input_chars_per_word"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid tokenizer.json: %v", err)
	}
	if doc.Model.Type != "" && doc.Model.Type != "WordPiece" {
		return nil, minisearch.Errorf(minisearch.EINVALID, "unsupported tokenizer model %s", doc.Model.Type)
	}

	t, err := NewTokenizer(doc.Model.Vocab)
	if err != nil {
		return nil, err
	}
	if doc.Model.ContinuingSubwordPrefix != "" {
		t.prefix = doc.Model.ContinuingSubwordPrefix
	}
	if doc.Model.MaxInputCharsPerWord > 0 {
		t.maxWordChars = doc.Model.MaxInputCharsPerWord
	}
	if doc.Normalizer != nil && doc.Normalizer.Lowercase != nil {
		t.lowercase = *doc.Normalizer.Lowercase
	}
	return t, nil
}

// VocabSize returns the number of distinct tokens.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

func (t *Tokenizer) maxID() int32 {
	var m int32
	for _, id := range t.vocab {
		m = max(m, id)
	}
	return m
}

// Encode returns the token IDs of text framed by [CLS] and [SEP]. Sequences
// longer than maxLen are truncated; maxLen below 2 means no limit.
func (t *Tokenizer) Encode(text string, maxLen int) []int32 {
	ids := []int32{t.cls}
	limit := -1
	if maxLen >= 2 {
		limit = maxLen - 1
	}
	for _, word := range t.words(text) {
		for _, id := range t.wordPiece(word) {
			if limit >= 0 && len(ids) >= limit {
				return append(ids, t.sep)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, t.sep)
}

// words normalizes text and splits it on whitespace and punctuation.
// Each punctuation mark and CJK ideograph becomes a word of its own.
func (t *Tokenizer) words(text string) []string {
	if t.lowercase {
		text = stripAccents(strings.ToLower(text))
	}

	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (isControl(r) && !unicode.IsSpace(r)):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPiece splits word greedily into the longest vocabulary subwords.
func (t *Tokenizer) wordPiece(word string) []int32 {
	runes := []rune(word)
	if len(runes) > t.maxWordChars {
		return []int32{t.unk}
	}

	var ids []int32
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int32(-1)
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = t.prefix + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int32{t.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// stripAccents removes combining marks after canonical decomposition.
func stripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	return unicode.IsControl(r) || unicode.In(r, unicode.Cf)
}

// isPunct treats all non-alphanumeric ASCII as punctuation, as BERT does.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
