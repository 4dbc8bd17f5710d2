package minisearch

import (
	"context"
	"html"
	"strings"
)

// SearchMode selects which signals take part in ranking.
type SearchMode string

// Search modes.
const (
	SearchHybrid   SearchMode = "hybrid"
	SearchLexical  SearchMode = "lexical"
	SearchSemantic SearchMode = "semantic"
)

// Default search parameters.
const (
	DefaultSearchLimit    = 10
	DefaultLexicalWeight  = 0.5
	DefaultSemanticWeight = 0.5
	DefaultSnippetLength  = 200
)

// SearchOptions configures a query. Zero values select defaults.
type SearchOptions struct {
	Limit          int
	Mode           SearchMode
	LexicalWeight  float64
	SemanticWeight float64
	SnippetLength  int // Target snippet length in bytes
}

// WithDefaults returns a copy of opts with zero fields set to defaults.
// Both weights zero means the default weighting; one zero weight is kept.
func (o SearchOptions) WithDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.Mode == "" {
		o.Mode = SearchHybrid
	}
	if o.LexicalWeight == 0 && o.SemanticWeight == 0 {
		o.LexicalWeight = DefaultLexicalWeight
		o.SemanticWeight = DefaultSemanticWeight
	}
	if o.SnippetLength <= 0 {
		o.SnippetLength = DefaultSnippetLength
	}
	return o
}

// Validate returns an error if the options contain invalid fields.
func (o SearchOptions) Validate() error {
	switch o.Mode {
	case "", SearchHybrid, SearchLexical, SearchSemantic:
	default:
		return Errorf(EINVALID, "unknown search mode %q", o.Mode)
	}
	if o.LexicalWeight < 0 || o.SemanticWeight < 0 {
		return Errorf(EINVALID, "search weights must not be negative")
	}
	if o.Limit < 0 {
		return Errorf(EINVALID, "search limit must not be negative")
	}
	return nil
}

// SearchResult is a ranked document.
type SearchResult struct {
	ID            DocumentID
	URL           string
	Title         string
	LexicalScore  float64 // Normalized to [0, 1] within the candidate set
	SemanticScore float64 // Cosine similarity, meaningful only if HasSemantic
	HasSemantic   bool
	Score         float64 // Combined ranking score
	Snippet       Snippet
}

// Range is a half-open byte range.
type Range struct {
	Start int
	End   int
}

// Snippet is a fragment of a document's text with matched words marked.
type Snippet struct {
	Text       string
	Highlights []Range // Ordered, non-overlapping byte ranges into Text
}

// HTML renders the snippet with highlights wrapped in <b> and everything
// else escaped.
func (s Snippet) HTML() string {
	var b strings.Builder
	pos := 0
	for _, h := range s.Highlights {
		if h.Start < pos || h.End > len(s.Text) || h.Start >= h.End {
			continue
		}
		b.WriteString(html.EscapeString(s.Text[pos:h.Start]))
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(s.Text[h.Start:h.End]))
		b.WriteString("</b>")
		pos = h.End
	}
	b.WriteString(html.EscapeString(s.Text[pos:]))
	return b.String()
}

// Searcher answers queries against the index.
type Searcher interface {
	// Search returns up to opts.Limit results ordered by descending score.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error)
}
