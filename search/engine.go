// Package search ranks documents by combining full-text relevance with
// embedding similarity over a single index snapshot.
package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/fwojciec/minisearch"
	"golang.org/x/sync/errgroup"
)

// minCandidates is the smallest candidate pool drawn from each index half.
const minCandidates = 50

// Ensure Engine implements minisearch.Searcher.
var _ minisearch.Searcher = (*Engine)(nil)

// Engine answers hybrid queries.
type Engine struct {
	Index    minisearch.IndexReader
	Embedder minisearch.Embedder // Optional; without it queries rank lexically
	Logger   *slog.Logger
}

// NewEngine creates an Engine. embedder may be nil.
func NewEngine(index minisearch.IndexReader, embedder minisearch.Embedder, logger *slog.Logger) *Engine {
	return &Engine{Index: index, Embedder: embedder, Logger: logger}
}

// Search returns up to opts.Limit documents ordered by combined score,
// then lexical score, then document ID. If the query cannot be embedded
// the ranking falls back to lexical scores alone.
func (e *Engine) Search(ctx context.Context, query string, opts minisearch.SearchOptions) ([]*minisearch.SearchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()
	logger := e.logger()

	snap, err := e.Index.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = snap.Close() }()

	terms := minisearch.Terms(query)
	k := max(4*opts.Limit, minCandidates)
	mode := opts.Mode

	var lexical []minisearch.LexicalHit
	var queryVec minisearch.Vector

	g, gctx := errgroup.WithContext(ctx)
	if mode != minisearch.SearchSemantic {
		g.Go(func() error {
			hits, err := snap.LexicalSearch(gctx, terms, k)
			lexical = hits
			return err
		})
	}
	if mode != minisearch.SearchLexical {
		g.Go(func() error {
			v, err := e.embedQuery(gctx, query)
			if err != nil {
				level := slog.LevelWarn
				if minisearch.ErrorCode(err) == minisearch.EUNAVAILABLE {
					level = slog.LevelDebug
				}
				logger.Log(gctx, level, "query embedding unavailable, ranking lexically", "query", query, "err", err)
				return nil
			}
			queryVec = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if mode != minisearch.SearchLexical && queryVec == nil {
		if mode == minisearch.SearchSemantic {
			if lexical, err = snap.LexicalSearch(ctx, terms, k); err != nil {
				return nil, err
			}
		}
		mode = minisearch.SearchLexical
	}

	var semantic []minisearch.VectorHit
	if queryVec != nil {
		if dims := snap.Dimensions(); dims > 0 && dims != len(queryVec) {
			logger.Warn("query embedding does not match index, ranking lexically",
				"query", query, "queryDimensions", len(queryVec), "indexDimensions", dims)
		}
		semantic = snap.NearestVectors(queryVec, k)
	}

	results := merge(lexical, semantic, mode, opts)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]minisearch.DocumentID, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	docs, err := snap.Documents(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		doc, ok := docs[r.ID]
		if !ok {
			continue
		}
		r.URL = doc.URL
		r.Title = doc.Title
		r.Snippet = MakeSnippet(doc.Text, terms, opts.SnippetLength)
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) (minisearch.Vector, error) {
	if e.Embedder == nil {
		return nil, minisearch.Errorf(minisearch.EUNAVAILABLE, "no embedding model configured")
	}
	v, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, minisearch.Errorf(minisearch.EINTERNAL, "empty query embedding")
	}
	return v, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// merge unions both candidate lists and orders them by combined score.
// Lexical scores are divided by the best lexical score among candidates.
// Single-signal modes rank by that signal alone.
func merge(lexical []minisearch.LexicalHit, semantic []minisearch.VectorHit, mode minisearch.SearchMode, opts minisearch.SearchOptions) []*minisearch.SearchResult {
	byID := make(map[minisearch.DocumentID]*minisearch.SearchResult, len(lexical)+len(semantic))
	get := func(id minisearch.DocumentID) *minisearch.SearchResult {
		r, ok := byID[id]
		if !ok {
			r = &minisearch.SearchResult{ID: id}
			byID[id] = r
		}
		return r
	}

	if mode != minisearch.SearchSemantic {
		var best float64
		for _, h := range lexical {
			best = max(best, h.Score)
		}
		for _, h := range lexical {
			r := get(h.ID)
			if best > 0 {
				r.LexicalScore = h.Score / best
			}
		}
	}
	if mode != minisearch.SearchLexical {
		for _, h := range semantic {
			r := get(h.ID)
			r.SemanticScore = float64(h.Similarity)
			r.HasSemantic = true
		}
	}

	results := make([]*minisearch.SearchResult, 0, len(byID))
	for _, r := range byID {
		switch mode {
		case minisearch.SearchLexical:
			r.Score = r.LexicalScore
		case minisearch.SearchSemantic:
			r.Score = r.SemanticScore
		default:
			r.Score = opts.LexicalWeight*r.LexicalScore + opts.SemanticWeight*r.SemanticScore
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LexicalScore != b.LexicalScore {
			return a.LexicalScore > b.LexicalScore
		}
		return a.ID < b.ID
	})
	return results
}
