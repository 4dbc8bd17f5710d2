package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/minisearch"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	opts := minisearch.SearchOptions{
		Limit:          c.Limit,
		Mode:           minisearch.SearchMode(c.Mode),
		LexicalWeight:  c.LexicalWeight,
		SemanticWeight: c.SemanticWeight,
	}

	results, err := deps.Searcher.Search(deps.Ctx, c.Query, opts)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", minisearch.ErrorMessage(err))
		return err
	}

	if len(results) == 0 {
		fmt.Fprintf(deps.Stdout, "No results for %q.\n", c.Query)
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(deps.Stdout, "%2d. %.3f  %s\n", i+1, r.Score, r.URL)
		if r.Title != "" {
			fmt.Fprintf(deps.Stdout, "    %s\n", r.Title)
		}
		if r.Snippet.Text != "" {
			fmt.Fprintf(deps.Stdout, "    %s\n", emphasize(r.Snippet))
		}
	}
	return nil
}

// emphasize marks highlighted ranges with asterisks for terminal output.
func emphasize(s minisearch.Snippet) string {
	var b strings.Builder
	pos := 0
	for _, h := range s.Highlights {
		if h.Start < pos || h.End > len(s.Text) || h.Start >= h.End {
			continue
		}
		b.WriteString(s.Text[pos:h.Start])
		b.WriteString("*")
		b.WriteString(s.Text[h.Start:h.End])
		b.WriteString("*")
		pos = h.End
	}
	b.WriteString(s.Text[pos:])
	return b.String()
}
