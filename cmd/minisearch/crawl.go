package main

import (
	"fmt"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/crawl"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	fmt.Fprintf(deps.Stdout, "Crawling %s\n", c.URL)

	result, err := deps.Pipeline.Run(deps.Ctx, c.URL)
	if result != nil && result.Crawl != nil {
		fmt.Fprintf(deps.Stdout, "  Fetched %d pages (%s, %s), %d failed\n",
			result.Crawl.Fetched,
			crawl.FormatBytes(result.Crawl.Bytes),
			crawl.FormatRate(result.Crawl.Fetched, result.Duration),
			result.Crawl.Failed)
		if result.Crawl.Exhausted {
			fmt.Fprintln(deps.Stdout, "  Stopped at the page budget")
		}
	}
	if result != nil {
		fmt.Fprintf(deps.Stdout, "  Indexed %d documents (%d embedded, %d without embedding)\n",
			result.Indexed, result.Embedded, result.EmbedFailed)
		if result.Duplicates > 0 || result.Skipped > 0 {
			fmt.Fprintf(deps.Stdout, "  Skipped %d duplicates and %d pages without text\n",
				result.Duplicates, result.Skipped)
		}
	}

	if err != nil {
		if deps.Ctx.Err() != nil {
			fmt.Fprintln(deps.Stderr, "interrupted: documents committed before the interruption remain searchable")
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", minisearch.ErrorMessage(err))
		return err
	}

	if result.RunID != "" {
		fmt.Fprintf(deps.Stdout, "  Run %s\n", result.RunID)
	}
	return nil
}
