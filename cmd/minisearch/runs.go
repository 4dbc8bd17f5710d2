package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/minisearch"
)

// Run executes the runs command.
func (c *RunsCmd) Run(deps *Dependencies) error {
	filter := minisearch.RunFilter{Limit: c.Limit}
	if c.Status != "" {
		status := minisearch.RunStatus(c.Status)
		switch status {
		case minisearch.RunRunning, minisearch.RunCompleted, minisearch.RunAborted, minisearch.RunFailed:
		default:
			err := minisearch.Errorf(minisearch.EINVALID, "unknown run status %q", c.Status)
			fmt.Fprintf(deps.Stderr, "error: %s\n", minisearch.ErrorMessage(err))
			return err
		}
		filter.Status = &status
	}

	runs, err := deps.Runs.FindRuns(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", minisearch.ErrorMessage(err))
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(deps.Stdout, "No runs found. Use 'minisearch crawl' to create one.")
		return nil
	}

	for _, r := range runs {
		took := "-"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %-9s  %6s  fetched=%d failed=%d indexed=%d embedded=%d  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			took,
			r.Fetched, r.Failed, r.Indexed, r.Embedded,
			r.SeedURL)
	}
	return nil
}
