package minisearch

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a crawl-and-index run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Run records one crawl-and-index run.
type Run struct {
	ID         string     `json:"id"`
	SeedURL    string     `json:"seedUrl"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	Fetched     int `json:"fetched"`
	Failed      int `json:"failed"`
	Indexed     int `json:"indexed"`
	Embedded    int `json:"embedded"`
	EmbedFailed int `json:"embedFailed"`
	Duplicates  int `json:"duplicates"`
}

// Validate returns an error if the run contains invalid fields.
func (r *Run) Validate() error {
	if r.SeedURL == "" {
		return Errorf(EINVALID, "run seed URL required")
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunAborted, RunFailed:
	default:
		return Errorf(EINVALID, "invalid run status %q", r.Status)
	}
	return nil
}

// RunFilter represents a filter passed to FindRuns.
type RunFilter struct {
	ID     *string
	Status *RunStatus
	Limit  int
}

// RunService records run history.
type RunService interface {
	// CreateRun stores a new run and assigns its ID and start time.
	CreateRun(ctx context.Context, run *Run) error

	// FinishRun stores the final status and counters of a run.
	// Returns ENOTFOUND if the run does not exist.
	FinishRun(ctx context.Context, run *Run) error

	// FindRuns retrieves runs matching the filter, newest first.
	FindRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}
