package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/minisearch"
	"github.com/google/uuid"
)

// Ensure RunService implements minisearch.RunService.
var _ minisearch.RunService = (*RunService)(nil)

// RunService records crawl-and-index runs in the index database.
type RunService struct {
	db *DB
}

// NewRunService creates a new RunService.
func NewRunService(db *DB) *RunService {
	return &RunService{db: db}
}

// CreateRun stores a new running run with a fresh ID and start time.
func (s *RunService) CreateRun(ctx context.Context, run *minisearch.Run) error {
	if run.Status == "" {
		run.Status = minisearch.RunRunning
	}
	if err := run.Validate(); err != nil {
		return err
	}

	run.ID = uuid.New().String()
	run.StartedAt = time.Now().UTC().Truncate(time.Millisecond)
	run.FinishedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed_url, status, started_at)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		run.SeedURL,
		run.Status,
		run.StartedAt.Format(timestampFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of run.
func (s *RunService) FinishRun(ctx context.Context, run *minisearch.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	if run.Status == minisearch.RunRunning {
		return minisearch.Errorf(minisearch.EINVALID, "cannot finish run with status %q", run.Status)
	}

	finishedAt := time.Now().UTC().Truncate(time.Millisecond)
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?,
			finished_at = ?,
			fetched = ?,
			failed = ?,
			indexed = ?,
			embedded = ?,
			embed_failed = ?,
			duplicates = ?
		WHERE id = ?
	`,
		run.Status,
		finishedAt.Format(timestampFormat),
		run.Fetched,
		run.Failed,
		run.Indexed,
		run.Embedded,
		run.EmbedFailed,
		run.Duplicates,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return minisearch.Errorf(minisearch.ENOTFOUND, "run not found")
	}

	run.FinishedAt = &finishedAt
	return nil
}

// FindRuns retrieves runs matching the filter, newest first.
func (s *RunService) FindRuns(ctx context.Context, filter minisearch.RunFilter) ([]*minisearch.Run, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`
		SELECT id, seed_url, status, started_at, finished_at,
		       fetched, failed, indexed, embedded, embed_failed, duplicates
		FROM runs WHERE 1=1
	`)

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Status != nil {
		query.WriteString(" AND status = ?")
		args = append(args, *filter.Status)
	}

	query.WriteString(" ORDER BY started_at DESC, rowid DESC")
	appendLimit(&query, &args, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*minisearch.Run
	for rows.Next() {
		var r minisearch.Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(
			&r.ID,
			&r.SeedURL,
			&r.Status,
			&startedAt,
			&finishedAt,
			&r.Fetched,
			&r.Failed,
			&r.Indexed,
			&r.Embedded,
			&r.EmbedFailed,
			&r.Duplicates,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if r.StartedAt, err = parseRFC3339(startedAt, "started_at"); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			t, err := parseRFC3339(finishedAt.String, "finished_at")
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}

		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
