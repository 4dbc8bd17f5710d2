package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunService_CreateRun(t *testing.T) {
	t.Parallel()

	t.Run("assigns ID and start time", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := sqlite.NewRunService(setupTestDB(t))

		run := &minisearch.Run{SeedURL: "https://example.com/"}
		require.NoError(t, s.CreateRun(ctx, run))

		assert.NotEmpty(t, run.ID)
		assert.Equal(t, minisearch.RunRunning, run.Status)
		assert.False(t, run.StartedAt.IsZero())
		assert.Nil(t, run.FinishedAt)
	})

	t.Run("rejects missing seed URL", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRunService(setupTestDB(t))
		err := s.CreateRun(context.Background(), &minisearch.Run{})
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})
}

func TestRunService_FinishRun(t *testing.T) {
	t.Parallel()

	t.Run("stores status and counters", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := sqlite.NewRunService(setupTestDB(t))

		run := &minisearch.Run{SeedURL: "https://example.com/"}
		require.NoError(t, s.CreateRun(ctx, run))

		run.Status = minisearch.RunCompleted
		run.Fetched = 10
		run.Failed = 1
		run.Indexed = 8
		run.Embedded = 7
		run.EmbedFailed = 1
		run.Duplicates = 1
		require.NoError(t, s.FinishRun(ctx, run))
		require.NotNil(t, run.FinishedAt)

		runs, err := s.FindRuns(ctx, minisearch.RunFilter{ID: &run.ID})
		require.NoError(t, err)
		require.Len(t, runs, 1)

		got := runs[0]
		assert.Equal(t, minisearch.RunCompleted, got.Status)
		assert.Equal(t, "https://example.com/", got.SeedURL)
		assert.Equal(t, 10, got.Fetched)
		assert.Equal(t, 1, got.Failed)
		assert.Equal(t, 8, got.Indexed)
		assert.Equal(t, 7, got.Embedded)
		assert.Equal(t, 1, got.EmbedFailed)
		assert.Equal(t, 1, got.Duplicates)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, run.StartedAt.Equal(got.StartedAt))
		assert.True(t, run.FinishedAt.Equal(*got.FinishedAt))
	})

	t.Run("returns ENOTFOUND for unknown run", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRunService(setupTestDB(t))
		err := s.FinishRun(context.Background(), &minisearch.Run{
			ID:      "missing",
			SeedURL: "https://example.com/",
			Status:  minisearch.RunFailed,
		})
		assert.Equal(t, minisearch.ENOTFOUND, minisearch.ErrorCode(err))
	})

	t.Run("rejects running status", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		s := sqlite.NewRunService(setupTestDB(t))

		run := &minisearch.Run{SeedURL: "https://example.com/"}
		require.NoError(t, s.CreateRun(ctx, run))

		err := s.FinishRun(ctx, run)
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})
}

func TestRunService_FindRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := sqlite.NewRunService(setupTestDB(t))

	first := &minisearch.Run{SeedURL: "https://example.com/a"}
	require.NoError(t, s.CreateRun(ctx, first))
	second := &minisearch.Run{SeedURL: "https://example.com/b"}
	require.NoError(t, s.CreateRun(ctx, second))

	first.Status = minisearch.RunAborted
	require.NoError(t, s.FinishRun(ctx, first))

	t.Run("returns newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := s.FindRuns(ctx, minisearch.RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, second.ID, runs[0].ID)
		assert.Equal(t, first.ID, runs[1].ID)
	})

	t.Run("filters by status", func(t *testing.T) {
		t.Parallel()

		status := minisearch.RunAborted
		runs, err := s.FindRuns(ctx, minisearch.RunFilter{Status: &status})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, first.ID, runs[0].ID)
	})

	t.Run("applies limit", func(t *testing.T) {
		t.Parallel()

		runs, err := s.FindRuns(ctx, minisearch.RunFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, second.ID, runs[0].ID)
	})
}
