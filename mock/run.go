package mock

import (
	"context"

	"github.com/fwojciec/minisearch"
)

var _ minisearch.RunService = (*RunService)(nil)

// RunService is a mock implementation of minisearch.RunService.
type RunService struct {
	CreateRunFn func(ctx context.Context, run *minisearch.Run) error
	FinishRunFn func(ctx context.Context, run *minisearch.Run) error
	FindRunsFn  func(ctx context.Context, filter minisearch.RunFilter) ([]*minisearch.Run, error)
}

func (s *RunService) CreateRun(ctx context.Context, run *minisearch.Run) error {
	return s.CreateRunFn(ctx, run)
}

func (s *RunService) FinishRun(ctx context.Context, run *minisearch.Run) error {
	return s.FinishRunFn(ctx, run)
}

func (s *RunService) FindRuns(ctx context.Context, filter minisearch.RunFilter) ([]*minisearch.Run, error) {
	return s.FindRunsFn(ctx, filter)
}
