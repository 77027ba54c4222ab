package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/visionbatch/internal/pipeline"
)

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 200
)

// RunStore is the read side of the run ledger.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error)
	GetRun(ctx context.Context, id int64) (*pipeline.Run, error)
	ListImageJobs(ctx context.Context, runID int64) ([]pipeline.ImageJob, error)
}

// RunDetail is a run together with its per-image outcomes.
type RunDetail struct {
	Run    *pipeline.Run       `json:"run"`
	Images []pipeline.ImageJob `json:"images"`
}

type RunService struct {
	store RunStore
}

func NewRunService(store RunStore) *RunService {
	return &RunService{store: store}
}

// ListRuns returns the newest runs. Limits outside 1..MaxRunsLimit are clamped.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	switch {
	case limit <= 0:
		limit = DefaultRunsLimit
	case limit > MaxRunsLimit:
		limit = MaxRunsLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunService) GetRun(ctx context.Context, id int64) (*pipeline.Run, error) {
	return s.store.GetRun(ctx, id)
}

// GetRunImages returns the run and every image recorded for it.
func (s *RunService) GetRunImages(ctx context.Context, id int64) (*RunDetail, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListImageJobs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list images for run %d: %w", id, err)
	}
	return &RunDetail{Run: run, Images: jobs}, nil
}
