package app

import (
	"context"

	"curiesuite/domain/core"
	"curiesuite/domain/run"
	"curiesuite/internal/errors"
	"curiesuite/ports"
)

// RunService exposes recorded runs and their downloads
type RunService struct {
	runs ports.RunRepository
}

// NewRunService creates a run service
func NewRunService(runs ports.RunRepository) *RunService {
	return &RunService{runs: runs}
}

// Recent lists the newest runs without artifact contents
func (s *RunService) Recent(ctx context.Context, limit int) ([]*run.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runs.ListRecent(ctx, limit)
}

// Get loads one run by its textual id
func (s *RunService) Get(ctx context.Context, id string) (*run.Run, error) {
	runID, err := core.ParseRunID(id)
	if err != nil {
		return nil, errors.WithCode(errors.CodeNotFound, err)
	}
	return s.runs.Get(ctx, runID)
}

// Artifact loads one downloadable file of a run
func (s *RunService) Artifact(ctx context.Context, id, name string) (run.Artifact, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return run.Artifact{}, err
	}
	a, err := r.Artifact(name)
	if err != nil {
		return run.Artifact{}, errors.WithCode(errors.CodeNotFound, err)
	}
	return a, nil
}

// Delete removes a run
func (s *RunService) Delete(ctx context.Context, id string) error {
	runID, err := core.ParseRunID(id)
	if err != nil {
		return errors.WithCode(errors.CodeNotFound, err)
	}
	return s.runs.Delete(ctx, runID)
}
