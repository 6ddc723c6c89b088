package ports

import (
	"context"

	"curiesuite/domain/core"
	"curiesuite/domain/run"
)

// RunRepository stores tool runs and their artifacts
type RunRepository interface {
	Save(ctx context.Context, r *run.Run) error
	Get(ctx context.Context, id core.RunID) (*run.Run, error)
	// ListRecent returns runs newest first without artifact contents
	ListRecent(ctx context.Context, limit int) ([]*run.Run, error)
	Delete(ctx context.Context, id core.RunID) error
}
