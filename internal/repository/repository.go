package repository

import (
	"context"

	"github.com/sakif/mapchat/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
	// Status filters by run status when non-empty.
	Status model.RunStatus
}

type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, opts ListOptions) ([]model.Run, error)
	// Finish records the terminal state of a run.
	Finish(ctx context.Context, run *model.Run) error
	Delete(ctx context.Context, id string) error
}
