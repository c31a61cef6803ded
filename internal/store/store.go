package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/me/relay/pkg/model"
)

// Store persists runs and the published status of their units.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	FinishRun(ctx context.Context, run *model.Run) error

	// Unit operations
	UpsertUnit(ctx context.Context, u *model.UnitRecord) error
	GetUnit(ctx context.Context, runID, name string) (*model.UnitRecord, error)
	ListUnits(ctx context.Context, runID string) ([]*model.UnitRecord, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
