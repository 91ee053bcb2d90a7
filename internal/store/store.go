// Package store persists siting runs and their selected sites.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siting-cli/internal/config"
	"github.com/sells-group/siting-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// Store defines the persistence interface for siting runs.
type Store interface {
	CreateRun(ctx context.Context, region string, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// CompleteRun stores the result and a terminal status (complete or
	// infeasible) and replaces the run's selected sites.
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, status model.RunStatus, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// New opens the configured store. It returns nil for driver "none".
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

const defaultListLimit = 100

func listLimit(f model.RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
