// Package store keeps the history of pipeline runs.
package store

import (
	"context"

	"github.com/sells-group/etp-tracker/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	FailedOnly bool `json:"failed_only,omitempty"` // runs with any filing, registrant, or worker error
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	RecordRun(ctx context.Context, s *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.RunSummary, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error)
	LastRun(ctx context.Context) (*model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
