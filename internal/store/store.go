// Package store persists run records, final coverage regions, and the
// scratch-artifact ledger that makes cleanup idempotent across crashes.
package store

import (
	"context"
	"time"

	"github.com/waterdragen/coverage-cli/internal/model"
)

// Artifact is one ledger entry for a scratch file written during a run.
// Entries that survive a crash are swept by the next run's cleanup.
type Artifact struct {
	Path      string
	RunID     string
	CreatedAt time.Time
}

// Store is the persistence interface for runs, regions, and scratch state.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SetRunDiagnostics(ctx context.Context, runID string, d *model.Diagnostics) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	SaveRegions(ctx context.Context, runID string, regions []model.CoverageRegion) error
	GetRegions(ctx context.Context, runID string) ([]model.CoverageRegion, error)

	RegisterArtifact(ctx context.Context, runID, path string) error
	UnregisterArtifact(ctx context.Context, path string) error
	ListArtifacts(ctx context.Context) ([]Artifact, error)
}
