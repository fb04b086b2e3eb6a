package storage

import (
	"context"

	"coverga/internal/model"
)

// Store persists run history: the run record, the snapshot stream a run
// published, and per-generation diagnostics. Problem instances are never
// stored.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run ordered by creation time, oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveProgress(ctx context.Context, runID string, snapshots []model.ProgressSnapshot) error
	GetProgress(ctx context.Context, runID string) ([]model.ProgressSnapshot, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
