package repository

import (
	"context"

	"transcript-compare/internal/domain/model"
)

// QueueCounts mirrors the job store by status, for metrics.
type QueueCounts struct {
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

func (c QueueCounts) Total() int {
	return c.Queued + c.Processing + c.Completed + c.Failed + c.Cancelled
}

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.JobRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.JobRecord, error)
	ListByProject(ctx context.Context, tx Tx, projectID string) ([]*model.JobRecord, error)
	StatusesByProject(ctx context.Context, tx Tx, projectID string) ([]model.JobStatus, error)

	// ClaimQueued atomically fetches the oldest queued job and marks it
	// processing, so no two workers ever own the same record.
	ClaimQueued(ctx context.Context) (*model.JobRecord, error)

	Counts(ctx context.Context) (QueueCounts, error)

	// DeleteTerminalOlderThan removes completed/failed/cancelled jobs past the
	// grace period; returns the ids removed.
	DeleteTerminalOlderThan(ctx context.Context, seconds int64) ([]string, error)
}
