package adapter

import (
	"context"

	"transcript-compare/internal/domain/model"
)

// Notifier announces terminal project states. Delivery is best-effort; a
// notification failure never fails the job pipeline.
type Notifier interface {
	ProjectFinished(ctx context.Context, project *model.Project, jobs []*model.JobRecord) error
}
