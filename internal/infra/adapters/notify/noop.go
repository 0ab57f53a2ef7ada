package notify

import (
	"context"

	"github.com/rs/zerolog"

	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending. Used when no telegram token is
// configured and in tests.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(log *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) ProjectFinished(ctx context.Context, project *model.Project, jobs []*model.JobRecord) error {
	n.log.Info().
		Str("project_id", project.ID).
		Str("status", string(project.Status)).
		Int("jobs", len(jobs)).
		Msg("project finished")
	return nil
}
