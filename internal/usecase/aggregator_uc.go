// File: internal/usecase/aggregator_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/domain/ports/repository"
)

// Aggregator recomputes a project's derived status from its job multiset.
// Recompute is idempotent, so concurrent job completions may call it
// redundantly without harm.
type Aggregator struct {
	projectRepo repository.ProjectRepository
	jobRepo     repository.JobRepository
	notifier    adapter.Notifier
	log         *zerolog.Logger
}

func NewAggregator(
	projectRepo repository.ProjectRepository,
	jobRepo repository.JobRepository,
	notifier adapter.Notifier,
	log *zerolog.Logger,
) *Aggregator {
	return &Aggregator{projectRepo: projectRepo, jobRepo: jobRepo, notifier: notifier, log: log}
}

// Recompute derives and persists the project status. The completion
// notification fires once, on the transition into a terminal status.
func (a *Aggregator) Recompute(ctx context.Context, tx repository.Tx, projectID string) (model.ProjectStatus, error) {
	statuses, err := a.jobRepo.StatusesByProject(ctx, tx, projectID)
	if err != nil {
		return "", err
	}
	derived := model.DeriveProjectStatus(statuses)

	project, err := a.projectRepo.FindByID(ctx, tx, projectID)
	if err != nil {
		return "", err
	}
	if project.Status == derived {
		return derived, nil
	}
	if err := a.projectRepo.UpdateStatus(ctx, tx, projectID, derived); err != nil {
		return "", err
	}
	a.log.Info().
		Str("project_id", projectID).
		Str("from", string(project.Status)).
		Str("to", string(derived)).
		Msg("project status recomputed")

	if terminalProject(derived) {
		project.Status = derived
		a.notify(ctx, tx, project)
	}
	return derived, nil
}

func terminalProject(s model.ProjectStatus) bool {
	switch s {
	case model.ProjectStatusCompleted, model.ProjectStatusPartial, model.ProjectStatusFailed:
		return true
	}
	return false
}

// notify is best-effort: a delivery failure never rolls back the status.
func (a *Aggregator) notify(ctx context.Context, tx repository.Tx, project *model.Project) {
	if a.notifier == nil {
		return
	}
	jobs, err := a.jobRepo.ListByProject(ctx, tx, project.ID)
	if err != nil {
		a.log.Warn().Err(err).Str("project_id", project.ID).Msg("skip notification, job list failed")
		return
	}
	if err := a.notifier.ProjectFinished(ctx, project, jobs); err != nil {
		a.log.Warn().Err(err).Str("project_id", project.ID).Msg("notification failed")
	}
}
