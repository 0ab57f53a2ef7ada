package repository

import (
	"context"

	"transcript-compare/internal/domain/model"
)

type ProjectRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Project, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ProjectStatus) error
}

type AudioFileRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.AudioFile, error)
}
