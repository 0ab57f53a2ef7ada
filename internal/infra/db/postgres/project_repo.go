package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/repository"
)

var (
	_ repository.ProjectRepository   = (*projectRepo)(nil)
	_ repository.AudioFileRepository = (*audioFileRepo)(nil)
)

type projectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *projectRepo {
	return &projectRepo{pool: pool}
}

func (r *projectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	row, err := queryRow(ctx, r.pool, tx,
		`SELECT id, user_id, name, status FROM projects WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var p model.Project
	var status string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &status); err != nil {
		return nil, translateErr(err)
	}
	p.Status = model.ProjectStatus(status)
	return &p, nil
}

func (r *projectRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ProjectStatus) error {
	_, err := execSQL(ctx, r.pool, tx,
		`UPDATE projects SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	return err
}

type audioFileRepo struct {
	pool *pgxpool.Pool
}

func NewAudioFileRepo(pool *pgxpool.Pool) *audioFileRepo {
	return &audioFileRepo{pool: pool}
}

func (r *audioFileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AudioFile, error) {
	row, err := queryRow(ctx, r.pool, tx,
		`SELECT id, project_id, name, size_bytes, storage_url FROM audio_files WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	var a model.AudioFile
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.SizeBytes, &a.StorageURL); err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}
