package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `
id, project_id, audio_file_id, provider, external_job_id, status, config,
attempts, error_message, queued_at, started_at, completed_at,
processing_time_ms, cost_usd, result`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.JobRecord) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	const q = `
INSERT INTO transcription_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  external_job_id = EXCLUDED.external_job_id,
  status = EXCLUDED.status,
  attempts = EXCLUDED.attempts,
  error_message = EXCLUDED.error_message,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at,
  processing_time_ms = EXCLUDED.processing_time_ms,
  cost_usd = EXCLUDED.cost_usd,
  result = EXCLUDED.result;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.ProjectID, job.AudioFileID, string(job.Provider), job.ExternalJobID,
		string(job.Status), cfg, job.Attempts, job.ErrorMessage,
		job.QueuedAt, job.StartedAt, job.CompletedAt,
		job.ProcessingTimeMs, job.CostUsd, result)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.JobRecord, error) {
	row, err := queryRow(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListByProject(ctx context.Context, tx repository.Tx, projectID string) ([]*model.JobRecord, error) {
	rows, err := query(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM transcription_jobs WHERE project_id = $1 ORDER BY queued_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) StatusesByProject(ctx context.Context, tx repository.Tx, projectID string) ([]model.JobStatus, error) {
	rows, err := query(ctx, r.pool, tx,
		`SELECT status FROM transcription_jobs WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []model.JobStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		statuses = append(statuses, model.JobStatus(s))
	}
	return statuses, rows.Err()
}

// ClaimQueued takes the oldest queued job under FOR UPDATE SKIP LOCKED and
// flips it to processing inside one transaction, so concurrent engine
// replicas never double-dispatch a record.
func (r *jobRepo) ClaimQueued(ctx context.Context) (*model.JobRecord, error) {
	var job *model.JobRecord

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := queryRow(ctx, r.pool, tx, `
SELECT `+jobColumns+`
FROM transcription_jobs
WHERE status = 'queued'
ORDER BY queued_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`)
		if err != nil {
			return err
		}

		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		if err := claimed.MarkProcessing(time.Now()); err != nil {
			return err
		}
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}
		job = claimed
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) Counts(ctx context.Context) (repository.QueueCounts, error) {
	rows, err := query(ctx, r.pool, nil,
		`SELECT status, COUNT(*) FROM transcription_jobs GROUP BY status`)
	if err != nil {
		return repository.QueueCounts{}, err
	}
	defer rows.Close()

	var c repository.QueueCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return repository.QueueCounts{}, domain.ErrReadDatabaseRow
		}
		switch model.JobStatus(status) {
		case model.JobStatusQueued:
			c.Queued = n
		case model.JobStatusProcessing:
			c.Processing = n
		case model.JobStatusCompleted:
			c.Completed = n
		case model.JobStatusFailed:
			c.Failed = n
		case model.JobStatusCancelled:
			c.Cancelled = n
		}
	}
	return c, rows.Err()
}

func (r *jobRepo) DeleteTerminalOlderThan(ctx context.Context, seconds int64) ([]string, error) {
	rows, err := query(ctx, r.pool, nil, `
DELETE FROM transcription_jobs
WHERE status IN ('completed', 'failed', 'cancelled')
  AND completed_at < now() - make_interval(secs => $1)
RETURNING id;`, seconds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanJob(row pgx.Row) (*model.JobRecord, error) {
	var (
		j      model.JobRecord
		prov   string
		status string
		cfg    []byte
		result []byte
	)
	err := row.Scan(
		&j.ID, &j.ProjectID, &j.AudioFileID, &prov, &j.ExternalJobID, &status, &cfg,
		&j.Attempts, &j.ErrorMessage, &j.QueuedAt, &j.StartedAt, &j.CompletedAt,
		&j.ProcessingTimeMs, &j.CostUsd, &result,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	j.Provider = model.ProviderKey(prov)
	j.Status = model.JobStatus(status)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &j.Config); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(result) > 0 {
		j.Result = &model.Transcript{}
		if err := json.Unmarshal(result, j.Result); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &j, nil
}
