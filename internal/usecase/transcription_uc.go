// File: internal/usecase/transcription_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/domain/ports/repository"
	red "transcript-compare/internal/infra/redis"
)

// Canceller is implemented by the execution engine; RequestCancel interrupts
// an in-flight job on this instance and reports whether it was found.
type Canceller interface {
	RequestCancel(jobID string) bool
}

// TranscriptionOrchestrator validates requests and fans them out into one
// queued job record per provider. It never talks to a provider itself except
// for best-effort cancellation.
type TranscriptionOrchestrator struct {
	registry    adapter.Registry
	jobRepo     repository.JobRepository
	projectRepo repository.ProjectRepository
	audioRepo   repository.AudioFileRepository
	credRepo    repository.CredentialRepository
	tm          repository.TransactionManager
	locker      red.Locker
	aggregator  *Aggregator
	canceller   Canceller
	log         *zerolog.Logger
}

func NewTranscriptionOrchestrator(
	registry adapter.Registry,
	jobRepo repository.JobRepository,
	projectRepo repository.ProjectRepository,
	audioRepo repository.AudioFileRepository,
	credRepo repository.CredentialRepository,
	tm repository.TransactionManager,
	locker red.Locker,
	aggregator *Aggregator,
	log *zerolog.Logger,
) *TranscriptionOrchestrator {
	return &TranscriptionOrchestrator{
		registry:    registry,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		audioRepo:   audioRepo,
		credRepo:    credRepo,
		tm:          tm,
		locker:      locker,
		aggregator:  aggregator,
		log:         log,
	}
}

// SetCanceller wires the engine in after construction; the engine depends on
// this package, so the reference cannot be passed to the constructor.
func (o *TranscriptionOrchestrator) SetCanceller(c Canceller) { o.canceller = c }

// StartTranscription is all-or-nothing: every provider must be known,
// capable of the requested features, and backed by a stored credential
// before any job record is written.
func (o *TranscriptionOrchestrator) StartTranscription(
	ctx context.Context,
	userID, projectID, audioFileID string,
	providers []model.ProviderKey,
	cfg model.TranscriptionConfig,
) ([]*model.JobRecord, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers selected", domain.ErrInvalidArgument)
	}
	seen := make(map[model.ProviderKey]struct{}, len(providers))
	for _, key := range providers {
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: provider %s listed twice", domain.ErrInvalidArgument, key)
		}
		seen[key] = struct{}{}
	}

	audio, err := o.audioRepo.FindByID(ctx, nil, audioFileID)
	if err != nil {
		return nil, fmt.Errorf("audio file %s: %w", audioFileID, err)
	}
	if audio.ProjectID != projectID {
		return nil, fmt.Errorf("%w: audio file belongs to another project", domain.ErrInvalidArgument)
	}

	var missing []string
	for _, key := range providers {
		p, err := o.registry.Get(key)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", key, err)
		}
		if err := checkCapabilities(p, cfg); err != nil {
			return nil, err
		}
		if _, err := o.credRepo.Get(ctx, userID, key); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				missing = append(missing, string(key))
				continue
			}
			return nil, err
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MissingCredentialsError{Providers: missing}
	}

	jobs := make([]*model.JobRecord, 0, len(providers))
	err = o.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, key := range providers {
			job := model.NewJobRecord(ulid.Make().String(), projectID, audioFileID, key, cfg)
			if err := o.jobRepo.Save(ctx, tx, job); err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		_, err := o.aggregator.Recompute(ctx, tx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	o.log.Info().
		Str("project_id", projectID).
		Str("audio_file_id", audioFileID).
		Int("jobs", len(jobs)).
		Msg("transcription fan-out queued")
	return jobs, nil
}

func checkCapabilities(p adapter.TranscriptionProvider, cfg model.TranscriptionConfig) error {
	caps := p.Capabilities()
	if cfg.EnableDiarization && !caps.Diarization {
		return &domain.CapabilityError{Provider: string(p.Key()), Feature: "diarization"}
	}
	if cfg.EnableTimestamps && !caps.Timestamps {
		return &domain.CapabilityError{Provider: string(p.Key()), Feature: "timestamps"}
	}
	if !caps.SupportsLanguage(cfg.Language) {
		return &domain.CapabilityError{Provider: string(p.Key()), Feature: "language " + cfg.Language}
	}
	return nil
}

// CancelJob transitions a job to cancelled. Queued jobs never reach the
// provider; processing jobs get a best-effort remote cancel, and the local
// state is authoritative either way.
func (o *TranscriptionOrchestrator) CancelJob(ctx context.Context, userID, jobID string) (*model.JobRecord, error) {
	token, err := o.locker.TryLock(ctx, red.JobLockKey(jobID), 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer func() { _ = o.locker.Unlock(ctx, red.JobLockKey(jobID), token) }()

	job, err := o.jobRepo.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, domain.ErrJobTerminal
	}

	wasProcessing := job.Status == model.JobStatusProcessing
	if err := job.MarkCancelled(time.Now()); err != nil {
		return nil, err
	}
	if err := o.jobRepo.Save(ctx, nil, job); err != nil {
		return nil, err
	}

	if wasProcessing {
		if o.canceller != nil {
			o.canceller.RequestCancel(jobID)
		}
		o.remoteCancel(ctx, userID, job)
	}

	if _, err := o.aggregator.Recompute(ctx, nil, job.ProjectID); err != nil {
		o.log.Warn().Err(err).Str("project_id", job.ProjectID).Msg("recompute after cancel failed")
	}
	return job, nil
}

func (o *TranscriptionOrchestrator) remoteCancel(ctx context.Context, userID string, job *model.JobRecord) {
	if job.ExternalJobID == "" {
		return
	}
	p, err := o.registry.Get(job.Provider)
	if err != nil {
		return
	}
	secret, err := o.credRepo.Get(ctx, userID, job.Provider)
	if err != nil {
		return
	}
	if err := p.Cancel(ctx, job.ExternalJobID, secret); err != nil && !errors.Is(err, domain.ErrUnsupportedOperation) {
		o.log.Warn().Err(err).Str("job_id", job.ID).Msg("remote cancel failed")
	}
}

func (o *TranscriptionOrchestrator) Job(ctx context.Context, jobID string) (*model.JobRecord, error) {
	return o.jobRepo.FindByID(ctx, nil, jobID)
}

func (o *TranscriptionOrchestrator) ProjectJobs(ctx context.Context, projectID string) ([]*model.JobRecord, error) {
	return o.jobRepo.ListByProject(ctx, nil, projectID)
}

func (o *TranscriptionOrchestrator) QueueCounts(ctx context.Context) (repository.QueueCounts, error) {
	return o.jobRepo.Counts(ctx)
}
