// File: internal/infra/worker/engine.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"transcript-compare/internal/config"
	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/domain/ports/repository"
	"transcript-compare/internal/infra/metrics"
	red "transcript-compare/internal/infra/redis"
	"transcript-compare/internal/usecase"
)

var _ usecase.Canceller = (*Engine)(nil)

// Engine claims queued jobs and drives each through the provider state
// machine: submit with retry, poll within budget, fetch once, finalize.
// Terminal writes are guarded by a redis lock so a user cancellation racing
// a completion never resurrects the job.
type Engine struct {
	cfg      config.WorkerConfig
	limit    config.ProviderLimitConfig
	registry adapter.Registry

	jobRepo     repository.JobRepository
	projectRepo repository.ProjectRepository
	audioRepo   repository.AudioFileRepository
	credRepo    repository.CredentialRepository

	aggregator *usecase.Aggregator
	locker     red.Locker
	limiter    *red.RateLimiter
	pool       *Pool
	log        *zerolog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewEngine(
	cfg config.WorkerConfig,
	limit config.ProviderLimitConfig,
	registry adapter.Registry,
	jobRepo repository.JobRepository,
	projectRepo repository.ProjectRepository,
	audioRepo repository.AudioFileRepository,
	credRepo repository.CredentialRepository,
	aggregator *usecase.Aggregator,
	locker red.Locker,
	limiter *red.RateLimiter,
	log *zerolog.Logger,
) *Engine {
	e := &Engine{
		cfg:         cfg,
		limit:       limit,
		registry:    registry,
		jobRepo:     jobRepo,
		projectRepo: projectRepo,
		audioRepo:   audioRepo,
		credRepo:    credRepo,
		aggregator:  aggregator,
		locker:      locker,
		limiter:     limiter,
		log:         log,
		running:     make(map[string]context.CancelFunc),
	}
	e.pool = NewPool(cfg.MaxConcurrent, func(err error) {
		log.Error().Err(err).Msg("job task error")
	})
	return e
}

// Start runs the claim loop until ctx is done. Call from a goroutine.
func (e *Engine) Start(ctx context.Context) {
	e.pool.Start(ctx)
	go e.observeQueue(ctx)
	go e.janitor(ctx)

	e.log.Info().Int("workers", e.cfg.MaxConcurrent).Msg("execution engine started")
	ticker := time.NewTicker(e.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("execution engine stopping")
			e.pool.Stop()
			return
		case <-ticker.C:
			e.claimOne(ctx)
		}
	}
}

func (e *Engine) claimOne(ctx context.Context) {
	// Leave queued jobs in the store while the pool has no room; another
	// tick, or another replica, will pick them up.
	if e.pool.Saturated() {
		return
	}
	job, err := e.jobRepo.ClaimQueued(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.log.Error().Err(err).Msg("claim failed")
		}
		return
	}
	if err := e.pool.Submit(func(ctx context.Context) error {
		e.run(ctx, job)
		return nil
	}); err != nil {
		// The pool filled up between the capacity check and the claim; undo
		// the claim as if it never happened.
		e.log.Warn().Str("job_id", job.ID).Msg("pool saturated, requeueing job")
		if err := job.Requeue(); err != nil {
			e.log.Error().Err(err).Str("job_id", job.ID).Msg("requeue rejected")
			return
		}
		if err := e.jobRepo.Save(context.Background(), nil, job); err != nil {
			e.log.Error().Err(err).Str("job_id", job.ID).Msg("requeue failed")
		}
	}
}

// RequestCancel interrupts a job running on this instance.
func (e *Engine) RequestCancel(jobID string) bool {
	e.mu.Lock()
	cancel, ok := e.running[jobID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (e *Engine) track(jobID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.running[jobID] = cancel
	e.mu.Unlock()
}

func (e *Engine) untrack(jobID string) {
	e.mu.Lock()
	delete(e.running, jobID)
	e.mu.Unlock()
}

// run drives one claimed job to a terminal state.
func (e *Engine) run(parent context.Context, job *model.JobRecord) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	e.track(job.ID, cancel)
	defer e.untrack(job.ID)

	log := e.log.With().Str("job_id", job.ID).Str("provider", string(job.Provider)).Logger()
	log.Info().Msg("job started")

	provider, err := e.registry.Get(job.Provider)
	if err != nil {
		e.finalizeFailed(parent, job, err.Error())
		return
	}
	secret, audioURL, err := e.resolveInputs(ctx, job)
	if err != nil {
		e.finalizeFailed(parent, job, err.Error())
		return
	}

	sub, err := e.submit(ctx, &log, provider, job, audioURL, secret)
	if err != nil {
		if e.interrupted(parent, ctx, job) {
			return
		}
		e.finalizeFailed(parent, job, err.Error())
		return
	}

	if sub.Completed() {
		e.finalizeCompleted(parent, job, sub.Transcript, sub.CostUsd)
		return
	}

	// Persist the external id before polling so user cancellation can reach
	// the remote job.
	job.ExternalJobID = sub.ExternalJobID
	if err := e.jobRepo.Save(ctx, nil, job); err != nil {
		log.Error().Err(err).Msg("persist external job id failed")
	}

	transcript, cost, err := e.poll(ctx, &log, provider, job, secret)
	if err != nil {
		if e.interrupted(parent, ctx, job) {
			return
		}
		e.finalizeFailed(parent, job, err.Error())
		return
	}
	e.finalizeCompleted(parent, job, transcript, cost+sub.CostUsd)
}

// resolveInputs loads the credential and the audio URL the job needs. The
// credential belongs to the project owner.
func (e *Engine) resolveInputs(ctx context.Context, job *model.JobRecord) (secret, audioURL string, err error) {
	project, err := e.projectRepo.FindByID(ctx, nil, job.ProjectID)
	if err != nil {
		return "", "", fmt.Errorf("project %s: %w", job.ProjectID, err)
	}
	secret, err = e.credRepo.Get(ctx, project.UserID, job.Provider)
	if err != nil {
		return "", "", fmt.Errorf("credential for %s: %w", job.Provider, err)
	}
	audio, err := e.audioRepo.FindByID(ctx, nil, job.AudioFileID)
	if err != nil {
		return "", "", fmt.Errorf("audio file %s: %w", job.AudioFileID, err)
	}
	return secret, audio.StorageURL, nil
}

// submit retries transient failures with exponential backoff. Permanent
// failures surface immediately.
func (e *Engine) submit(ctx context.Context, log *zerolog.Logger, provider adapter.TranscriptionProvider, job *model.JobRecord, audioURL, secret string) (adapter.Submission, error) {
	backoff := Backoff{Base: e.cfg.BackoffBase, Cap: e.cfg.BackoffCap, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.SubmitAttempts; attempt++ {
		if err := e.awaitRateLimit(ctx, job.Provider); err != nil {
			return adapter.Submission{}, err
		}

		job.Attempts = attempt
		start := time.Now()
		sub, err := provider.Submit(ctx, audioURL, job.Config, secret)
		metrics.ObserveProviderCall(string(job.Provider), "submit", time.Since(start).Milliseconds(), err == nil)
		if err == nil {
			return sub, nil
		}
		lastErr = err
		if !domain.IsTransient(err) {
			return adapter.Submission{}, err
		}
		if attempt == e.cfg.SubmitAttempts {
			break
		}
		metrics.IncSubmitRetry(string(job.Provider))
		delay := backoff.Duration(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("transient submit failure")
		select {
		case <-ctx.Done():
			return adapter.Submission{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return adapter.Submission{}, fmt.Errorf("submit failed after %d attempts: %w", e.cfg.SubmitAttempts, lastErr)
}

// awaitRateLimit blocks until the provider window admits another call.
func (e *Engine) awaitRateLimit(ctx context.Context, provider model.ProviderKey) error {
	if e.limiter == nil || e.limit.Requests <= 0 {
		return nil
	}
	for {
		ok, err := e.limiter.Allow(ctx, red.ProviderKey(string(provider)), e.limit.Requests, e.limit.Window)
		if err != nil {
			// Redis trouble must not stall the pipeline.
			e.log.Warn().Err(err).Msg("rate limiter unavailable, proceeding")
			return nil
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// poll watches an asynchronous job until completion, failure or budget
// exhaustion. Poll errors are not retried beyond the next tick.
func (e *Engine) poll(ctx context.Context, log *zerolog.Logger, provider adapter.TranscriptionProvider, job *model.JobRecord, secret string) (*model.Transcript, float64, error) {
	deadline := time.Now().Add(e.cfg.PollBudget)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return nil, 0, fmt.Errorf("%w after %s", domain.ErrPollBudgetExceeded, e.cfg.PollBudget)
		}

		metrics.IncPollTick(string(job.Provider))
		start := time.Now()
		state, err := provider.PollStatus(ctx, job.ExternalJobID, secret)
		metrics.ObserveProviderCall(string(job.Provider), "poll", time.Since(start).Milliseconds(), err == nil)
		if err != nil {
			return nil, 0, err
		}

		switch state.Status {
		case model.JobStatusCompleted:
			start := time.Now()
			transcript, err := provider.FetchResult(ctx, job.ExternalJobID, secret)
			metrics.ObserveProviderCall(string(job.Provider), "fetch", time.Since(start).Milliseconds(), err == nil)
			if err != nil {
				if errors.Is(err, domain.ErrResultNotReady) {
					// Status and result stores can lag each other; try the
					// next tick.
					continue
				}
				return nil, 0, err
			}
			return transcript, 0, nil
		case model.JobStatusFailed:
			return nil, 0, fmt.Errorf("provider reported failure: %s", state.Detail)
		default:
			log.Debug().Str("state", string(state.Status)).Msg("still processing")
		}
	}
}

// interrupted reports whether the run ended because of engine shutdown or a
// user cancellation rather than a provider failure. In both cases the job
// record is not failed here: shutdown leaves it processing for a later
// restart, cancellation was already persisted by the orchestrator.
func (e *Engine) interrupted(parent, ctx context.Context, job *model.JobRecord) bool {
	if parent.Err() != nil {
		e.log.Warn().Str("job_id", job.ID).Msg("job interrupted by shutdown")
		return true
	}
	if ctx.Err() != nil {
		e.log.Info().Str("job_id", job.ID).Msg("job interrupted by cancellation")
		return true
	}
	return false
}

func (e *Engine) finalizeCompleted(ctx context.Context, job *model.JobRecord, transcript *model.Transcript, cost float64) {
	transcript.Normalize()
	if err := transcript.Validate(); err != nil {
		e.finalizeFailed(ctx, job, "provider returned an invalid transcript")
		return
	}
	e.finalize(ctx, job, func(j *model.JobRecord) error {
		return j.MarkCompleted(time.Now(), transcript, cost)
	})
	if job.Status == model.JobStatusCompleted && cost > 0 {
		metrics.AddProviderCost(string(job.Provider), cost)
	}
}

func (e *Engine) finalizeFailed(ctx context.Context, job *model.JobRecord, msg string) {
	e.finalize(ctx, job, func(j *model.JobRecord) error {
		return j.MarkFailed(time.Now(), msg)
	})
}

// finalize applies a terminal transition under the job lock. If the stored
// record is already terminal (user cancelled during the race window) the
// outcome is discarded.
func (e *Engine) finalize(ctx context.Context, job *model.JobRecord, apply func(*model.JobRecord) error) {
	// Shutdown must not lose a finished result.
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	token, err := e.locker.TryLock(ctx, red.JobLockKey(job.ID), 10*time.Second)
	if err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("job lock unavailable")
		return
	}
	defer func() { _ = e.locker.Unlock(ctx, red.JobLockKey(job.ID), token) }()

	stored, err := e.jobRepo.FindByID(ctx, nil, job.ID)
	if err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("reload before finalize failed")
		return
	}
	if stored.Status.Terminal() {
		e.log.Info().Str("job_id", job.ID).Str("status", string(stored.Status)).Msg("job already terminal, discarding outcome")
		*job = *stored
		return
	}

	stored.ExternalJobID = job.ExternalJobID
	stored.Attempts = job.Attempts
	if err := apply(stored); err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("terminal transition rejected")
		return
	}
	if err := e.jobRepo.Save(ctx, nil, stored); err != nil {
		e.log.Error().Err(err).Str("job_id", job.ID).Msg("finalize save failed")
		return
	}
	*job = *stored

	metrics.IncJobFinished(string(job.Provider), string(job.Status))
	e.log.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int64("processing_ms", job.ProcessingTimeMs).
		Msg("job finished")

	if _, err := e.aggregator.Recompute(ctx, nil, job.ProjectID); err != nil {
		e.log.Error().Err(err).Str("project_id", job.ProjectID).Msg("recompute failed")
	}
}

// observeQueue refreshes the queue depth gauges.
func (e *Engine) observeQueue(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := e.jobRepo.Counts(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueDepth(counts.Queued, counts.Processing)
		}
	}
}

// janitor prunes terminal jobs past the retention grace period.
func (e *Engine) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := e.jobRepo.DeleteTerminalOlderThan(ctx, int64(e.cfg.CleanupGrace.Seconds()))
			if err != nil {
				e.log.Error().Err(err).Msg("cleanup failed")
				continue
			}
			if len(ids) > 0 {
				e.log.Info().Int("removed", len(ids)).Msg("stale jobs cleaned up")
			}
		}
	}
}
