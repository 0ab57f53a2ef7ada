// File: internal/infra/worker/engine_test.go
package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"transcript-compare/internal/config"
	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/usecase"
)

const (
	engUser    = "user-1"
	engProject = "proj-1"
	engAudio   = "audio-1"
)

func fastWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		MaxConcurrent:  2,
		ClaimInterval:  5 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		PollBudget:     200 * time.Millisecond,
		SubmitAttempts: 3,
		BackoffBase:    time.Millisecond,
		BackoffCap:     4 * time.Millisecond,
		CleanupGrace:   time.Hour,
	}
}

type engineFixture struct {
	engine   *Engine
	jobs     *memJobRepo
	projects *memProjectRepo
	provider *scriptedProvider
}

func newEngineFixture(t *testing.T, provider *scriptedProvider) *engineFixture {
	t.Helper()
	job := model.NewJobRecord("job-1", engProject, engAudio, provider.key, model.TranscriptionConfig{Language: "en"})
	jobs := newMemJobRepo(job)
	projects := newMemProjectRepo(&model.Project{ID: engProject, UserID: engUser, Status: model.ProjectStatusProcessing})
	audio := &memAudioRepo{files: map[string]*model.AudioFile{
		engAudio: {ID: engAudio, ProjectID: engProject, StorageURL: "http://files/a.mp3"},
	}}
	creds := &memCredRepo{secrets: map[string]string{engUser + "|" + string(provider.key): "secret"}}

	log := nopLogger()
	agg := usecase.NewAggregator(projects, jobs, nil, log)
	engine := NewEngine(fastWorkerConfig(), config.ProviderLimitConfig{}, &memRegistry{provider: provider},
		jobs, projects, audio, creds, agg, memLocker{}, nil, log)

	return &engineFixture{engine: engine, jobs: jobs, projects: projects, provider: provider}
}

// claimAndRun pulls the queued job and drives it synchronously.
func (fx *engineFixture) claimAndRun(t *testing.T, ctx context.Context) *model.JobRecord {
	t.Helper()
	job, err := fx.jobs.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	fx.engine.run(ctx, job)
	final, err := fx.jobs.FindByID(ctx, nil, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	return final
}

func TestEngineSyncProviderCompletes(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{
			Transcript: &model.Transcript{FullText: "inline result", Language: "en"},
			CostUsd:    0.02,
		}, nil
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.Result == nil || job.Result.FullText != "inline result" {
		t.Fatalf("result = %+v", job.Result)
	}
	if job.CostUsd != 0.02 || job.Attempts != 1 {
		t.Errorf("cost = %v attempts = %d", job.CostUsd, job.Attempts)
	}
	if p.pollCalls != 0 {
		t.Error("sync path must not poll")
	}

	project, _ := fx.projects.FindByID(context.Background(), nil, engProject)
	if project.Status != model.ProjectStatusCompleted {
		t.Errorf("project = %s", project.Status)
	}
}

func TestEngineAsyncPollThenFetch(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderAssemblyAI}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{ExternalJobID: "ext-9"}, nil
	}
	p.pollFn = func(tick int) (adapter.PollState, error) {
		if tick < 3 {
			return adapter.PollState{Status: model.JobStatusProcessing}, nil
		}
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	}
	p.fetchFn = func(int) (*model.Transcript, error) {
		return &model.Transcript{FullText: "async result"}, nil
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.ExternalJobID != "ext-9" {
		t.Errorf("external id = %q", job.ExternalJobID)
	}
	if p.pollCalls != 3 || p.fetchCalls != 1 {
		t.Errorf("polls = %d fetches = %d, want 3 and 1", p.pollCalls, p.fetchCalls)
	}
}

func TestEngineTransientSubmitExhaustsRetries(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{}, &domain.ProviderError{Provider: "Deepgram", Op: "submit", StatusCode: 503, Transient: true, Err: errors.New("overloaded")}
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if p.submitCalls != 3 || job.Attempts != 3 {
		t.Errorf("submits = %d attempts = %d, want 3", p.submitCalls, job.Attempts)
	}
	if !strings.Contains(job.ErrorMessage, "after 3 attempts") {
		t.Errorf("error = %q", job.ErrorMessage)
	}
}

func TestEnginePermanentSubmitFailsImmediately(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{}, &domain.ProviderError{Provider: "Deepgram", Op: "submit", StatusCode: 400, Err: errors.New("bad audio")}
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if p.submitCalls != 1 || job.Attempts != 1 {
		t.Errorf("submits = %d, want no retry on permanent failure", p.submitCalls)
	}

	project, _ := fx.projects.FindByID(context.Background(), nil, engProject)
	if project.Status != model.ProjectStatusFailed {
		t.Errorf("project = %s", project.Status)
	}
}

func TestEngineProviderReportedFailure(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderGladia}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{ExternalJobID: "ext-1"}, nil
	}
	p.pollFn = func(int) (adapter.PollState, error) {
		return adapter.PollState{Status: model.JobStatusFailed, Detail: "corrupt audio"}, nil
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "corrupt audio") {
		t.Errorf("error = %q", job.ErrorMessage)
	}
}

func TestEnginePollBudgetExceeded(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderSpeechmatics}
	p.submitFn = func(int) (adapter.Submission, error) {
		return adapter.Submission{ExternalJobID: "ext-2"}, nil
	}
	p.pollFn = func(int) (adapter.PollState, error) {
		return adapter.PollState{Status: model.JobStatusProcessing}, nil
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, domain.ErrPollBudgetExceeded.Error()) {
		t.Errorf("error = %q", job.ErrorMessage)
	}
}

func TestEngineDiscardsResultAfterCancellation(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderAssemblyAI}
	fx := newEngineFixture(t, p)
	ctx := context.Background()

	// The user cancels while the provider is still working; the stored
	// record goes terminal before the engine finalizes.
	p.submitFn = func(int) (adapter.Submission, error) {
		stored, err := fx.jobs.FindByID(ctx, nil, "job-1")
		if err != nil {
			return adapter.Submission{}, err
		}
		stored.MarkCancelled(time.Now())
		fx.jobs.Save(ctx, nil, stored)
		return adapter.Submission{Transcript: &model.Transcript{FullText: "late result"}}, nil
	}

	job := fx.claimAndRun(t, ctx)
	if job.Status != model.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled preserved", job.Status)
	}
	if job.Result != nil {
		t.Fatal("late result must be discarded")
	}
}

func TestEngineInvalidTranscriptFailsJob(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	p.submitFn = func(int) (adapter.Submission, error) {
		// Empty transcript: invalid even after normalization.
		return adapter.Submission{Transcript: &model.Transcript{}}, nil
	}
	fx := newEngineFixture(t, p)

	job := fx.claimAndRun(t, context.Background())
	if job.Status != model.JobStatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
}

func TestEngineRequestCancelUnknownJob(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	fx := newEngineFixture(t, p)
	if fx.engine.RequestCancel("ghost") {
		t.Fatal("unknown job must not report cancelled")
	}
}

func TestClaimSkipsWhenPoolSaturated(t *testing.T) {
	t.Parallel()
	p := &scriptedProvider{key: model.ProviderDeepgram}
	fx := newEngineFixture(t, p)

	// Fill the queue without starting workers, so nothing drains it.
	for !fx.engine.pool.Saturated() {
		if err := fx.engine.pool.Submit(func(context.Context) error { return nil }); err != nil {
			t.Fatalf("fill pool: %v", err)
		}
	}

	fx.engine.claimOne(context.Background())

	job, err := fx.jobs.FindByID(context.Background(), nil, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.StartedAt != nil {
		t.Error("StartedAt set for a job that was never picked up")
	}
	if p.submitCalls != 0 {
		t.Errorf("provider called %d times, want 0", p.submitCalls)
	}
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	t.Parallel()
	b := Backoff{Base: 2 * time.Second, Cap: 30 * time.Second}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := b.Duration(i + 1); got != w {
			t.Errorf("attempt %d: got %s, want %s", i+1, got, w)
		}
	}
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	t.Parallel()
	b := Backoff{Base: 2 * time.Second, Cap: 30 * time.Second, Jitter: true}
	for i := 0; i < 100; i++ {
		d := b.Duration(2)
		if d < 2*time.Second || d > 4*time.Second {
			t.Fatalf("jittered duration %s out of [2s, 4s]", d)
		}
	}
}

func TestPoolRunsTasks(t *testing.T) {
	t.Parallel()
	pool := NewPool(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	if err := pool.Submit(func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	pool.Stop()
}
