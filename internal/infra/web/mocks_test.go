// File: internal/infra/web/mocks_test.go
package web

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
	"transcript-compare/internal/domain/ports/repository"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.JobRecord
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: map[string]*model.JobRecord{}} }

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListByProject(ctx context.Context, tx repository.Tx, projectID string) ([]*model.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.JobRecord
	for _, j := range m.jobs {
		if j.ProjectID == projectID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memJobRepo) StatusesByProject(ctx context.Context, tx repository.Tx, projectID string) ([]model.JobStatus, error) {
	jobs, _ := m.ListByProject(ctx, tx, projectID)
	out := make([]model.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Status)
	}
	return out, nil
}

func (m *memJobRepo) ClaimQueued(ctx context.Context) (*model.JobRecord, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobRepo) Counts(ctx context.Context) (repository.QueueCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c repository.QueueCounts
	for _, j := range m.jobs {
		switch j.Status {
		case model.JobStatusQueued:
			c.Queued++
		case model.JobStatusProcessing:
			c.Processing++
		case model.JobStatusCompleted:
			c.Completed++
		case model.JobStatusFailed:
			c.Failed++
		case model.JobStatusCancelled:
			c.Cancelled++
		}
	}
	return c, nil
}

func (m *memJobRepo) DeleteTerminalOlderThan(ctx context.Context, seconds int64) ([]string, error) {
	return nil, nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func (m *memProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjectRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		p.Status = status
	}
	return nil
}

type memAudioRepo struct {
	files map[string]*model.AudioFile
}

func (m *memAudioRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AudioFile, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

type memCredRepo struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (m *memCredRepo) Get(ctx context.Context, userID string, provider model.ProviderKey) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[userID+"|"+string(provider)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s, nil
}

func (m *memCredRepo) Save(ctx context.Context, userID string, provider model.ProviderKey, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[userID+"|"+string(provider)] = secret
	return nil
}

func (m *memCredRepo) Delete(ctx context.Context, userID string, provider model.ProviderKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, userID+"|"+string(provider))
	return nil
}

type memTxManager struct{}

func (memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type memLocker struct{}

func (memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}

func (memLocker) Unlock(ctx context.Context, key, token string) error { return nil }

type stubNotifier struct{}

func (stubNotifier) ProjectFinished(ctx context.Context, project *model.Project, jobs []*model.JobRecord) error {
	return nil
}

type stubProvider struct {
	key     model.ProviderKey
	validOK bool
}

func (p *stubProvider) Key() model.ProviderKey { return p.key }
func (p *stubProvider) Name() string           { return string(p.key) }

func (p *stubProvider) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Diarization: true, Timestamps: true, Languages: []string{"auto", "en"}}
}

func (p *stubProvider) ValidateCredential(ctx context.Context, secret string) bool { return p.validOK }

func (p *stubProvider) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	return adapter.Submission{}, domain.ErrUnsupportedOperation
}

func (p *stubProvider) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (p *stubProvider) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	return nil, domain.ErrUnsupportedOperation
}

func (p *stubProvider) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}

type stubRegistry struct {
	providers map[model.ProviderKey]adapter.TranscriptionProvider
}

func newStubRegistry(ps ...adapter.TranscriptionProvider) *stubRegistry {
	m := map[model.ProviderKey]adapter.TranscriptionProvider{}
	for _, p := range ps {
		m[p.Key()] = p
	}
	return &stubRegistry{providers: m}
}

func (r *stubRegistry) Get(key model.ProviderKey) (adapter.TranscriptionProvider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return p, nil
}

func (r *stubRegistry) List() []adapter.TranscriptionProvider {
	out := make([]adapter.TranscriptionProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
