// File: internal/infra/worker/mocks_test.go
package worker

import (
	"context"
	"sync"
	"time"

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

func newMemJobRepo(jobs ...*model.JobRecord) *memJobRepo {
	m := &memJobRepo{jobs: map[string]*model.JobRecord{}}
	for _, j := range jobs {
		cp := *j
		m.jobs[j.ID] = &cp
	}
	return m
}

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
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *model.JobRecord
	for _, j := range m.jobs {
		if j.Status != model.JobStatusQueued {
			continue
		}
		if oldest == nil || j.QueuedAt.Before(oldest.QueuedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	if err := oldest.MarkProcessing(time.Now()); err != nil {
		return nil, err
	}
	cp := *oldest
	return &cp, nil
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
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(seconds) * time.Second)
	var removed []string
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func newMemProjectRepo(projects ...*model.Project) *memProjectRepo {
	m := &memProjectRepo{projects: map[string]*model.Project{}}
	for _, p := range projects {
		cp := *p
		m.projects[p.ID] = &cp
	}
	return m
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
	p, ok := m.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
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
	secrets map[string]string
}

func (m *memCredRepo) Get(ctx context.Context, userID string, provider model.ProviderKey) (string, error) {
	s, ok := m.secrets[userID+"|"+string(provider)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s, nil
}

func (m *memCredRepo) Save(ctx context.Context, userID string, provider model.ProviderKey, secret string) error {
	m.secrets[userID+"|"+string(provider)] = secret
	return nil
}

func (m *memCredRepo) Delete(ctx context.Context, userID string, provider model.ProviderKey) error {
	delete(m.secrets, userID+"|"+string(provider))
	return nil
}

type memLocker struct{}

func (memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}

func (memLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// scriptedProvider lets a test control every stage of the state machine.
type scriptedProvider struct {
	key model.ProviderKey

	mu          sync.Mutex
	submitCalls int
	pollCalls   int
	fetchCalls  int

	submitFn func(attempt int) (adapter.Submission, error)
	pollFn   func(tick int) (adapter.PollState, error)
	fetchFn  func(call int) (*model.Transcript, error)
}

func (p *scriptedProvider) Key() model.ProviderKey { return p.key }
func (p *scriptedProvider) Name() string           { return string(p.key) }

func (p *scriptedProvider) Capabilities() adapter.Capabilities {
	return adapter.Capabilities{Diarization: true, Timestamps: true, Languages: []string{"auto", "en"}}
}

func (p *scriptedProvider) ValidateCredential(ctx context.Context, secret string) bool { return true }

func (p *scriptedProvider) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	p.mu.Lock()
	p.submitCalls++
	n := p.submitCalls
	p.mu.Unlock()
	return p.submitFn(n)
}

func (p *scriptedProvider) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	p.mu.Lock()
	p.pollCalls++
	n := p.pollCalls
	p.mu.Unlock()
	if p.pollFn == nil {
		return adapter.PollState{Status: model.JobStatusCompleted}, nil
	}
	return p.pollFn(n)
}

func (p *scriptedProvider) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	p.mu.Lock()
	p.fetchCalls++
	n := p.fetchCalls
	p.mu.Unlock()
	if p.fetchFn == nil {
		return nil, domain.ErrUnsupportedOperation
	}
	return p.fetchFn(n)
}

func (p *scriptedProvider) Cancel(ctx context.Context, externalJobID, secret string) error {
	return domain.ErrUnsupportedOperation
}

type memRegistry struct {
	provider adapter.TranscriptionProvider
}

func (r *memRegistry) Get(key model.ProviderKey) (adapter.TranscriptionProvider, error) {
	if r.provider == nil || r.provider.Key() != key {
		return nil, domain.ErrUnknownProvider
	}
	return r.provider, nil
}

func (r *memRegistry) List() []adapter.TranscriptionProvider {
	if r.provider == nil {
		return nil
	}
	return []adapter.TranscriptionProvider{r.provider}
}
