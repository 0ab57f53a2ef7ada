// File: internal/usecase/mocks_test.go
package usecase

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

// --- repositories ---

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.JobRecord
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: map[string]*model.JobRecord{}}
}

func (m *mockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobRepo) ListByProject(ctx context.Context, tx repository.Tx, projectID string) ([]*model.JobRecord, error) {
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

func (m *mockJobRepo) StatusesByProject(ctx context.Context, tx repository.Tx, projectID string) ([]model.JobStatus, error) {
	jobs, _ := m.ListByProject(ctx, tx, projectID)
	out := make([]model.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Status)
	}
	return out, nil
}

func (m *mockJobRepo) ClaimQueued(ctx context.Context) (*model.JobRecord, error) {
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

func (m *mockJobRepo) Counts(ctx context.Context) (repository.QueueCounts, error) {
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

func (m *mockJobRepo) DeleteTerminalOlderThan(ctx context.Context, seconds int64) ([]string, error) {
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

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

func newMockProjectRepo(projects ...*model.Project) *mockProjectRepo {
	m := &mockProjectRepo{projects: map[string]*model.Project{}}
	for _, p := range projects {
		cp := *p
		m.projects[p.ID] = &cp
	}
	return m
}

func (m *mockProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProjectRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.ProjectStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	return nil
}

type mockAudioRepo struct {
	files map[string]*model.AudioFile
}

func newMockAudioRepo(files ...*model.AudioFile) *mockAudioRepo {
	m := &mockAudioRepo{files: map[string]*model.AudioFile{}}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *mockAudioRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AudioFile, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

type mockCredRepo struct {
	mu      sync.Mutex
	secrets map[string]string // userID|provider -> secret
}

func newMockCredRepo() *mockCredRepo {
	return &mockCredRepo{secrets: map[string]string{}}
}

func credKey(userID string, provider model.ProviderKey) string {
	return userID + "|" + string(provider)
}

func (m *mockCredRepo) Get(ctx context.Context, userID string, provider model.ProviderKey) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[credKey(userID, provider)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return s, nil
}

func (m *mockCredRepo) Save(ctx context.Context, userID string, provider model.ProviderKey, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[credKey(userID, provider)] = secret
	return nil
}

func (m *mockCredRepo) Delete(ctx context.Context, userID string, provider model.ProviderKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, credKey(userID, provider))
	return nil
}

type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// --- adapters ---

// fakeProvider is a scriptable TranscriptionProvider.
type fakeProvider struct {
	key  model.ProviderKey
	caps adapter.Capabilities

	mu          sync.Mutex
	submitCalls int
	cancelCalls int
	validOK     bool

	submitFn func(attempt int) (adapter.Submission, error)
	pollFn   func(tick int) (adapter.PollState, error)
	fetchFn  func() (*model.Transcript, error)
	cancelFn func() error

	pollTicks int
}

func newFakeProvider(key model.ProviderKey) *fakeProvider {
	return &fakeProvider{
		key: key,
		caps: adapter.Capabilities{
			Diarization: true,
			Timestamps:  true,
			Confidence:  true,
			Languages:   []string{"auto", "en", "de"},
		},
		validOK: true,
	}
}

func (f *fakeProvider) Key() model.ProviderKey             { return f.key }
func (f *fakeProvider) Name() string                       { return string(f.key) }
func (f *fakeProvider) Capabilities() adapter.Capabilities { return f.caps }

func (f *fakeProvider) ValidateCredential(ctx context.Context, secret string) bool {
	return f.validOK
}

func (f *fakeProvider) Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (adapter.Submission, error) {
	f.mu.Lock()
	f.submitCalls++
	n := f.submitCalls
	fn := f.submitFn
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return adapter.Submission{Transcript: &model.Transcript{FullText: "ok"}}, nil
}

func (f *fakeProvider) PollStatus(ctx context.Context, externalJobID, secret string) (adapter.PollState, error) {
	f.mu.Lock()
	f.pollTicks++
	n := f.pollTicks
	fn := f.pollFn
	f.mu.Unlock()
	if fn != nil {
		return fn(n)
	}
	return adapter.PollState{Status: model.JobStatusCompleted}, nil
}

func (f *fakeProvider) FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error) {
	if f.fetchFn != nil {
		return f.fetchFn()
	}
	return nil, domain.ErrUnsupportedOperation
}

func (f *fakeProvider) Cancel(ctx context.Context, externalJobID, secret string) error {
	f.mu.Lock()
	f.cancelCalls++
	fn := f.cancelFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return domain.ErrUnsupportedOperation
}

type fakeRegistry struct {
	providers map[model.ProviderKey]adapter.TranscriptionProvider
}

func newFakeRegistry(providers ...adapter.TranscriptionProvider) *fakeRegistry {
	m := map[model.ProviderKey]adapter.TranscriptionProvider{}
	for _, p := range providers {
		m[p.Key()] = p
	}
	return &fakeRegistry{providers: m}
}

func (r *fakeRegistry) Get(key model.ProviderKey) (adapter.TranscriptionProvider, error) {
	p, ok := r.providers[key]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return p, nil
}

func (r *fakeRegistry) List() []adapter.TranscriptionProvider {
	out := make([]adapter.TranscriptionProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []model.ProjectStatus
}

func (n *fakeNotifier) ProjectFinished(ctx context.Context, project *model.Project, jobs []*model.JobRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, project.Status)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// fakeLocker grants every lock; lock contention paths are covered by the
// redis package tests.
type fakeLocker struct{}

func (fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}

func (fakeLocker) Unlock(ctx context.Context, key, token string) error { return nil }
