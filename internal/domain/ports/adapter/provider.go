package adapter

import (
	"context"

	"transcript-compare/internal/domain/model"
)

// Capabilities describes what a provider can deliver. The orchestrator
// validates requests against this before any job record is created.
type Capabilities struct {
	Diarization bool     `json:"diarization"`
	Timestamps  bool     `json:"timestamps"`
	Confidence  bool     `json:"confidence"`
	Languages   []string `json:"languages"`
}

// SupportsLanguage reports whether code is accepted ("auto" always is).
func (c Capabilities) SupportsLanguage(code string) bool {
	if code == "" || code == "auto" {
		return true
	}
	for _, l := range c.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// Submission is the outcome of starting a transcription. Synchronous
// providers return the finished transcript inline; asynchronous ones return
// the provider's job id for the poll loop.
type Submission struct {
	ExternalJobID string
	Transcript    *model.Transcript
	CostUsd       float64
}

// Completed reports whether the provider finished within the submit call.
func (s Submission) Completed() bool { return s.Transcript != nil }

// PollState is one observation of an asynchronous provider job.
type PollState struct {
	Status model.JobStatus // processing | completed | failed
	Detail string          // provider-reported state or error text
}

// TranscriptionProvider wraps one external transcription service behind the
// unified contract. Implementations translate the shared request/response
// into provider-specific calls and normalize outputs into model.Transcript.
type TranscriptionProvider interface {
	Key() model.ProviderKey
	Name() string
	Capabilities() Capabilities

	// ValidateCredential fails closed: any network or parse error yields false.
	ValidateCredential(ctx context.Context, secret string) bool

	Submit(ctx context.Context, audioURL string, cfg model.TranscriptionConfig, secret string) (Submission, error)

	// PollStatus is a no-op returning completed for synchronous providers.
	PollStatus(ctx context.Context, externalJobID, secret string) (PollState, error)

	// FetchResult returns domain.ErrResultNotReady before completion.
	FetchResult(ctx context.Context, externalJobID, secret string) (*model.Transcript, error)

	// Cancel returns domain.ErrUnsupportedOperation when the provider has no
	// cancel endpoint; callers treat that as best-effort, not a failure.
	Cancel(ctx context.Context, externalJobID, secret string) error
}

// Registry resolves provider keys to adapters. Populated once at process
// start; lookups of unknown keys are caller errors, never retried.
type Registry interface {
	Get(key model.ProviderKey) (TranscriptionProvider, error)
	List() []TranscriptionProvider
}
