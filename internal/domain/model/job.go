package model

import (
	"time"

	"transcript-compare/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// TranscriptionConfig is an immutable snapshot taken at submission time.
type TranscriptionConfig struct {
	Language          string `json:"language,omitempty" yaml:"language"`
	EnableDiarization bool   `json:"enable_diarization,omitempty" yaml:"enable_diarization"`
	EnableTimestamps  bool   `json:"enable_timestamps,omitempty" yaml:"enable_timestamps"`
	ModelName         string `json:"model_name,omitempty" yaml:"model_name"`
}

// JobRecord tracks one (audio file, provider) transcription attempt.
// It is created by the orchestrator in queued state and mutated only by the
// execution engine and by explicit user cancellation. A cancelled-and-resubmitted
// job is a new record, never a reused one.
type JobRecord struct {
	ID            string
	ProjectID     string
	AudioFileID   string
	Provider      ProviderKey
	ExternalJobID string
	Status        JobStatus
	Config        TranscriptionConfig
	Attempts      int
	ErrorMessage  string

	QueuedAt    time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	ProcessingTimeMs int64
	CostUsd          float64
	Result           *Transcript
}

func NewJobRecord(id, projectID, audioFileID string, provider ProviderKey, cfg TranscriptionConfig) *JobRecord {
	return &JobRecord{
		ID:          id,
		ProjectID:   projectID,
		AudioFileID: audioFileID,
		Provider:    provider,
		Status:      JobStatusQueued,
		Config:      cfg,
		QueuedAt:    time.Now(),
	}
}

// MarkProcessing records the queued -> processing transition. StartedAt is
// set exactly once.
func (j *JobRecord) MarkProcessing(now time.Time) error {
	if j.Status != JobStatusQueued {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusProcessing
	if j.StartedAt == nil {
		t := now
		j.StartedAt = &t
	}
	return nil
}

// Requeue undoes a claim before any provider call was made, returning the
// job to the queue as if it had never been picked up.
func (j *JobRecord) Requeue() error {
	if j.Status != JobStatusProcessing {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusQueued
	j.StartedAt = nil
	return nil
}

// MarkCompleted stores the normalized transcript and closes the job.
func (j *JobRecord) MarkCompleted(now time.Time, result *Transcript, costUsd float64) error {
	if j.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusCompleted
	j.Result = result
	j.CostUsd = costUsd
	j.close(now)
	return nil
}

func (j *JobRecord) MarkFailed(now time.Time, msg string) error {
	if j.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = msg
	j.close(now)
	return nil
}

// MarkCancelled is valid from queued or processing. A result obtained after
// cancellation was requested is discarded by the engine, never stored here.
func (j *JobRecord) MarkCancelled(now time.Time) error {
	if j.Status.Terminal() {
		return domain.ErrJobTerminal
	}
	j.Status = JobStatusCancelled
	j.close(now)
	return nil
}

func (j *JobRecord) close(now time.Time) {
	if j.CompletedAt == nil {
		t := now
		j.CompletedAt = &t
	}
	if j.StartedAt != nil {
		j.ProcessingTimeMs = j.CompletedAt.Sub(*j.StartedAt).Milliseconds()
	}
}
