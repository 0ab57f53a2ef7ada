package model

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusPartial    ProjectStatus = "partial"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// Project owns audio files and the job records fanned out across providers.
// Its status is derived from the job multiset, never set independently.
type Project struct {
	ID     string
	UserID string
	Name   string
	Status ProjectStatus
}

// AudioFile is the external entity jobs reference. The storage URL is opaque
// to this system; adapters fetch bytes over HTTP.
type AudioFile struct {
	ID         string
	ProjectID  string
	Name       string
	SizeBytes  int64
	StorageURL string
}

// DeriveProjectStatus computes the aggregate status from the multiset of job
// statuses. Pure and idempotent: safe to recompute redundantly from
// concurrent job completions.
func DeriveProjectStatus(statuses []JobStatus) ProjectStatus {
	if len(statuses) == 0 {
		return ProjectStatusPending
	}
	var completed, failed int
	for _, s := range statuses {
		switch s {
		case JobStatusQueued, JobStatusProcessing:
			return ProjectStatusProcessing
		case JobStatusCompleted:
			completed++
		case JobStatusFailed, JobStatusCancelled:
			failed++
		}
	}
	switch {
	case failed == 0:
		return ProjectStatusCompleted
	case completed > 0:
		return ProjectStatusPartial
	default:
		return ProjectStatusFailed
	}
}
