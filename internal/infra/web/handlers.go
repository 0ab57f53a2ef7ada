package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/usecase"
)

type startRequest struct {
	ProjectID   string                    `json:"project_id"`
	AudioFileID string                    `json:"audio_file_id"`
	Providers   []model.ProviderKey       `json:"providers"`
	Config      model.TranscriptionConfig `json:"config"`
}

type jobResponse struct {
	ID               string                    `json:"id"`
	ProjectID        string                    `json:"project_id"`
	AudioFileID      string                    `json:"audio_file_id"`
	Provider         model.ProviderKey         `json:"provider"`
	Status           model.JobStatus           `json:"status"`
	Config           model.TranscriptionConfig `json:"config"`
	Attempts         int                       `json:"attempts"`
	ErrorMessage     string                    `json:"error_message,omitempty"`
	QueuedAt         time.Time                 `json:"queued_at"`
	StartedAt        *time.Time                `json:"started_at,omitempty"`
	CompletedAt      *time.Time                `json:"completed_at,omitempty"`
	ProcessingTimeMs int64                     `json:"processing_time_ms,omitempty"`
	CostUsd          float64                   `json:"cost_usd,omitempty"`
	Transcript       *model.Transcript         `json:"transcript,omitempty"`
}

func toJobResponse(j *model.JobRecord) jobResponse {
	return jobResponse{
		ID:               j.ID,
		ProjectID:        j.ProjectID,
		AudioFileID:      j.AudioFileID,
		Provider:         j.Provider,
		Status:           j.Status,
		Config:           j.Config,
		Attempts:         j.Attempts,
		ErrorMessage:     j.ErrorMessage,
		QueuedAt:         j.QueuedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		ProcessingTimeMs: j.ProcessingTimeMs,
		CostUsd:          j.CostUsd,
		Transcript:       j.Result,
	}
}

func (s *Server) handleStartTranscription(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" || req.AudioFileID == "" {
		http.Error(w, "project_id and audio_file_id are required", http.StatusBadRequest)
		return
	}

	jobs, err := s.orch.StartTranscription(r.Context(), userID(r.Context()), req.ProjectID, req.AudioFileID, req.Providers, req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": out})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.CancelJob(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job": toJobResponse(job)})
}

func (s *Server) handleExportJob(w http.ResponseWriter, r *http.Request) {
	format := usecase.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = usecase.ExportJSON
	}
	data, contentType, err := s.exporter.ExportJob(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleProjectJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.orch.ProjectJobs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleProjectComparison(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.ComparisonCSV(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.providers.List()})
}

type credentialRequest struct {
	Provider model.ProviderKey `json:"provider"`
	Secret   string            `json:"secret"`
}

func (s *Server) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.providers.SaveCredential(r.Context(), userID(r.Context()), req.Provider, req.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	key := model.ProviderKey(chi.URLParam(r, "provider"))
	if err := s.providers.DeleteCredential(r.Context(), userID(r.Context()), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.orch.QueueCounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queued":     counts.Queued,
		"processing": counts.Processing,
		"completed":  counts.Completed,
		"failed":     counts.Failed,
		"cancelled":  counts.Cancelled,
		"total":      counts.Total(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *domain.MissingCredentialsError
	if errors.As(err, &missing) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "missing credentials",
			"missing_providers": missing.Providers,
		})
		return
	}
	var capErr *domain.CapabilityError
	if errors.As(err, &capErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": capErr.Error()})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownProvider):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrJobTerminal), errors.Is(err, domain.ErrResultNotReady), errors.Is(err, domain.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
