package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"transcript-compare/internal/usecase"
)

// Server exposes the transcription API. All /api/v1 routes except the
// provider listing require a bearer token.
type Server struct {
	orch      *usecase.TranscriptionOrchestrator
	exporter  *usecase.ExportService
	providers *usecase.ProviderService
	auth      *AuthManager
	log       *zerolog.Logger
}

func NewServer(
	orch *usecase.TranscriptionOrchestrator,
	exporter *usecase.ExportService,
	providers *usecase.ProviderService,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{orch: orch, exporter: exporter, providers: providers, auth: auth, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(60*time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", s.handleListProviders)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Guard())

			r.Post("/transcriptions", s.handleStartTranscription)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Post("/jobs/{id}/cancel", s.handleCancelJob)
			r.Get("/jobs/{id}/export", s.handleExportJob)
			r.Get("/projects/{id}/jobs", s.handleProjectJobs)
			r.Get("/projects/{id}/export", s.handleProjectComparison)
			r.Post("/credentials", s.handleSaveCredential)
			r.Delete("/credentials/{provider}", s.handleDeleteCredential)
			r.Get("/metrics/queue", s.handleQueueMetrics)
		})
	})
	return r
}
