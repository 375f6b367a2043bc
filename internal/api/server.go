// Package api exposes the triage engine over HTTP: alert submission,
// queue polling, and diagnosis retrieval.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opstriage/triage-engine/internal/queue"
)

// Server carries the handler dependencies.
type Server struct {
	logger     *slog.Logger
	controller *queue.Controller
}

// NewServer builds the API server around the admission controller.
func NewServer(logger *slog.Logger, controller *queue.Controller) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, controller: controller}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", s.handleSubmitAlert)
		r.Get("/queue", s.handleQueueStats)
		r.Get("/queue/{id}", s.handleRequestStatus)
		r.Get("/diagnosis/{id}", s.handleDiagnosis)
	})
	return r
}
