package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// registerRoutes sets up all API endpoints under /api/v1.
func (s *Server) registerRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", s.handleHealth)

		api.Group(func(api chi.Router) {
			api.Use(s.apiKeyMiddleware)

			api.Route("/conversations", func(r chi.Router) {
				r.Get("/", s.handleListThreads)
				r.Post("/", s.handleCreateThread)
				r.With(s.chatRateLimit).Post("/send", s.handleSendMessage)
				r.With(s.chatRateLimit).Post("/stream", s.handleStreamChat)
				r.Put("/{thread_id}", s.handleRenameThread)
				r.Delete("/{thread_id}", s.handleDeleteThread)
				r.Get("/{thread_id}/messages", s.handleThreadMessages)
			})

			api.Route("/plans", func(r chi.Router) {
				r.Get("/", s.handleListPlans)
				r.Post("/", s.handleCreatePlan)
				r.Get("/active/{thread_id}", s.handleActivePlan)
				r.Get("/{plan_id}", s.handleGetPlan)
				r.Delete("/{plan_id}", s.handleDeletePlan)
				r.Put("/{plan_id}/steps", s.handleUpdateStep)
				r.Post("/{plan_id}/steps", s.handleAddStep)
				r.Post("/{plan_id}/complete", s.handleCompletePlan)
				r.Post("/{plan_id}/cancel", s.handleCancelPlan)
			})

			if s.notes != nil {
				api.Route("/memory/notes", func(r chi.Router) {
					r.Get("/", s.handleRetrieveNotes)
					r.Post("/", s.handleSaveNote)
					r.Put("/{note_id}", s.handleUpdateNote)
				})
			}
		})
	})

	return r
}
