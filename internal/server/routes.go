package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverer)
	r.Use(s.limitBody)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Post("/constraints", s.handleConstraints)
		r.Post("/validate", s.handleValidate)
		r.Post("/enforce", s.handleEnforce)

		r.Post("/quota/check", s.handleQuotaCheck)
		r.Get("/quota/decisions", s.handleListDecisions)
		r.Post("/quota/decisions/{key}", s.handleDecide)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Post("/readings", s.handleSaveReading)
			r.Get("/state", s.handleUserState)
			r.Put("/profile", s.handlePutProfile)
			r.Get("/profile", s.handleGetProfile)
			r.Post("/meals", s.handleCommitMeal)
			r.Post("/quota/check", s.handleUserQuotaCheck)
			r.Post("/enforce", s.handleUserEnforce)
		})
	})
	return r
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "user storage is not configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}
