package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/myjournalhq/myjournal-api/internal/api/auth"
)

// Config contains the handlers and middleware the router wires together.
type Config struct {
	AuthHandler            *auth.AuthHandler
	AuthenticateMiddleware func(http.Handler) http.Handler
	OwnershipMiddleware    func(http.Handler) http.Handler

	// ResourceRoutes mounts the owned domain routes (journals, entries,
	// lists) under the protected group. Left nil, the group still
	// exists so the middleware chain is exercised end to end.
	ResourceRoutes func(r chi.Router)
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (requestID, logger, recoverer) are applied before
// mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes. The Authorization header is not consulted
		// here; attempt is how a client gets a key in the first place.
		r.Group(func(r chi.Router) {
			r.Post("/auth/signup", cfg.AuthHandler.Signup)
			r.Post("/auth/attempt", cfg.AuthHandler.AttemptAuth)
		})

		// Owned resource routes: every request must carry a valid key
		// and the path must be registered to the authenticated user.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)
			r.Use(cfg.OwnershipMiddleware)

			if cfg.ResourceRoutes != nil {
				cfg.ResourceRoutes(r)
			}
		})
	})

	return r
}
