/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the display layer

AUTHENTICATION:
  Shared static secrets, matching the original deployment's contract: the
  leader secret gates request submission, the admin secret gates decisions
  and direct mutations. Read endpoints are public. The secret travels in
  the X-Access-Secret header.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Secrets carries the two shared static secrets.
type Secrets struct {
	Admin  string
	Leader string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, secrets Secrets) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Access-Secret"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public read surface
		r.Get("/state", h.GetState)
		r.Get("/leave", h.GetLeave)
		r.Get("/warnings", h.GetWarnings)

		// Leader surface: submit requests for review
		r.Group(func(r chi.Router) {
			r.Use(requireSecret(secrets.Leader, secrets.Admin))
			r.Post("/approvals", h.SubmitApproval)
		})

		// Admin surface: decisions and direct mutations
		r.Group(func(r chi.Router) {
			r.Use(requireSecret(secrets.Admin))
			r.Post("/approvals/{id}/approve", h.ApproveRequest)
			r.Post("/approvals/{id}/reject", h.RejectRequest)
			r.Post("/scores/adjust", h.AdjustScore)
			r.Post("/scores/batch", h.BatchAdjust)
			r.Post("/groups/rename", h.RenameGroup)
			r.Post("/admin/reload", h.Reload)
		})
	})

	return r
}

// requireSecret accepts a request when X-Access-Secret matches any of the
// allowed secrets. Constant-time comparison; an empty configured secret
// never matches.
func requireSecret(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Access-Secret")
			for _, secret := range allowed {
				if secret == "" {
					continue
				}
				if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "Invalid or missing access secret", nil)
		})
	}
}
