package http

import (
	"net/http"

	"github.com/atinyakov/CredKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// credentials API under /api.
//
// Routes:
//
//	GET    /api/types
//	GET    /api/domains
//	POST   /api/domains
//	GET    /api/domains/{id}
//	DELETE /api/domains/{id}
//	POST   /api/domains/{id}/credentials
//	GET    /api/domains/{id}/credentials/{user}?type=
//	DELETE /api/domains/{id}/credentials/{user}?type=
//	PUT    /api/domains/{id}/default
//	POST   /api/save
func NewRouter(h *CredentialsHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/types", h.Types)
		r.Post("/save", h.Save)

		r.Route("/domains", func(r chi.Router) {
			r.Get("/", h.ListDomains)
			r.Post("/", h.AddDomain)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDomain)
				r.Delete("/", h.RemoveDomain)
				r.Put("/default", h.SetDefault)
				r.Post("/credentials", h.AddCredentials)
				r.Get("/credentials/{user}", h.GetCredentials)
				r.Delete("/credentials/{user}", h.RemoveCredentials)
			})
		})
	})

	return r
}
