package web

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the JSON API and the short-code redirect route.
func NewRouter(h *Handler, logger logrus.FieldLogger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(LoggingMiddleware(logger.WithField("component", "http")))

	r.Route("/api/links", func(r chi.Router) {
		r.Post("/", h.CreateLink)
		r.Get("/", h.ListLinks)
		r.Get("/{shortCode}", h.GetLink)
		r.Post("/{shortCode}/clicks", h.TrackClick)
		r.Delete("/{id}", h.DeleteLink)
	})
	r.Get("/{shortCode}", h.Redirect)

	return r
}
