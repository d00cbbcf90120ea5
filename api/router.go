package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthHandler)

	r.Route("/clips", func(r chi.Router) {
		r.Get("/", app.ListClipsHandler)
		r.Post("/", app.SubmitClipHandler)
		r.Get("/{id}", app.GetClipHandler)
	})

	return r
}
