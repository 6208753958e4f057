package server

import (
	"net/http"

	"github.com/woozymasta/geodash/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
)

// Routes builds the HTTP handler: API routes, metrics, the public directory and gzip.
func (s *ServerContext) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/layers", s.HandleLayersList)
		r.Get("/layers/{id}", s.HandleLayer)
		r.Get("/resolve", s.HandleResolve)
		r.Get("/boundaries", s.HandleBoundaries)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/*", s.HandleStatic)

	return gzhttp.GzipHandler(r)
}
