// Package api serves the tools as a JSON API for scripted use
package api

import (
	"net/http"
	"time"

	"curiesuite/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Services are the application services the API exposes
type Services struct {
	Blast  *app.BlastService
	Curve  *app.CurveService
	Pixels *app.PixelService
	Stats  *app.StatsService
	Runs   *app.RunService
}

// Options tune the router. Browsers on AllowedOrigins may call the API
// cross origin; with none, CORS headers are never sent.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Server holds the router and its dependencies
type Server struct {
	svc       Services
	log       zerolog.Logger
	maxUpload int64
}

// NewRouter mounts every endpoint under /api/v1
func NewRouter(svc Services, opts Options, log zerolog.Logger) http.Handler {
	s := &Server{svc: svc, log: log.With().Str("component", "api").Logger(), maxUpload: opts.MaxUploadBytes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "X-Request-ID"},
			ExposedHeaders: []string{"ETag", "Content-Disposition"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/blast", s.handleBlast)
		r.Get("/aligners", s.handleAligners)
		r.Post("/fit", s.handleFit)
		r.Post("/stats", s.handleStats)
		r.Post("/pixels", s.handlePixels)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleDeleteRun)
			r.Get("/{id}/artifacts/{name}", s.handleArtifact)
		})
	})
	return r
}

// accessLog writes one event per request
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
