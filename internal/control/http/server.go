// SPDX-License-Identifier: MIT

// Package http is the control surface: tenant-authenticated course, material,
// generation, job and reporting endpoints plus health and metrics.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursesmith/coursesmith/internal/auth"
	"github.com/coursesmith/coursesmith/internal/blob"
	"github.com/coursesmith/coursesmith/internal/domain/model"
	"github.com/coursesmith/coursesmith/internal/jobs"
	"github.com/coursesmith/coursesmith/internal/ratelimit"
	"github.com/coursesmith/coursesmith/internal/store"
)

// DefaultIPRateLimit caps anonymous request bursts per client IP per minute.
// The tenant-scope limiter behind authentication is the real quota; this is a
// coarse outer guard.
const DefaultIPRateLimit = 300

// Server carries the handler dependencies.
type Server struct {
	Store   *store.Store
	Blob    *blob.Store
	Jobs    *jobs.Service
	Limiter *ratelimit.Limiter
	// Debug gates verbose 500 bodies.
	Debug bool
	// IPRateLimit overrides DefaultIPRateLimit when positive.
	IPRateLimit int
	// MaxUploadBytes caps multipart material uploads. Zero means 512 MiB.
	MaxUploadBytes int64
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	ipLimit := s.IPRateLimit
	if ipLimit <= 0 {
		ipLimit = DefaultIPRateLimit
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Metrics)
	r.Use(httprate.LimitByIP(ipLimit, time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Middleware(s.Store.APIKeys))

		api.Route("/courses", func(c chi.Router) {
			c.Group(func(prep chi.Router) {
				prep.Use(auth.RequireScope(model.ScopePrep))
				prep.Use(auth.RateLimit(s.Limiter, model.ScopePrep, prepLimit))
				prep.Post("/", s.handleCreateCourse)
				prep.Patch("/{courseID}", s.handleUpdateCourse)
				prep.Delete("/{courseID}", s.handleDeleteCourse)
				prep.Post("/{courseID}/lessons", s.handleCreateLesson)
				prep.Post("/{courseID}/materials", s.handleCreateMaterial)
				prep.Post("/{courseID}/slide-mapping", s.handleCreateSlideMapping)
			})
			c.Group(func(check chi.Router) {
				check.Use(auth.RequireScope(model.ScopePrep, model.ScopeCheck))
				check.Use(auth.RateLimit(s.Limiter, model.ScopeCheck, checkLimit))
				check.Get("/", s.handleListCourses)
				check.Get("/{courseID}", s.handleGetCourse)
				check.Get("/{courseID}/lessons/{lessonID}", s.handleGetLesson)
				check.Post("/{courseID}/generate", s.handleRequestGeneration)
			})
		})

		api.Route("/jobs", func(j chi.Router) {
			j.Use(auth.RequireScope(model.ScopePrep, model.ScopeCheck))
			j.Use(auth.RateLimit(s.Limiter, model.ScopeCheck, checkLimit))
			j.Get("/{jobID}", s.handleGetJob)
			j.Post("/{jobID}/cancel", s.handleCancelJob)
			j.Post("/{jobID}/retry", s.handleRetryJob)
		})

		api.Route("/reports", func(rep chi.Router) {
			rep.Use(auth.RequireScope(model.ScopeCheck))
			rep.Use(auth.RateLimit(s.Limiter, model.ScopeCheck, checkLimit))
			rep.Get("/cost", s.handleCostReport)
		})
	})
	return r
}

func prepLimit(k *model.APIKey) int  { return k.RateLimitPrep }
func checkLimit(k *model.APIKey) int { return k.RateLimitCheck }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewHTTPServer wraps the routes in a server with sane timeouts.
func NewHTTPServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute, // uploads
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
