// Package api provides the HTTP server for studydash.
// It exposes the engagement engine as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studydash/studydash/internal/app/engagement"
	"github.com/studydash/studydash/internal/domain"
	"github.com/studydash/studydash/internal/health"
)

// Server is the studydash HTTP API server.
type Server struct {
	engine         *engagement.Engine
	health         *health.Checker
	log            *zap.Logger
	metricsEnabled bool
	corsOrigins    []string
	timeout        time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHealth attaches a health checker to /health.
func WithHealth(c *health.Checker) Option { return func(s *Server) { s.health = c } }

// WithCORSOrigins restricts allowed origins. Empty allows all.
func WithCORSOrigins(origins []string) Option { return func(s *Server) { s.corsOrigins = origins } }

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) Option { return func(s *Server) { s.timeout = d } }

// NewServer creates a new API server.
func NewServer(engine *engagement.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		log:     zap.NewNop(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("api")
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/engagement", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/completions", s.handleCompletion)
			r.Get("/challenges", s.handleChallenges)
			r.Post("/challenges/claim", s.handleClaim)
			r.Get("/status", s.handleStatus)
			r.Get("/xp-history", s.handleXPHistory)
			r.Put("/vacation", s.handleVacation)
			r.Put("/institution", s.handleInstitution)
		})
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// accessLog emits one zap line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// fail maps err to a status code and writes the error body.
// Validation errors are the caller's fault; anything else is logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
		},
	})
}
