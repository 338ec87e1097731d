// Package server exposes tracked entities, alert history and manual cycle
// runs over a small REST API.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"stock-sentinel/internal/models"
	"stock-sentinel/internal/resilience"
	"stock-sentinel/internal/scheduler"
	"stock-sentinel/internal/store"
	"stock-sentinel/internal/tracking"
)

// CycleRunner runs a tracking cycle on demand.
type CycleRunner interface {
	Run(ctx context.Context, kind models.EntityKind) (tracking.Summary, error)
}

// Schedule lists upcoming scheduled jobs.
type Schedule interface {
	Entries() []scheduler.EntryInfo
}

// Config holds server configuration
type Config struct {
	Host      string
	Port      int
	AuthToken string
	Log       zerolog.Logger
	Store     store.DataStore
	Tracker   CycleRunner
	Health    *resilience.Checker
	Schedule  Schedule
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	store     store.DataStore
	tracker   CycleRunner
	health    *resilience.Checker
	schedule  Schedule
	authToken string
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		store:     cfg.Store,
		tracker:   cfg.Tracker,
		health:    cfg.Health,
		schedule:  cfg.Schedule,
		authToken: cfg.AuthToken,
	}
	if s.health == nil {
		s.health = resilience.NewChecker(0)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/stocks", func(r chi.Router) {
				r.Get("/", s.handleList(models.KindStock))
				r.Post("/", s.handleAdd(models.KindStock, "symbol"))
				r.Get("/{id}", s.handleGet(models.KindStock))
				r.Delete("/{id}", s.handleRemove(models.KindStock))
			})
			r.Route("/politicians", func(r chi.Router) {
				r.Get("/", s.handleList(models.KindPolitician))
				r.Post("/", s.handleAdd(models.KindPolitician, "name"))
				r.Get("/{id}", s.handleGet(models.KindPolitician))
				r.Delete("/{id}", s.handleRemove(models.KindPolitician))
			})

			r.Get("/alerts/{entity}", s.handleAlertHistory)
			r.Get("/schedule", s.handleSchedule)
		})

		// Cycle runs wait on LLM research and may outlast the API timeout.
		r.Post("/tracking/run/{kind}", s.handleRunCycle)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Bool("auth", s.authToken != "").Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// authMiddleware requires "Authorization: Bearer <token>" when a token is set.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(s.authToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
