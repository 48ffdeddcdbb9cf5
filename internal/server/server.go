// Package server provides the HTTP server and routing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/watchfolio/internal/di"
	holdingshandlers "github.com/aristath/watchfolio/internal/modules/holdings/handlers"
	rotationhandlers "github.com/aristath/watchfolio/internal/modules/rotation/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Container, cfg.Log)

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	// No WriteTimeout: event and row streams stay open indefinitely
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Router exposes the root handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/health", s.handleHealth)

	holdingsHandler := holdingshandlers.NewHandler(s.container.HoldingsService, s.log)
	screensHandler := rotationhandlers.NewHandler(s.container.RotationManager, s.log)
	eventsStream := NewEventsStreamHandler(s.container.EventBus, s.log)

	rest := []func(http.Handler) http.Handler{middleware.Timeout(60 * time.Second)}
	if !devMode {
		rest = append(rest, middleware.Compress(5))
	}

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived stream, mounted outside the request timeout
		r.Get("/events/stream", eventsStream.ServeHTTP)

		// Row streams under /screens/{screen} are likewise left unwrapped
		screensHandler.RegisterRoutes(r, rest...)

		r.Group(func(r chi.Router) {
			r.Use(rest...)

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/system/jobs", s.systemHandlers.HandleJobsStatus)
			r.Post("/system/jobs/{job}/run", s.systemHandlers.HandleRunJob)

			holdingsHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "watchfolio",
	})
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
