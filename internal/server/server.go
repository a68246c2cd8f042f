// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built and wired here
// (storage, discovery engine, services, handlers), so the rest of the code
// only ever receives interfaces and never constructs its collaborators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/catalog"
	"github.com/sakif/petithub/internal/config"
	"github.com/sakif/petithub/internal/discovery"
	"github.com/sakif/petithub/internal/handler"
	"github.com/sakif/petithub/internal/metrics"
	"github.com/sakif/petithub/internal/middleware"
	sqliteRepo "github.com/sakif/petithub/internal/repository/sqlite"
	"github.com/sakif/petithub/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
}

// New creates a Server serving discovery over the given catalog.
//
// WIRING:
//
//	sqlite.DB ─┬─> DiscoveryService ─> DiscoverHandler
//	catalog ───> discovery.Engine ──┘
//	sqlite.DB ──> AuthService ──────> AuthHandler (only when OAuth is configured)
//
// The engine reports through the slog observer and the Prometheus metrics
// at the same time.
func New(cfg *config.Config, cat catalog.Catalog, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: m,
	}

	if err := s.setupRoutes(cat); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /discover/random             → random qualifying repository
// GET  /discover/frontier           → highest known repository ID (+ max_id cookie)
// GET  /discover/frontier/history   → stored frontier snapshots
// GET  /discover/{id}               → repository by ID, 302 to the next ID if gone
// GET  /auth/github/login           → start OAuth      (when configured)
// GET  /auth/github/callback        → finish OAuth     (when configured)
// POST /auth/logout                 → drop the session (when configured)
// GET  /api/me                      → signed-in user   (when configured)
// GET  /healthz                     → liveness
// GET  /metrics                     → Prometheus
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it; Recoverer sits inside
// the logger and metrics so a panic is still logged and counted as a 500.
func (s *Server) setupRoutes(cat catalog.Catalog) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)

	engine, err := discovery.New(cat, s.config.EngineConfig(),
		discovery.WithObserver(discovery.Observers(
			discovery.NewLogObserver(s.logger),
			s.metrics,
		)),
	)
	if err != nil {
		return fmt.Errorf("creating discovery engine: %w", err)
	}

	discoveryService := service.NewDiscoveryService(engine, s.db, s.config.Discovery.FrontierTTL, s.logger)
	discoverHandler := handler.NewDiscoverHandler(discoveryService, s.logger)

	// === Auth (optional) ===
	// Without OAuth credentials the service still runs: visitors can pass
	// their own token as a Bearer header, everyone else uses GITHUB_TOKEN.
	var (
		tokens      *auth.TokenService
		lookup      auth.TokenLookup
		authHandler *handler.AuthHandler
	)
	if s.config.AuthEnabled() {
		tokens, err = auth.NewTokenService(s.config.Auth.JWTSecret, auth.DefaultSessionTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}

		var opts []auth.ProviderOption
		if s.config.GitHub.APIURL != "" {
			opts = append(opts, auth.WithAPIBaseURL(s.config.GitHub.APIURL))
		}
		provider := auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
			opts...,
		)

		authService := service.NewAuthService(s.db, tokens, provider, s.logger)
		lookup = authService.GitHubToken
		authHandler = handler.NewAuthHandler(provider, authService, tokens.TTL(), s.logger)
	} else {
		s.logger.Warn("GitHub OAuth not configured, login routes are disabled")
	}

	// === Discovery ===
	s.router.Route("/discover", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.OptionalAuth(tokens))
		}
		r.Use(auth.ResolveGitHubToken(lookup, s.logger))

		r.Get("/random", discoverHandler.HandleRandom)
		r.Get("/frontier", discoverHandler.HandleFrontier)
		r.Get("/frontier/history", discoverHandler.HandleHistory)
		r.Get("/{id}", discoverHandler.HandleLookup)
	})

	if authHandler != nil {
		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})
		s.router.With(auth.RequireAuth(tokens)).Get("/api/me", authHandler.HandleMe)
	}

	// === Operations ===
	s.router.Get("/healthz", handler.NewHealthHandler(s.db, s.logger).HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down gracefully.
//
// SHUTDOWN ORDER:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests (frontier searches can be slow)
//  3. Close the database
func (s *Server) Start() error {
	defer s.db.Close()

	// WriteTimeout covers the slowest handler: a frontier search makes
	// dozens of throttled GitHub calls.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Server.DBPath),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
