// Package main is the entry point for the petithub server.
//
// main stays minimal: read configuration, build the logger and the
// long-lived clients, hand them to internal/server and start it. All
// behaviour lives in the imported packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/catalog/github"
	"github.com/sakif/petithub/internal/config"
	"github.com/sakif/petithub/internal/metrics"
	"github.com/sakif/petithub/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	// .env is optional; the environment always wins over it.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.GitHub.Token == "" {
		logger.Warn("GITHUB_TOKEN not set, anonymous GitHub calls are limited to 60/hour")
	}

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is a no-op when the directory already exists.
	if cfg.Server.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.Server.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. GITHUB CATALOG ===
	// Requests made on behalf of a visitor use the visitor's token, which
	// the auth middleware places in the request context.
	catalog, err := github.New(github.Config{
		Token:             cfg.GitHub.Token,
		BaseURL:           cfg.GitHub.APIURL,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		TokenFromContext:  auth.GitHubToken,
	}, logger)
	if err != nil {
		logger.Error("failed to create GitHub client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, catalog, metrics.New(), logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
