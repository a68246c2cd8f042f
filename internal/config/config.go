// Package config loads the server configuration from environment variables.
//
// A .env file in the working directory is loaded first when present.
// Variables already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/petithub/internal/discovery"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	GitHub    GitHubConfig
	Auth      AuthConfig
	Discovery DiscoveryConfig
}

// ServerConfig holds HTTP server and storage settings.
type ServerConfig struct {
	Port     int
	DBPath   string
	LogLevel slog.Level
}

// GitHubConfig holds API and OAuth settings.
type GitHubConfig struct {
	// Token authenticates API calls made without a visitor token. Optional:
	// anonymous calls work, with a much lower rate limit.
	Token             string
	APIURL            string // empty means api.github.com
	RequestsPerSecond float64

	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// AuthConfig holds session settings.
type AuthConfig struct {
	JWTSecret string
}

// DiscoveryConfig holds engine budgets and the frontier cache lifetime.
type DiscoveryConfig struct {
	FrontierTTL     time.Duration
	MaxIterations   int
	Concurrency     int
	MaxProbeRounds  int
	MaxBinaryRounds int
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []error
	defaults := discovery.DefaultConfig()

	port := getEnvAsInt("PORT", 8080, &errs)

	cfg := &Config{
		Server: ServerConfig{
			Port:     port,
			DBPath:   getEnv("DB_PATH", "data/petithub.db"),
			LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo, &errs),
		},
		GitHub: GitHubConfig{
			Token:             getEnv("GITHUB_TOKEN", ""),
			APIURL:            getEnv("GITHUB_API_URL", ""),
			RequestsPerSecond: getEnvAsFloat("GITHUB_REQUESTS_PER_SECOND", 1.2, &errs),
			ClientID:          getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret:      getEnv("GITHUB_CLIENT_SECRET", ""),
			CallbackURL: getEnv("GITHUB_CALLBACK_URL",
				fmt.Sprintf("http://localhost:%d/auth/github/callback", port)),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Discovery: DiscoveryConfig{
			FrontierTTL:     getEnvAsDuration("FRONTIER_TTL", 10*time.Minute, &errs),
			MaxIterations:   getEnvAsInt("DISCOVERY_MAX_ITERATIONS", defaults.MaxIterations, &errs),
			Concurrency:     getEnvAsInt("DISCOVERY_CONCURRENCY", defaults.Concurrency, &errs),
			MaxProbeRounds:  getEnvAsInt("DISCOVERY_MAX_PROBE_ROUNDS", defaults.MaxProbeRounds, &errs),
			MaxBinaryRounds: getEnvAsInt("DISCOVERY_MAX_BINARY_ROUNDS", defaults.MaxBinaryRounds, &errs),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and combinations.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("GITHUB_REQUESTS_PER_SECOND must not be negative")
	}
	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		return fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	if c.Discovery.FrontierTTL <= 0 {
		return fmt.Errorf("FRONTIER_TTL must be positive")
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// AuthEnabled reports whether GitHub login can be offered.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != "" && c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// EngineConfig returns the engine budgets, keeping the defaults for
// everything not configurable.
func (c *Config) EngineConfig() discovery.Config {
	ec := discovery.DefaultConfig()
	ec.MaxIterations = c.Discovery.MaxIterations
	ec.Concurrency = c.Discovery.Concurrency
	ec.MaxProbeRounds = c.Discovery.MaxProbeRounds
	ec.MaxBinaryRounds = c.Discovery.MaxBinaryRounds
	return ec
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return n
}

func getEnvAsFloat(key string, fallback float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, value))
		return fallback
	}
	return f
}

func getEnvAsDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, value))
		return fallback
	}
	return d
}

func getEnvAsLevel(key string, fallback slog.Level, errs *[]error) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid log level %q", key, value))
		return fallback
	}
	return level
}
