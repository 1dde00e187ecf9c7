// Package main is the entry point for the ML FinOps backend.
//
// The main package stays minimal — its job is to:
// 1. Read configuration (env vars, with .env support for local dev)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, etc.).
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/ml-finops/internal/server"
	"github.com/sakif/ml-finops/internal/service"
)

func main() {
	// .env is a local-dev convenience; in production the variables come
	// from the real environment and the file simply doesn't exist.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === CONFIGURATION ===
	// PORT — listen port, default 8080.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// DB_PATH — SQLite database file, default data/finops.db.
	dbPath := "data/finops.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	// Ensure the data directory exists (like `mkdir -p`).
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET — required; there is no sensible default for a signing
	// key. Generate one with: openssl rand -hex 32
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is not set — refusing to start without a signing key")
		os.Exit(1)
	}

	// TRAINING_DELAY / DEPLOY_DELAY — simulated pipeline timing,
	// Go duration syntax ("5s", "200ms"). Defaults match the demo UX.
	delays := service.DefaultDelays()
	delays.Training = durationEnv(logger, "TRAINING_DELAY", delays.Training)
	delays.Deploying = durationEnv(logger, "DEPLOY_DELAY", delays.Deploying)

	cfg := server.Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
		Delays:    delays,
		SeedDemo:  os.Getenv("SEED_DEMO") != "false",
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// durationEnv reads a duration env var, falling back to def when unset.
// A set-but-unparsable value is a config typo worth failing loudly on.
func durationEnv(logger *slog.Logger, key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Error("invalid duration value",
			slog.String("var", key),
			slog.String("value", raw),
		)
		os.Exit(1)
	}
	return d
}
