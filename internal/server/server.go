// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This package is the composition root — the one place where the whole
// dependency chain is assembled:
//
//	sqlite.DB → AuthService/CostService → handlers → routes
//	TokenService → RequireAuth middleware + AuthService
//	ModelRegistry → ModelHandler
//
// main.go stays minimal: read config, call New, call Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ml-finops/internal/auth"
	"github.com/sakif/ml-finops/internal/handler"
	"github.com/sakif/ml-finops/internal/middleware"
	"github.com/sakif/ml-finops/internal/model"
	sqliteRepo "github.com/sakif/ml-finops/internal/repository/sqlite"
	"github.com/sakif/ml-finops/internal/service"
)

// Config holds server configuration, loaded from the environment in
// main.go and passed here as one value.
type Config struct {
	Port      int
	DBPath    string // path to the SQLite database file
	JWTSecret string
	Delays    service.LifecycleDelays // simulated pipeline timing
	SeedDemo  bool                    // preload the demo model inventory
}

// Server owns the router and the resources that need closing on
// shutdown: the database connection and the registry's pending timers.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *service.ModelRegistry
}

// New creates a Server and wires the full dependency graph.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	registry := service.NewModelRegistry(cfg.Delays, logger)
	if cfg.SeedDemo {
		registry.Preload(demoModels()...)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: registry,
	}

	s.setupRoutes(tokens)
	return s, nil
}

// setupRoutes configures middleware and the route table.
//
// ROUTE STRUCTURE:
//
//	GET    /                        → liveness string
//	POST   /auth/signup             → register, returns 201 + token
//	POST   /auth/login              → authenticate, returns 200 + token
//	       /api/* (bearer token required)
//	GET    /api/me                  → current user profile
//	PUT    /api/me/plan             → switch plan tier
//	GET    /api/models              → list models
//	POST   /api/models              → deploy (starts simulated pipeline)
//	GET    /api/models/{id}         → single model
//	POST   /api/models/{id}/stop    → stop an active model
//	POST   /api/models/{id}/restart → re-run pipeline for a stopped model
//	PUT    /api/models/{id}/cost    → set the cost breakdown
//	DELETE /api/models/{id}         → remove a model
//	GET    /api/costs               → actual + predicted series
//	GET    /api/costs/forecast      → regression forecast
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	// Global middleware, in order: request ID, real client IP, panic
	// recovery, then our slog request logging.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	passwords := auth.NewPasswordService()
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	costService := service.NewCostService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	modelHandler := handler.NewModelHandler(s.registry, s.logger)
	costHandler := handler.NewCostHandler(costService, s.logger)

	// Liveness probe — plain text on purpose, it predates the JSON API.
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ML FinOps backend running")
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
	})

	// Everything under /api requires a valid bearer token. Tokens are
	// verified by signature alone — no store round trip per request.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Put("/me/plan", authHandler.HandleUpdatePlan)

		r.Get("/models", modelHandler.HandleList)
		r.Post("/models", modelHandler.HandleDeploy)
		r.Get("/models/{id}", modelHandler.HandleGet)
		r.Post("/models/{id}/stop", modelHandler.HandleStop)
		r.Post("/models/{id}/restart", modelHandler.HandleRestart)
		r.Put("/models/{id}/cost", modelHandler.HandleSetCost)
		r.Delete("/models/{id}", modelHandler.HandleDelete)

		r.Get("/costs", costHandler.HandleCosts)
		r.Get("/costs/forecast", costHandler.HandleForecast)
	})
}

// Start runs the HTTP server and blocks until shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait up to 30s for in-flight requests
// 3. Cancel the registry's pending lifecycle timers
// 4. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.registry.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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

// Router exposes the configured router for httptest-based tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// demoModels is the inventory the dashboard demo ships with: one model
// already serving, one still in training (it will run the pipeline after
// start).
func demoModels() []model.Model {
	return []model.Model{
		{
			ID:        "1",
			Name:      "Sales Prediction Model",
			Type:      model.TypeLinearRegression,
			Status:    model.StatusActive,
			Endpoint:  "https://runtime.sagemaker.us-east-1.amazonaws.com/endpoints/sales-model",
			Cost:      model.NewCostBreakdown(42.30, 2.87, 0.50),
			CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:        "2",
			Name:      "Customer Churn Analysis",
			Type:      model.TypeXGBoost,
			Status:    model.StatusTraining,
			Cost:      model.NewCostBreakdown(11.20, 1.25, 0.00),
			CreatedAt: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
		},
	}
}
