/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the discipline-ledger server: loads configuration,
  selects the persistence backend, builds the ledger service, and serves
  the HTTP API with graceful shutdown.

BACKEND SELECTION:
  LEDGER_BACKEND=document  file-versioned JSON document (default)
  LEDGER_BACKEND=sqlite    normalized relational store
  The ledger service itself never branches on backend type; the choice
  happens exactly once, here.

ENVIRONMENT:
  HTTP_PORT, LEDGER_BACKEND, DOCUMENT_PATH, DB_PATH, ADMIN_SECRET,
  LEADER_SECRET, GROUP_NAMES, APP_ENV. A .env file is honored.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for active requests
  (30s timeout), close the store, exit.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/elf59535/TsinghuaDashboard/api"
	"github.com/elf59535/TsinghuaDashboard/config"
	"github.com/elf59535/TsinghuaDashboard/ledger"
	"github.com/elf59535/TsinghuaDashboard/store/document"
	"github.com/elf59535/TsinghuaDashboard/store/sqlite"
)

func main() {
	cfg := config.Load()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	policy := ledger.DefaultPolicy()
	if len(cfg.GroupNames) > 0 {
		policy.SeedGroups = cfg.GroupNames
	}
	seed := ledger.SeedState(policy)

	var store ledger.Store
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.DBPath, seed)
		if err != nil {
			logger.Fatal("failed to open sqlite backend", zap.Error(err))
		}
		defer s.Close()
		store = s
	case config.BackendDocument:
		store = document.New(cfg.DocumentPath, seed)
	default:
		logger.Fatal("unknown backend", zap.String("backend", cfg.Backend))
	}
	logger.Info("backend selected", zap.String("backend", cfg.Backend))

	svc, err := ledger.NewService(context.Background(), store, policy, logger)
	if err != nil {
		logger.Fatal("failed to initialize ledger service", zap.Error(err))
	}

	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, api.Secrets{
		Admin:  cfg.AdminSecret,
		Leader: cfg.LeaderSecret,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
