// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Backend names accepted by LEDGER_BACKEND.
const (
	BackendDocument = "document"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv       string
	HTTPPort     int
	Backend      string
	DocumentPath string
	DBPath       string

	// Shared static secrets guarding the two roles. Preserved from the
	// original deployment's contract; identity management is out of scope.
	AdminSecret  string
	LeaderSecret string

	// Optional comma-separated override of the seed group names.
	GroupNames []string
}

// Load reads configuration from a .env file (if present) and the
// environment, falling back to defaults.
func Load() *Config {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("HTTP_PORT", "8080"))
	if err != nil {
		port = 8080
	}

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		HTTPPort:     port,
		Backend:      getEnv("LEDGER_BACKEND", BackendDocument),
		DocumentPath: getEnv("DOCUMENT_PATH", "./data/database.json"),
		DBPath:       getEnv("DB_PATH", "./data/ledger.db"),
		AdminSecret:  getEnv("ADMIN_SECRET", "THU2024"),
		LeaderSecret: getEnv("LEADER_SECRET", "123"),
	}

	if names := getEnv("GROUP_NAMES", ""); names != "" {
		for _, n := range strings.Split(names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				cfg.GroupNames = append(cfg.GroupNames, n)
			}
		}
	}

	return cfg
}

// NewLogger creates a zap logger appropriate for the environment.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
