package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rawblock/aml-network-engine/internal/api"
	"github.com/rawblock/aml-network-engine/internal/db"
	"github.com/rawblock/aml-network-engine/internal/runner"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting AML Network Engine")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbURL := requireEnv(logger, "DATABASE_URL")

	store, err := db.Connect(dbURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	// WebSocket hub for real-time alerts
	hub := api.NewHub(logger)
	go hub.Run()

	// Background runner with alert broadcasting through the hub
	analysisRunner := runner.New(store, logger, api.AlertBroadcaster(hub, logger))

	r := api.SetupRouter(store, hub, analysisRunner, logger)

	port := getEnvOrDefault("PORT", "8090")

	logger.Info("engine listening", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

// newLogger builds a production zap logger, or a development one when
// LOG_MODE=dev is set.
func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if os.Getenv("LOG_MODE") == "dev" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(logger *zap.Logger, key string) string {
	val := os.Getenv(key)
	if val == "" {
		logger.Fatal("required environment variable is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env",
			zap.String("key", key))
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
