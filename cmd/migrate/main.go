package main

import (
	"os"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Usage: migrate [up|down]
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found; relying on existing environment")
	}
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	if direction != "up" && direction != "down" {
		logger.Fatalf("Unknown direction %q, expected up or down", direction)
	}

	if err := repository.Migrate(cfg.DBConn, direction); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"direction": direction,
		"table":     repository.MigrationsTable,
	}).Info("Migrations applied")
}
