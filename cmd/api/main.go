package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/card-ledger/internal/audit"
	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/events"
	"github.com/Dan9191/card-ledger/internal/handler"
	"github.com/Dan9191/card-ledger/internal/middleware"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/service"
	"github.com/Dan9191/card-ledger/internal/utils/email"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found; relying on existing environment")
	}

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DBConn, "up"); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		logger.Info("Database schema is up to date")
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.StorageTimeout)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	publisher, err := events.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize event publisher: %v", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event publisher")
		}
	}()

	// Initialize layers
	repo := repository.NewRepository(db)
	opts := []service.Option{service.WithPublisher(publisher)}
	if cfg.SMTPEnabled() {
		opts = append(opts, service.WithNotifier(email.NewSender(cfg, logger)))
	}
	svc := service.NewService(repo, repo, logger, cfg, opts...)
	h := handler.NewHandler(service.NewGateway(svc), logger)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	auditor := audit.New(svc, logger, cfg.AuditSchedule, cfg.StorageTimeout*time.Duration(cfg.StorageRetries+1))
	if err := auditor.Start(); err != nil {
		logger.Fatalf("Failed to start ledger auditor: %v", err)
	}

	// Setup router
	r := h.Router(middleware.AuthMiddleware(tokens, repo, cfg.StorageTimeout, logger))
	server := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           middleware.Logging(logger)(middleware.CORS(cfg.CORSOrigins)(r)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server
	go func() {
		logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	auditor.Stop(ctx)
}
