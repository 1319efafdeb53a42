package main

import (
	"flag"
	"fmt"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// token mints a bearer token for a user id with the server's JWT settings.
// The token goes to stdout so it can be captured by scripts.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	userID := flag.Int64("user", 0, "user id to put in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_TTL)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found; relying on existing environment")
	}
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *userID <= 0 {
		logger.Fatal("-user must be a positive user id")
	}
	lifetime := cfg.JWTTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, lifetime).Generate(*userID)
	if err != nil {
		logger.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
