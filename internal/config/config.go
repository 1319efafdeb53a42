package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DBConn      string   `env:"DB_CONN" envDefault:"host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"INFO"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"card-ledger"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// StorageTimeout bounds every single storage round trip.
	StorageTimeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
	StorageRetries uint          `env:"STORAGE_RETRIES" envDefault:"3"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"false"`

	CardBIN            string `env:"CARD_BIN" envDefault:"400000"`
	CardNumberAttempts int    `env:"CARD_NUMBER_ATTEMPTS" envDefault:"5"`

	AuditSchedule string `env:"AUDIT_SCHEDULE" envDefault:"@every 1h"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SenderEmail  string `env:"SENDER_EMAIL" envDefault:"noreply@card-ledger.local"`

	NATSURL      string   `env:"NATS_URL"`
	NATSSubject  string   `env:"NATS_SUBJECT" envDefault:"ledger.events"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ledger-events"`
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBConn) == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTSecret == "secret" {
		return fmt.Errorf("JWT_SECRET must not be the placeholder value")
	}
	if c.StorageRetries == 0 {
		return fmt.Errorf("STORAGE_RETRIES must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if c.CardNumberAttempts <= 0 {
		return fmt.Errorf("CARD_NUMBER_ATTEMPTS must be positive")
	}
	if len(c.CardBIN) == 0 || len(c.CardBIN) >= 16 {
		return fmt.Errorf("CARD_BIN must be between 1 and 15 digits, got %q", c.CardBIN)
	}
	for _, r := range c.CardBIN {
		if r < '0' || r > '9' {
			return fmt.Errorf("CARD_BIN must be numeric, got %q", c.CardBIN)
		}
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c *Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// SMTPEnabled reports whether outgoing mail is configured.
func (c *Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}
