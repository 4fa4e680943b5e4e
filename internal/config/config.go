package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"chatia.db"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`

	GeminiAPIKey      string        `env:"GEMINI_API_KEY,required,notEmpty"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`

	GoogleClientID string        `env:"GOOGLE_CLIENT_ID,required,notEmpty"`
	SessionSecret  string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// AdminEmails is the injected set of administrator identities. A user
	// created with one of these emails gets the admin flag.
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
}

func Load() (*Config, error) {
	// Load .env if present; real environment variables win either way.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
