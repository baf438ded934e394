package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Credential backends for the durable token slot
const (
	CredentialBackendKeyring = "keyring"
	CredentialBackendSQLite  = "sqlite"
)

// Config holds all process configuration for the pilipi client
type Config struct {
	// API Configuration
	API APIConfig `env:", prefix=PILIPI_"`

	// Credential storage
	Credentials CredentialConfig `env:", prefix=PILIPI_CREDENTIAL_"`

	// Local web shell
	Web WebConfig `env:", prefix=PILIPI_WEB_"`

	// Logging Configuration
	Logging LoggingConfig
}

// APIConfig holds the backend connection settings
type APIConfig struct {
	// URL overrides the server picked from pilipi.json when set
	URL     string        `env:"API_URL"`
	Timeout time.Duration `env:"REQUEST_TIMEOUT, default=30s"`
}

// CredentialConfig selects where the bearer token is persisted
type CredentialConfig struct {
	Backend        string `env:"BACKEND, default=keyring"`
	DBPath         string `env:"DB"`
	KeyringService string `env:"KEYRING_SERVICE, default=pilipi-cli"`
}

// WebConfig holds settings for `pilipi serve`
type WebConfig struct {
	Addr            string   `env:"ADDR, default=127.0.0.1:5173"`
	AllowedOrigins  []string `env:"ALLOWED_ORIGINS, default=http://localhost:5173"`
	RefreshSchedule string   `env:"REFRESH_SCHEDULE, default=@every 5m"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL, default=warn"`
	Format string `env:"LOG_FORMAT, default=console"` // json, console
}

// Load loads configuration from .env files and environment variables
func Load(ctx context.Context) (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return process(ctx, envconfig.OsLookuper())
}

func process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	switch cfg.Credentials.Backend {
	case CredentialBackendKeyring, CredentialBackendSQLite:
	default:
		return nil, fmt.Errorf("unknown credential backend %q (want %s or %s)",
			cfg.Credentials.Backend, CredentialBackendKeyring, CredentialBackendSQLite)
	}

	return &cfg, nil
}
