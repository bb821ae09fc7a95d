package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant     string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int64         `mapstructure:"RATE_LIMIT_BURST"`
	CoverageRate      float64       `mapstructure:"COVERAGE_RATE"`
	AmountScale       int32         `mapstructure:"AMOUNT_SCALE"`
	Currency          string        `mapstructure:"CURRENCY"`
	InvoiceDueDays    int           `mapstructure:"INVOICE_DUE_DAYS"`
	ReconcileInterval time.Duration `mapstructure:"RECONCILIATION_REFRESH_INTERVAL"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_TENANT", "CORS_ORIGINS", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "COVERAGE_RATE", "AMOUNT_SCALE", "CURRENCY",
	"INVOICE_DUE_DAYS", "RECONCILIATION_REFRESH_INTERVAL", "MIGRATIONS_DIR",
}

func Load() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("COVERAGE_RATE", 0.8)
	v.SetDefault("AMOUNT_SCALE", 0)
	v.SetDefault("CURRENCY", "XOF")
	v.SetDefault("INVOICE_DUE_DAYS", 30)
	v.SetDefault("RECONCILIATION_REFRESH_INTERVAL", "5m")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("server is running in DEVELOPMENT mode: every unauthenticated request gets admin access")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Coverage returns the default coverage rate as a decimal.
func (c *Config) Coverage() decimal.Decimal {
	return decimal.NewFromFloat(c.CoverageRate)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.CoverageRate <= 0 || c.CoverageRate > 1 {
		return fmt.Errorf("COVERAGE_RATE must be in (0, 1], got %v", c.CoverageRate)
	}
	if c.AmountScale < 0 || c.AmountScale > 4 {
		return fmt.Errorf("AMOUNT_SCALE must be between 0 and 4, got %d", c.AmountScale)
	}
	if c.InvoiceDueDays < 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must not be negative, got %d", c.InvoiceDueDays)
	}
	if c.ReconcileInterval < time.Second {
		return fmt.Errorf("RECONCILIATION_REFRESH_INTERVAL must be at least 1s, got %s", c.ReconcileInterval)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY must not be empty")
	}
	return nil
}
