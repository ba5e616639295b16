package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "taskhub-dev-secret"

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Postgres PostgresConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port               string
	Env                string
	CORSAllowedOrigins []string
	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means none.
	TrustedProxies  []string
	ShutdownTimeout string
}

type AuthConfig struct {
	JWTSecret               string
	RateLimitRPS            string
	RateLimitBurst          string
	RevocationSweepInterval string
}

type DatabaseConfig struct {
	Driver     string
	SQLitePath string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Port:               getenv("PORT", "3001"),
			Env:                getenv("APP_ENV", "production"),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
			ShutdownTimeout:    getenv("SHUTDOWN_TIMEOUT", "10s"),
		},
		Auth: AuthConfig{
			JWTSecret:               os.Getenv("JWT_SECRET"),
			RateLimitRPS:            getenv("AUTH_RATE_LIMIT_RPS", "5"),
			RateLimitBurst:          getenv("AUTH_RATE_LIMIT_BURST", "10"),
			RevocationSweepInterval: getenv("REVOCATION_SWEEP_INTERVAL", "10m"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			SQLitePath: getenv("SQLITE_PATH", "data/tasks.db"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
		},
	}
}

// Validate checks the values that cannot be defaulted safely. In development
// a missing JWT_SECRET is replaced with a fixed insecure secret.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required")
		}
		slog.Warn("JWT_SECRET not set, using insecure development secret")
		c.Auth.JWTSecret = devJWTSecret
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver)
	}

	if _, err := c.ShutdownTimeout(); err != nil {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if _, err := c.RevocationSweepInterval(); err != nil {
		return fmt.Errorf("invalid REVOCATION_SWEEP_INTERVAL: %w", err)
	}
	if _, _, err := c.AuthRateLimit(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format)
	}
	return nil
}

// RevocationSweepInterval must be positive.
func (c Config) RevocationSweepInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.RevocationSweepInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// AuthRateLimit returns the per-IP rate and burst for the auth endpoints.
func (c Config) AuthRateLimit() (float64, int, error) {
	rps, err := strconv.ParseFloat(c.Auth.RateLimitRPS, 64)
	if err != nil || rps <= 0 {
		return 0, 0, fmt.Errorf("invalid AUTH_RATE_LIMIT_RPS %q", c.Auth.RateLimitRPS)
	}
	burst, err := strconv.Atoi(c.Auth.RateLimitBurst)
	if err != nil || burst <= 0 {
		return 0, 0, fmt.Errorf("invalid AUTH_RATE_LIMIT_BURST %q", c.Auth.RateLimitBurst)
	}
	return rps, burst, nil
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Env, "development")
}

func (c Config) ShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.ShutdownTimeout)
}

// LogLevel maps LOG_LEVEL onto slog levels; unknown values fall back to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
