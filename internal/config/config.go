// Package config loads runtime configuration for the CRM service.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, then CRM_* environment variables (a .env file in the
// working directory is loaded into the environment first).
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultPath is used when CRM_CONFIG is unset.
const DefaultPath = "crm.yaml"

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Redis    RedisConfig    `yaml:"redis"`
	Upload   UploadConfig   `yaml:"upload"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	Env                string        `yaml:"env"`
	BaseURL            string        `yaml:"base_url"`
	CSRFKey            string        `yaml:"csrf_key"` // 64 hex chars
	TrustedOrigins     []string      `yaml:"trusted_origins"`
	RateLimitPerSecond int           `yaml:"rate_limit_per_second"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	SlowRequestMs      int           `yaml:"slow_request_ms"`
}

// DatabaseConfig selects and tunes the SQL backend.
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	DSN            string        `yaml:"dsn"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SlowQueryMs    int           `yaml:"slow_query_ms"`
}

// AuthConfig holds session, token and OTP settings.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	OTPTTL         time.Duration `yaml:"otp_ttl"`
	OTPMaxAttempts int           `yaml:"otp_max_attempts"`
}

// EmailConfig configures outgoing mail. An empty ResendKey selects the no-op sender.
type EmailConfig struct {
	ResendKey string `yaml:"resend_key"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
}

// RedisConfig configures the optional shared cache. An empty Addr selects the in-memory cache.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl"`
	DashboardTTL   time.Duration `yaml:"dashboard_ttl"`
}

// UploadConfig limits bulk lead uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
	MaxRows  int   `yaml:"max_rows"`
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			Env:                EnvDevelopment,
			BaseURL:            "http://localhost:8080",
			RateLimitPerSecond: 10,
			ShutdownTimeout:    15 * time.Second,
			SlowRequestMs:      200,
		},
		Database: DatabaseConfig{
			Driver:         DriverSQLite,
			DSN:            "crm.db",
			MaxOpenConns:   10,
			ConnectTimeout: 30 * time.Second,
			SlowQueryMs:    50,
		},
		Auth: AuthConfig{
			TokenTTL:       24 * time.Hour,
			SessionTTL:     24 * time.Hour,
			OTPTTL:         10 * time.Minute,
			OTPMaxAttempts: 5,
		},
		Email: EmailConfig{
			From: "CRM <noreply@example.com>",
		},
		Redis: RedisConfig{
			LeaderboardTTL: 5 * time.Minute,
			DashboardTTL:   time.Minute,
		},
		Upload: UploadConfig{
			MaxBytes: 5 << 20,
			MaxRows:  5000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from path (missing file means defaults), then
// applies environment overrides.
// PRE: none
// POST: returned config has env overrides applied; it is not validated
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CRM_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies CRM_* environment variables.
func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Addr, "CRM_ADDR")
	setString(&c.Server.Env, "CRM_ENV")
	setString(&c.Server.BaseURL, "CRM_BASE_URL")
	setString(&c.Server.CSRFKey, "CRM_CSRF_KEY")
	setInt(&c.Server.RateLimitPerSecond, "CRM_RATE_LIMIT")
	setInt(&c.Server.SlowRequestMs, "CRM_SLOW_REQUEST_MS")
	if v := os.Getenv("CRM_TRUSTED_ORIGINS"); v != "" {
		c.Server.TrustedOrigins = strings.Split(v, ",")
	}

	setString(&c.Database.Driver, "CRM_DB_DRIVER")
	setString(&c.Database.DSN, "CRM_DB_DSN")
	setInt(&c.Database.SlowQueryMs, "CRM_SLOW_QUERY_MS")

	setString(&c.Auth.JWTSecret, "CRM_JWT_SECRET")
	setDuration(&c.Auth.TokenTTL, "CRM_TOKEN_TTL")
	setDuration(&c.Auth.OTPTTL, "CRM_OTP_TTL")

	setString(&c.Email.ResendKey, "CRM_RESEND_KEY")
	setString(&c.Email.From, "CRM_EMAIL_FROM")
	setString(&c.Email.ReplyTo, "CRM_REPLY_TO")

	setString(&c.Redis.Addr, "CRM_REDIS_ADDR")
	setString(&c.Redis.Username, "CRM_REDIS_USERNAME")
	setString(&c.Redis.Password, "CRM_REDIS_PASSWORD")

	setString(&c.Log.Level, "CRM_LOG_LEVEL")
	if v := os.Getenv("CRM_UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Upload.MaxBytes = n
		}
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// Validate checks the configuration for values the server cannot run with.
// PRE: none
// POST: returns nil if the server can start with this config
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Server.CSRFKey != "" {
		if key, err := hex.DecodeString(c.Server.CSRFKey); err != nil || len(key) != 32 {
			errs = append(errs, errors.New("server.csrf_key must be 64 hex characters (32 bytes)"))
		}
	}
	if c.IsProduction() {
		if c.Server.CSRFKey == "" {
			errs = append(errs, errors.New("CRM_CSRF_KEY is required in production"))
		}
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, errors.New("CRM_JWT_SECRET must be at least 32 bytes in production"))
		}
	}
	if c.Auth.OTPTTL <= 0 {
		errs = append(errs, errors.New("auth.otp_ttl must be positive"))
	}
	if c.Upload.MaxBytes <= 0 || c.Upload.MaxRows <= 0 {
		errs = append(errs, errors.New("upload limits must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
