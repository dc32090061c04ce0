// Package config loads the server configuration from an optional TOML file,
// applies defaults and lets environment variables override both.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "LOCKER_CONFIG"

type Config struct {
	Port                 string  `toml:"port"`
	DataDir              string  `toml:"data_dir"`
	UploadDir            string  `toml:"upload_dir"`
	BackgroundPath       string  `toml:"background_path"`
	BodyLimit            string  `toml:"body_limit"`
	SessionTTLHours      float64 `toml:"session_ttl_hours"`
	CleanupIntervalHours float64 `toml:"cleanup_interval_hours"`
	RateLimitRPS         float64 `toml:"rate_limit_rps"`
	RateLimitBurst       int     `toml:"rate_limit_burst"`
	LogLevel             string  `toml:"log_level"`
	LogFormat            string  `toml:"log_format"`
	ShutdownTimeout      string  `toml:"shutdown_timeout"`
	SecureCookies        bool    `toml:"secure_cookies"`
}

// Load reads the TOML file at path, if any, and finalizes the result.
// An empty path falls back to $LOCKER_CONFIG; with neither set only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates the configuration.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	// The background lives next to the documents unless placed elsewhere.
	if c.BackgroundPath == "" {
		c.BackgroundPath = filepath.Join(c.DataDir, "bg.png")
	}
	return c.validate()
}

func (c *Config) loadDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.UploadDir == "" {
		c.UploadDir = "./uploads"
	}
	if c.BodyLimit == "" {
		c.BodyLimit = "1100MB"
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 12
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 5
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *Config) loadEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.BackgroundPath = getEnv("BACKGROUND_PATH", c.BackgroundPath)
	c.BodyLimit = getEnv("BODY_LIMIT", c.BodyLimit)
	c.SessionTTLHours = getEnvFloat64("SESSION_TTL_HOURS", c.SessionTTLHours)
	c.CleanupIntervalHours = getEnvFloat64("CLEANUP_INTERVAL_HOURS", c.CleanupIntervalHours)
	c.RateLimitRPS = getEnvFloat64("RATE_LIMIT_RPS", c.RateLimitRPS)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.ShutdownTimeout = getEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies)
}

func (c *Config) validate() error {
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if _, err := c.BodyLimitBytes(); err != nil {
		return err
	}
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("session_ttl_hours must be positive")
	}
	if c.CleanupIntervalHours < 0 {
		return fmt.Errorf("cleanup_interval_hours must not be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid log_format %q: expected json or text", c.LogFormat)
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

// BodyLimitBytes parses BodyLimit ("1100MB", "2GiB", ...) as binary units.
func (c *Config) BodyLimitBytes() (int64, error) {
	n, err := units.RAMInBytes(c.BodyLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid body_limit %q: %w", c.BodyLimit, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("body_limit must be positive")
	}
	return n, nil
}

func (c *Config) SessionTTL() time.Duration {
	return hours(c.SessionTTLHours)
}

// CleanupInterval is zero when the periodic sweep is disabled.
func (c *Config) CleanupInterval() time.Duration {
	return hours(c.CleanupIntervalHours)
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}
