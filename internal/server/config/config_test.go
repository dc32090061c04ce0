package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigPath, "PORT", "DATA_DIR", "UPLOAD_DIR", "BACKGROUND_PATH",
		"BODY_LIMIT", "SESSION_TTL_HOURS", "CLEANUP_INTERVAL_HOURS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FORMAT",
		"SHUTDOWN_TIMEOUT", "SECURE_COOKIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" || cfg.DataDir != "./data" || cfg.UploadDir != "./uploads" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.BackgroundPath != filepath.Join("data", "bg.png") {
		t.Errorf("unexpected background path %s", cfg.BackgroundPath)
	}
	if n, _ := cfg.BodyLimitBytes(); n != 1100*1024*1024 {
		t.Errorf("unexpected body limit %d", n)
	}
	if cfg.SessionTTL() != 12*time.Hour {
		t.Errorf("unexpected session ttl %v", cfg.SessionTTL())
	}
	if cfg.CleanupInterval() != 0 {
		t.Errorf("cleanup should be disabled by default, got %v", cfg.CleanupInterval())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("unexpected shutdown timeout %v", cfg.ShutdownTimeoutDuration())
	}
	if cfg.SlogLevel() != slog.LevelInfo || cfg.LogFormat != "json" {
		t.Errorf("unexpected logging config %s %s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.SecureCookies {
		t.Error("secure cookies should default to false")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "locker.toml")
	content := `
port = "9090"
data_dir = "/srv/locker"
body_limit = "2GB"
cleanup_interval_hours = 0.5
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("SECURE_COOKIES", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "7070" {
		t.Errorf("env should override file, got port %s", cfg.Port)
	}
	if cfg.DataDir != "/srv/locker" || cfg.BackgroundPath != "/srv/locker/bg.png" {
		t.Errorf("unexpected dirs %s %s", cfg.DataDir, cfg.BackgroundPath)
	}
	if n, _ := cfg.BodyLimitBytes(); n != 2*1024*1024*1024 {
		t.Errorf("unexpected body limit %d", n)
	}
	if cfg.CleanupInterval() != 30*time.Minute {
		t.Errorf("unexpected cleanup interval %v", cfg.CleanupInterval())
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("unexpected level %v", cfg.SlogLevel())
	}
	if !cfg.SecureCookies {
		t.Error("expected secure cookies from env")
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "locker.toml")
	os.WriteFile(path, []byte(`upload_dir = "/tmp/up"`), 0644)
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.UploadDir != "/tmp/up" {
		t.Errorf("expected upload dir from file, got %s", cfg.UploadDir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "http"},
		{"body limit", "BODY_LIMIT", "lots"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"log format", "LOG_FORMAT", "xml"},
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "bad.toml")
		os.WriteFile(path, []byte("port = = 1"), 0644)
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}
