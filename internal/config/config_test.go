package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// chdirTemp moves into an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "STORAGE_DRIVER", "DATABASE_URL", "REDIS_URL", "REDIS_STREAM",
		"REDIS_STREAM_MAXLEN", "CORS_ORIGINS", "RATE_LIMIT_PER_MINUTE", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort || cfg.StorageDriver != StorageMemory || cfg.Env != defaultEnv {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("expected redis disabled by default, got %q", cfg.RedisURL)
	}
	if cfg.ShutdownTimeout != defaultShutdownTimeout || cfg.RateLimitPerMinute != defaultRateLimit {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	want := []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("expected origins %v, got %v", want, cfg.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	chdirTemp(t)
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("REDIS_STREAM_MAXLEN", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != StoragePostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.StorageDriver)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second || cfg.RedisStreamMaxLen != 42 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	chdirTemp(t)

	tests := []struct {
		key   string
		value string
	}{
		{key: "STORAGE_DRIVER", value: "sqlite"},
		{key: "RATE_LIMIT_PER_MINUTE", value: "lots"},
		{key: "REDIS_STREAM_MAXLEN", value: "-1"},
		{key: "SHUTDOWN_TIMEOUT", value: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := chdirTemp(t)
	clearEnv(t)
	t.Setenv("PORT", "9000")
	// godotenv never overrides a variable that is set, even to "".
	_ = os.Unsetenv("REDIS_STREAM")

	content := "# local settings\nPORT=7000\nREDIS_STREAM=\"queue.local\"\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("expected environment to win, got port %q", cfg.Port)
	}
	if cfg.RedisStream != "queue.local" {
		t.Fatalf("expected stream from .env, got %q", cfg.RedisStream)
	}
}
