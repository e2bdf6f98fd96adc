package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

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

// unsetEnv clears keys for the test; t.Setenv restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	unsetEnv(t, "HTTP_PORT", "METRICS_PORT", "ENV", "LOG_FORMAT", "TIMEZONE", "STORAGE_DRIVER", "REQUEST_TIMEOUT", "DB_NAME", "DB_CONN_MAX_LIFETIME")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.StorageDriver != StorageDriverPostgres {
		t.Fatalf("expected postgres storage, got %q", cfg.StorageDriver)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.DB.Name != "gym_db" {
		t.Fatalf("expected default db name, got %q", cfg.DB.Name)
	}
	if cfg.DB.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("expected 30m lifetime, got %v", cfg.DB.ConnMaxLifetime)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnv(t *testing.T) {
	dir := chdirTemp(t)
	contents := "DB_HOST=db.internal\nHTTP_PORT=9000\nTIMEZONE=Asia/Kolkata\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("HTTP_PORT", "7000")
	unsetEnv(t, "DB_HOST", "TIMEZONE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPPort != "7000" {
		t.Fatalf("expected env to win, got %q", cfg.HTTPPort)
	}
	if cfg.DB.Host != "db.internal" {
		t.Fatalf("expected host from .env, got %q", cfg.DB.Host)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %q", loc.String())
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	chdirTemp(t)
	t.Setenv("STORAGE_DRIVER", "redis")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "StorageDriver") {
		t.Fatalf("expected StorageDriver in error, got %v", err)
	}
}

func TestLoadRejectsUnknownTimeZone(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatalf("expected timezone error")
	}
}

func TestGetDSNPrefersExplicitDSN(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://u:p@h/db", Host: "ignored"}
	if got := cfg.GetDSN(); got != "postgres://u:p@h/db" {
		t.Fatalf("expected explicit dsn, got %q", got)
	}

	cfg = DBConfig{Host: "h", User: "u", Password: "p", Name: "n", Port: "1", SSLMode: "disable", TimeZone: "UTC"}
	want := "host=h user=u password=p dbname=n port=1 sslmode=disable TimeZone=UTC"
	if got := cfg.GetDSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
