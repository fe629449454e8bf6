package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BaseURL != "http://localhost:5000" || c.Timeout != 10*time.Second {
		t.Fatalf("config=%+v", c)
	}
	if c.SessionBackend != BackendFile || !strings.HasSuffix(c.SessionPath, filepath.Join(".placecell", "session.json")) {
		t.Fatalf("session config=%+v", c)
	}
	if c.Profile != "default" || c.LogLevel != "info" {
		t.Fatalf("config=%+v", c)
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "placecell.yaml")
	body := "base_url: https://portal.college.edu/api\ntimeout: 3s\nsession_backend: redis\nredis_addr: cache:6379\nrate_per_sec: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PLACECELL_TIMEOUT", "7s")
	t.Setenv("PLACECELL_PROFILE", "tpo")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BaseURL != "https://portal.college.edu/api" || c.SessionBackend != BackendRedis || c.RedisAddr != "cache:6379" {
		t.Fatalf("file values missing: %+v", c)
	}
	if c.Timeout != 7*time.Second || c.Profile != "tpo" || c.RatePerSec != 5 {
		t.Fatalf("env overrides missing: %+v", c)
	}
}

func TestValidation(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("explicit missing file must fail")
	}

	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PLACECELL_SESSION_BACKEND", "sql")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "session_dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
	t.Setenv("PLACECELL_SESSION_BACKEND", "floppy")
	if _, err := Load(""); err == nil {
		t.Fatal("unknown backend must fail")
	}
	t.Setenv("PLACECELL_SESSION_BACKEND", "sql")
	t.Setenv("PLACECELL_SESSION_DSN", "postgres://localhost/placecell")
	if c, err := Load(""); err != nil || c.SessionDSN == "" {
		t.Fatalf("Load=%+v,%v", c, err)
	}
}
