package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://platform:3000/api")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GENERATION_POLL_INTERVAL", "500ms")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://platform:3000/api" {
		t.Fatalf("Unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Generation.PollInterval != 500*time.Millisecond {
		t.Fatalf("Expected 500ms poll interval, got %v", cfg.Generation.PollInterval)
	}
	if cfg.Redis.Addr() != "localhost:6380" {
		t.Fatalf("Unexpected redis addr %s", cfg.Redis.Addr())
	}
	if cfg.Session.DraftTTL != 24*time.Hour {
		t.Fatalf("Expected default draft ttl, got %v", cfg.Session.DraftTTL)
	}
	if cfg.Backend.Timeout != 30*time.Second || cfg.Server.Port != 8090 {
		t.Fatalf("Unexpected defaults: %+v %+v", cfg.Backend, cfg.Server)
	}
}

func TestLoadAlias(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("API_BASE_URL", "http://legacy:3000")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://legacy:3000" {
		t.Fatalf("Expected alias to apply, got %q", cfg.Backend.BaseURL)
	}
}

func TestLoadRequiresBackend(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := Load(); err == nil {
		t.Fatal("Expected error without backend.base_url")
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "admin", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=admin sslmode=disable"
	if c.DSN() != want {
		t.Fatalf("got %q", c.DSN())
	}
}

func TestSubmitLockTTLFollowsBackendTimeout(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://platform:3000/api")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BACKEND_TIMEOUT", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Timeout != 2*time.Minute {
		t.Fatalf("Expected 2m backend timeout, got %v", cfg.Backend.Timeout)
	}
	if ttl := cfg.SubmitLockTTL(); ttl <= cfg.Backend.Timeout {
		t.Fatalf("Submit lock ttl %v must exceed backend timeout %v", ttl, cfg.Backend.Timeout)
	}
}
